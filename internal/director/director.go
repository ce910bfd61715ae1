// Package director owns a player and keeps the renderer and the visit
// stores in step with it.
package director

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/flyover/internal/clock"
	"github.com/OCAP2/flyover/internal/player"
	"github.com/OCAP2/flyover/internal/renderer"
	"github.com/OCAP2/flyover/internal/storage"
	"github.com/OCAP2/flyover/pkg/core"
)

// ErrNotStarted is returned by operations that need a running session.
var ErrNotStarted = errors.New("director not started")

// VisitRecorder receives every visit besides the storage backend, e.g. a
// time-series writer.
type VisitRecorder interface {
	RecordVisit(v *core.Visit) error
}

// Dependencies holds all dependencies for the director
type Dependencies struct {
	Player   *player.Player
	Renderer renderer.Renderer
	Storage  storage.Backend
	Series   VisitRecorder
	Clock    clock.Clock
	Logger   *slog.Logger

	// OnIndexChanged is called after the renderer and stores have seen the
	// new index.
	OnIndexChanged func(index int)
}

// Director consumes the player's index changes.
type Director struct {
	deps Dependencies

	mu      sync.Mutex
	session *core.Session
	started bool
	closed  bool

	done chan struct{}
}

// New creates a director. Player and Renderer are required.
func New(deps Dependencies) (*Director, error) {
	if deps.Player == nil {
		return nil, errors.New("director: player is required")
	}
	if deps.Renderer == nil {
		return nil, errors.New("director: renderer is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Director{
		deps: deps,
		done: make(chan struct{}),
	}, nil
}

// Session returns the current session, or nil before Start.
func (d *Director) Session() *core.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// Player returns the player being directed.
func (d *Director) Player() *player.Player {
	return d.deps.Player
}

// LogAttrs reports the session and player position for log enrichment.
func (d *Director) LogAttrs() []slog.Attr {
	d.mu.Lock()
	s := d.session
	d.mu.Unlock()
	if s == nil {
		return nil
	}
	return []slog.Attr{
		slog.String("session", s.ID.String()),
		slog.Int("index", d.deps.Player.Index()),
	}
}

// Start opens a session, records the arrival at the starting point and
// positions the camera there. If the player is running the flyover starts,
// otherwise any running flyover is stopped. Index changes are then followed
// until Close.
func (d *Director) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started || d.closed {
		d.mu.Unlock()
		return nil
	}
	p := d.deps.Player
	st := p.Checkpoint()
	s := core.NewSession(p.Sequence(), st.Index, st.IsPlaying, d.deps.Clock.Now())
	d.session = s
	d.started = true
	d.mu.Unlock()

	if d.deps.Storage != nil {
		if err := d.deps.Storage.StartSession(s, p.Sequence()); err != nil {
			return fmt.Errorf("failed to start session in storage: %w", err)
		}
	}
	if sr, ok := d.deps.Renderer.(renderer.SessionRenderer); ok {
		if err := sr.StartSession(ctx, s, p.Sequence()); err != nil {
			d.deps.Logger.Warn("Renderer did not accept session", "session", s.ID, "error", err)
		}
	}

	d.deps.Logger.Info("Flyover session started",
		"session", s.ID,
		"points", s.PointCount,
		"startIndex", s.StartIndex,
		"isPlaying", s.IsPlaying,
	)

	d.recordVisit(st.Index, st.Point)
	if st.Running {
		d.flyTo(ctx, st.Index, st.Point)
	} else {
		d.stopFlyover(ctx)
	}

	go d.run(ctx)
	return nil
}

func (d *Director) run(ctx context.Context) {
	defer close(d.done)
	changes := d.deps.Player.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case idx, ok := <-changes:
			if !ok {
				return
			}
			d.handleIndex(ctx, idx)
		}
	}
}

func (d *Director) handleIndex(ctx context.Context, idx int) {
	pt, err := d.deps.Player.Sequence().At(idx)
	if err != nil {
		d.deps.Logger.Error("Index change out of range", "index", idx, "error", err)
		return
	}

	d.flyTo(ctx, idx, pt)
	if ir, ok := d.deps.Renderer.(renderer.IndexReporter); ok {
		if err := ir.IndexChanged(ctx, idx); err != nil {
			d.deps.Logger.Warn("Failed to report index change", "index", idx, "error", err)
		}
	}
	d.recordVisit(idx, pt)

	if d.deps.OnIndexChanged != nil {
		d.deps.OnIndexChanged(idx)
	}
}

func (d *Director) flyTo(ctx context.Context, idx int, pt core.Point) {
	if err := d.deps.Renderer.FlyTo(ctx, renderer.NewFlyTo(idx, pt)); err != nil {
		d.deps.Logger.Error("Failed to fly to point", "index", idx, "error", err)
	}
}

func (d *Director) stopFlyover(ctx context.Context) {
	if err := d.deps.Renderer.StopFlyover(ctx); err != nil {
		d.deps.Logger.Error("Failed to stop flyover", "error", err)
	}
}

func (d *Director) recordVisit(idx int, pt core.Point) {
	s := d.Session()
	if s == nil {
		return
	}
	v := core.NewVisit(s.ID, idx, pt, d.deps.Clock.Now())

	if d.deps.Storage != nil {
		if err := d.deps.Storage.RecordVisit(v); err != nil {
			d.deps.Logger.Error("Failed to record visit", "index", idx, "error", err)
		}
	}
	if d.deps.Series != nil {
		if err := d.deps.Series.RecordVisit(v); err != nil {
			d.deps.Logger.Warn("Failed to write visit series", "index", idx, "error", err)
		}
	}
}

// Restart resumes playback from the current point and flies the camera
// there. A player that is not playing stays stopped.
func (d *Director) Restart(ctx context.Context) (player.Status, error) {
	if !d.isActive() {
		return player.Status{}, ErrNotStarted
	}
	p := d.deps.Player
	p.Restart()
	st := p.Status()
	if st.Running {
		d.flyTo(ctx, st.Index, st.Point)
	}
	return st, nil
}

// Stop halts playback and the camera animation at the current point.
func (d *Director) Stop(ctx context.Context) (player.Status, error) {
	if !d.isActive() {
		return player.Status{}, ErrNotStarted
	}
	d.deps.Player.Stop()
	d.stopFlyover(ctx)
	return d.deps.Player.Status(), nil
}

func (d *Director) isActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started && !d.closed
}

// Close closes the player, waits for pending index changes to be handled,
// stops the camera and ends the session.
func (d *Director) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	started := d.started
	s := d.session
	d.mu.Unlock()

	var errs []error
	if err := d.deps.Player.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close player: %w", err))
	}
	if !started {
		return errors.Join(errs...)
	}

	select {
	case <-d.done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	d.stopFlyover(ctx)

	s.EndedAt = d.deps.Clock.Now()
	if sr, ok := d.deps.Renderer.(renderer.SessionRenderer); ok {
		if err := sr.EndSession(ctx, s); err != nil {
			d.deps.Logger.Warn("Renderer did not end session", "session", s.ID, "error", err)
		}
	}
	if d.deps.Storage != nil {
		if err := d.deps.Storage.EndSession(s); err != nil {
			errs = append(errs, fmt.Errorf("failed to end session in storage: %w", err))
		}
	}

	d.deps.Logger.Info("Flyover session ended", "session", s.ID)
	return errors.Join(errs...)
}
