// Package player drives playback of a flyover itinerary: it advances through a
// PlaybackSequence on a per-point timer and reports index changes to its owner.
package player

import (
	"log/slog"
	"sync"

	"github.com/OCAP2/flyover/internal/clock"
	"github.com/OCAP2/flyover/pkg/core"
	"go.opentelemetry.io/otel/metric"
)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a Player.
type Option func(*options)

type options struct {
	startIndex int
	clock      clock.Clock
	logger     Logger
	handler    func(int)
}

// WithStartIndex seeds the player at a point other than the first.
func WithStartIndex(i int) Option {
	return func(o *options) {
		o.startIndex = i
	}
}

// WithClock replaces the timer facility.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithIndexHandler registers the single owner callback invoked after every
// advance. It runs on the timer goroutine after the player's state lock is
// released, so it may call Stop, Restart or Close. Deliveries never overlap.
func WithIndexHandler(h func(index int)) Option {
	return func(o *options) {
		o.handler = h
	}
}

// Status is a point-in-time snapshot of the player.
type Status struct {
	Index     int
	Running   bool
	IsPlaying bool
	Point     core.Point
}

// Player cycles through a sequence. It is Running while a timer is armed and
// Stopped otherwise.
type Player struct {
	seq       *core.PlaybackSequence
	isPlaying bool
	clock     clock.Clock
	logger    Logger
	handler   func(int)

	mu         sync.Mutex
	index      int
	timer      clock.Timer
	generation uint64
	closed     bool

	// serialises timer fires and handler delivery
	fireMu sync.Mutex

	changes chan int

	metrics      *metrics
	registration metric.Registration
}

// New creates a player positioned at the start index. When isPlaying is true
// the player starts Running immediately, otherwise it stays Stopped until
// Restart is called on a playing player.
func New(seq *core.PlaybackSequence, isPlaying bool, opts ...Option) (*Player, error) {
	if seq == nil || seq.Len() == 0 {
		return nil, core.ErrInvalidSequence
	}

	o := &options{clock: clock.Real{}}
	for _, opt := range opts {
		opt(o)
	}
	if err := seq.CheckIndex(o.startIndex); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	p := &Player{
		seq:       seq,
		isPlaying: isPlaying,
		clock:     o.clock,
		logger:    o.logger,
		handler:   o.handler,
		index:     o.startIndex,
		changes:   make(chan int, 1),
	}

	m, reg, err := newMetrics(p)
	if err != nil {
		return nil, err
	}
	p.metrics = m
	p.registration = reg

	if isPlaying {
		p.Restart()
	} else {
		p.Stop()
	}
	return p, nil
}

// Sequence returns the itinerary being played.
func (p *Player) Sequence() *core.PlaybackSequence {
	return p.seq
}

// IsPlaying reports the playing flag fixed at construction.
func (p *Player) IsPlaying() bool {
	return p.isPlaying
}

// Index returns the current point index.
func (p *Player) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// CurrentPoint returns the point at the current index.
func (p *Player) CurrentPoint() core.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked()
}

// Running reports whether a timer is armed.
func (p *Player) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

// Status returns a consistent snapshot of index, point and timer state.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Index:     p.index,
		Running:   p.timer != nil,
		IsPlaying: p.isPlaying,
		Point:     p.currentLocked(),
	}
}

// Checkpoint returns the same snapshot as Status and discards any
// undelivered index change, which the snapshot already reflects. A consumer
// that starts from the snapshot then only sees later changes.
func (p *Player) Checkpoint() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		select {
		case <-p.changes:
		default:
		}
	}
	return Status{
		Index:     p.index,
		Running:   p.timer != nil,
		IsPlaying: p.isPlaying,
		Point:     p.currentLocked(),
	}
}

// Changes returns the index-changed stream. It holds only the most recent
// undelivered index and is closed by Close.
func (p *Player) Changes() <-chan int {
	return p.changes
}

// Restart cancels any armed timer and, if the player is playing and the
// current point has a positive duration, arms a new one. The index is left
// unchanged.
func (p *Player) Restart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restartLocked()
	p.metrics.restarted()
}

// Stop cancels the armed timer, if any. Safe to call repeatedly and from the
// index handler.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.logger.Debug("stopping playback", "index", p.index)
	}
	p.cancelLocked()
}

// Close stops the player for good and releases its notification stream and
// metric callback. Further calls to any method are no-ops.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.cancelLocked()
	p.closed = true
	close(p.changes)
	p.mu.Unlock()

	// the metric callback takes mu, so unregister outside it
	if p.registration != nil {
		return p.registration.Unregister()
	}
	return nil
}

func (p *Player) currentLocked() core.Point {
	pt, _ := p.seq.At(p.index)
	return pt
}

// cancelLocked drops the armed timer and invalidates any fire already in flight.
func (p *Player) cancelLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.generation++
}

func (p *Player) restartLocked() {
	p.cancelLocked()
	if p.closed || !p.isPlaying {
		return
	}

	d := p.currentLocked().PlaybackDuration()
	if d <= 0 {
		p.logger.Debug("halting at waypoint", "index", p.index)
		return
	}

	gen := p.generation
	p.timer = p.clock.AfterFunc(d, func() { p.fire(gen) })
	p.logger.Debug("timer armed", "index", p.index, "duration", d)
}

func (p *Player) fire(gen uint64) {
	p.fireMu.Lock()
	defer p.fireMu.Unlock()

	p.mu.Lock()
	if p.closed || !p.isPlaying || p.timer == nil || gen != p.generation {
		// cancelled or superseded after the runtime already queued us
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.index = p.seq.Next(p.index)
	idx := p.index
	p.publishLocked(idx)
	p.restartLocked()
	p.mu.Unlock()

	p.metrics.advanced()
	if p.handler != nil {
		p.handler(idx)
	}
}

// publishLocked replaces any undelivered value with idx.
func (p *Player) publishLocked(idx int) {
	select {
	case <-p.changes:
	default:
	}
	select {
	case p.changes <- idx:
	default:
	}
}
