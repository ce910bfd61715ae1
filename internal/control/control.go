// Package control exposes the player's runtime controls as dispatcher
// commands.
package control

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/OCAP2/flyover/internal/dispatcher"
	"github.com/OCAP2/flyover/internal/player"
	"github.com/OCAP2/flyover/internal/storage"
	"github.com/OCAP2/flyover/pkg/core"
	"github.com/google/uuid"
)

// Command names
const (
	CmdRestart = ":PLAYER:RESTART:"
	CmdStop    = ":PLAYER:STOP:"
	CmdStatus  = ":PLAYER:STATUS:"
	CmdVisits  = ":SESSION:VISITS:"
)

// ErrVisitsUnsupported is returned when the storage backend cannot read visits back.
var ErrVisitsUnsupported = errors.New("storage backend does not support reading visits")

// ErrNoSession is returned by the visits command before a session exists.
var ErrNoSession = errors.New("no active session")

// Controller is what the commands act on.
type Controller interface {
	Restart(ctx context.Context) (player.Status, error)
	Stop(ctx context.Context) (player.Status, error)
	Player() *player.Player
	Session() *core.Session
}

// Status is the reply of every player command.
type Status struct {
	Session          *uuid.UUID      `json:"session,omitempty"`
	Index            int             `json:"index"`
	PointCount       int             `json:"pointCount"`
	Running          bool            `json:"running"`
	IsPlaying        bool            `json:"isPlaying"`
	Coordinate       core.Coordinate `json:"coordinate"`
	Preset           string          `json:"preset"`
	PlaybackDuration int64           `json:"playbackDurationMs"`
}

// NewStatus flattens a player snapshot.
func NewStatus(st player.Status, pointCount int, s *core.Session) Status {
	out := Status{
		Index:            st.Index,
		PointCount:       pointCount,
		Running:          st.Running,
		IsPlaying:        st.IsPlaying,
		Coordinate:       st.Point.Coordinate(),
		Preset:           st.Point.Configuration().Name,
		PlaybackDuration: st.Point.PlaybackDuration().Milliseconds(),
	}
	if s != nil {
		id := s.ID
		out.Session = &id
	}
	return out
}

// Dependencies holds all dependencies for the control commands
type Dependencies struct {
	Controller Controller
	// Visits is optional; without it CmdVisits fails with ErrVisitsUnsupported.
	Visits storage.Querier
}

// Manager implements the control command handlers.
type Manager struct {
	deps Dependencies
}

// NewManager creates the command handlers.
func NewManager(deps Dependencies) *Manager {
	return &Manager{deps: deps}
}

// RegisterHandlers registers all control commands with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdRestart, m.handleRestart, dispatcher.Logged())
	d.Register(CmdStop, m.handleStop, dispatcher.Logged())
	d.Register(CmdStatus, m.handleStatus)
	d.Register(CmdVisits, m.handleVisits)
}

func (m *Manager) status(st player.Status) Status {
	c := m.deps.Controller
	return NewStatus(st, c.Player().Sequence().Len(), c.Session())
}

func (m *Manager) handleRestart(ctx context.Context, _ dispatcher.Command) (any, error) {
	st, err := m.deps.Controller.Restart(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restart player: %w", err)
	}
	return m.status(st), nil
}

func (m *Manager) handleStop(ctx context.Context, _ dispatcher.Command) (any, error) {
	st, err := m.deps.Controller.Stop(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to stop player: %w", err)
	}
	return m.status(st), nil
}

func (m *Manager) handleStatus(_ context.Context, _ dispatcher.Command) (any, error) {
	return m.status(m.deps.Controller.Player().Status()), nil
}

// handleVisits takes an optional limit argument.
func (m *Manager) handleVisits(_ context.Context, cmd dispatcher.Command) (any, error) {
	if m.deps.Visits == nil {
		return nil, ErrVisitsUnsupported
	}
	s := m.deps.Controller.Session()
	if s == nil {
		return nil, ErrNoSession
	}

	limit := 0
	if len(cmd.Args) > 0 && cmd.Args[0] != "" {
		n, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid limit %q: %w", cmd.Args[0], err)
		}
		limit = n
	}
	return m.deps.Visits.Visits(s.ID, limit)
}

// VisitView is the wire form of a recorded visit.
type VisitView struct {
	Index      int             `json:"index"`
	Coordinate core.Coordinate `json:"coordinate"`
	Preset     string          `json:"preset"`
	ArrivedAt  time.Time       `json:"arrivedAt"`
}

// NewVisitViews converts visits for display.
func NewVisitViews(visits []core.Visit) []VisitView {
	out := make([]VisitView, len(visits))
	for i, v := range visits {
		out[i] = VisitView{
			Index:      v.Index,
			Coordinate: v.Coordinate,
			Preset:     v.Configuration.Name,
			ArrivedAt:  v.ArrivedAt,
		}
	}
	return out
}
