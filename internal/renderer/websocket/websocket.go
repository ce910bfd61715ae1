// Package websocket streams flyover commands to a remote map renderer.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/OCAP2/flyover/pkg/core"
	"github.com/OCAP2/flyover/pkg/streaming"
)

// Config holds WebSocket renderer configuration.
type Config struct {
	URL    string
	Secret string
}

// Renderer forwards camera commands over a WebSocket. Session messages wait
// for an ack; camera commands are fire-and-forget.
type Renderer struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket renderer. Call Init before use.
func New(cfg Config, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the renderer.
func (r *Renderer) Init(ctx context.Context) error {
	return r.conn.dial(ctx, r.cfg.URL, r.cfg.Secret)
}

// Close disconnects from the renderer.
func (r *Renderer) Close() error {
	return r.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartSession announces the session and itinerary and waits for the ack.
func (r *Renderer) StartSession(ctx context.Context, s *core.Session, seq *core.PlaybackSequence) error {
	points := seq.Points()
	coords := make([]core.Coordinate, len(points))
	for i, p := range points {
		coords[i] = p.Coordinate()
	}

	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s, Points: coords})
	if err != nil {
		return err
	}

	r.conn.mu.Lock()
	r.conn.cachedStartMsg = data
	r.conn.cachedFlyTo = nil
	r.conn.mu.Unlock()

	return r.conn.sendAndWait(ctx, data, streaming.TypeStartSession, ackTimeout)
}

// EndSession closes the session and waits for the ack.
func (r *Renderer) EndSession(ctx context.Context, s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeEndSession, streaming.EndSessionPayload{SessionID: s.ID.String()})
	if err != nil {
		return err
	}

	err = r.conn.sendAndWait(ctx, data, streaming.TypeEndSession, ackTimeout)

	// Clear cached state regardless of error.
	r.conn.mu.Lock()
	r.conn.cachedStartMsg = nil
	r.conn.cachedFlyTo = nil
	r.conn.mu.Unlock()

	return err
}

// FlyTo sends the camera to a point. The command is cached for replay.
func (r *Renderer) FlyTo(_ context.Context, cmd core.FlyToCommand) error {
	data, err := marshalEnvelope(streaming.TypeFlyTo, cmd)
	if err != nil {
		return err
	}

	r.conn.mu.Lock()
	r.conn.cachedFlyTo = data
	r.conn.mu.Unlock()

	r.conn.send(data)
	return nil
}

// StopFlyover halts the camera. A stopped camera is not replayed on reconnect.
func (r *Renderer) StopFlyover(_ context.Context) error {
	data, err := marshalEnvelope(streaming.TypeStopFlyover, struct{}{})
	if err != nil {
		return err
	}

	r.conn.mu.Lock()
	r.conn.cachedFlyTo = nil
	r.conn.mu.Unlock()

	r.conn.send(data)
	return nil
}

// IndexChanged reports the player position.
func (r *Renderer) IndexChanged(_ context.Context, index int) error {
	data, err := marshalEnvelope(streaming.TypeIndexChanged, streaming.IndexChangedPayload{Index: index})
	if err != nil {
		return err
	}
	r.conn.send(data)
	return nil
}
