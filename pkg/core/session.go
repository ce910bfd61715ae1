// pkg/core/session.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// Session is one run of a player over a sequence.
type Session struct {
	ID         uuid.UUID `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt,omitempty"`
	PointCount int       `json:"pointCount"`
	StartIndex int       `json:"startIndex"`
	IsPlaying  bool      `json:"isPlaying"`
}

// NewSession creates a session for the given sequence.
func NewSession(seq *PlaybackSequence, startIndex int, isPlaying bool, now time.Time) *Session {
	return &Session{
		ID:         uuid.New(),
		StartedAt:  now,
		PointCount: seq.Len(),
		StartIndex: startIndex,
		IsPlaying:  isPlaying,
	}
}

// Visit records the player arriving at a point.
type Visit struct {
	SessionID     uuid.UUID           `json:"sessionId"`
	Index         int                 `json:"index"`
	Coordinate    Coordinate          `json:"coordinate"`
	Configuration CameraConfiguration `json:"configuration"`
	ArrivedAt     time.Time           `json:"arrivedAt"`
}

// NewVisit builds a visit of point p at index i.
func NewVisit(sessionID uuid.UUID, i int, p Point, at time.Time) *Visit {
	return &Visit{
		SessionID:     sessionID,
		Index:         i,
		Coordinate:    p.Coordinate(),
		Configuration: p.Configuration(),
		ArrivedAt:     at,
	}
}

// Mercator is a position projected to EPSG:3857, in metres.
type Mercator struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FlyToCommand asks the renderer to fly the camera to a point.
type FlyToCommand struct {
	Index         int                 `json:"index"`
	Coordinate    Coordinate          `json:"coordinate"`
	Mercator      Mercator            `json:"mercator"`
	Configuration CameraConfiguration `json:"configuration"`
}
