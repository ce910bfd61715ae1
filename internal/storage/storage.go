// Package storage defines where flyover sessions and visits are persisted.
package storage

import (
	"github.com/OCAP2/flyover/pkg/core"
	"github.com/google/uuid"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session, seq *core.PlaybackSequence) error
	EndSession(s *core.Session) error

	// RecordVisit stores the player arriving at a point of the current session.
	RecordVisit(v *core.Visit) error
}

// Querier is an optional interface for backends that can read visits back.
type Querier interface {
	// Visits returns the visits of a session in arrival order, newest last.
	// A limit <= 0 returns every visit.
	Visits(sessionID uuid.UUID, limit int) ([]core.Visit, error)
}

// Exporter is an optional interface for backends that write a file per session.
type Exporter interface {
	GetExportedFilePath() string
}
