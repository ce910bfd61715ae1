// Package memory keeps visits in memory and exports each session to JSON.
package memory

import (
	"errors"
	"sync"

	"github.com/OCAP2/flyover/internal/config"
	"github.com/OCAP2/flyover/pkg/core"
	"github.com/google/uuid"
)

// ErrNoSession is returned when a visit references an unknown session.
var ErrNoSession = errors.New("no such session")

// SessionRecord groups a session with its itinerary and visits
type SessionRecord struct {
	Session core.Session
	Points  []core.Point
	Visits  []core.Visit
}

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg config.MemoryConfig

	current  *SessionRecord
	sessions map[uuid.UUID]*SessionRecord

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*SessionRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports a session left open.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return nil
	}
	err := b.exportJSON(b.current)
	b.current = nil
	return err
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *core.Session, seq *core.PlaybackSequence) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record := &SessionRecord{
		Session: *s,
		Points:  seq.Points(),
		Visits:  make([]core.Visit, 0),
	}
	b.current = record
	b.sessions[s.ID] = record
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.sessions[s.ID]
	if !ok {
		return ErrNoSession
	}
	record.Session = *s
	if b.current == record {
		b.current = nil
	}
	return b.exportJSON(record)
}

// RecordVisit appends a visit to its session
func (b *Backend) RecordVisit(v *core.Visit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.sessions[v.SessionID]
	if !ok {
		return ErrNoSession
	}
	record.Visits = append(record.Visits, *v)
	return nil
}

// Visits returns a copy of the visits recorded for a session.
func (b *Backend) Visits(sessionID uuid.UUID, limit int) ([]core.Visit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.sessions[sessionID]
	if !ok {
		return nil, ErrNoSession
	}
	visits := record.Visits
	if limit > 0 && limit < len(visits) {
		visits = visits[len(visits)-limit:]
	}
	cp := make([]core.Visit, len(visits))
	copy(cp, visits)
	return cp, nil
}

// GetExportedFilePath returns the path of the last exported session.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
