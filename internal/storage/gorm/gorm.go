// Package gormstorage implements the storage.Backend interface on GORM with an
// internal visit queue drained by a background writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/flyover/internal/database"
	"github.com/OCAP2/flyover/internal/model"
	"github.com/OCAP2/flyover/internal/model/convert"
	"github.com/OCAP2/flyover/internal/queue"
	"github.com/OCAP2/flyover/pkg/core"
	"github.com/google/uuid"

	"gorm.io/gorm"
)

const (
	defaultFlushInterval = 2 * time.Second
	maxPendingVisits     = 100_000
)

// ErrNoDB is returned by queries when the backend runs without a database.
var ErrNoDB = errors.New("no database configured")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB may be nil: sessions are then tracked in memory only and visits
	// are discarded instead of queued.
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// pendingVisit is a converted visit waiting for its session's row id.
type pendingVisit struct {
	session uuid.UUID
	visit   model.Visit
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	visits *queue.Queue[pendingVisit]

	mu       sync.Mutex
	sessions map[uuid.UUID]uint // session uuid -> row id
	flushMu  sync.Mutex

	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{
		deps:     deps,
		visits:   queue.NewBounded[pendingVisit](maxPendingVisits),
		sessions: make(map[uuid.UUID]uint),
	}
}

// DB returns the underlying connection, nil in queue-only mode.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB != nil {
		if err := database.Migrate(b.deps.DB); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
		b.deps.Logger.Info("Database schema migrated", "dialect", b.deps.DB.Dialector.Name())
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the writer goroutine and flushes what is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	<-b.done
	return b.Flush()
}

// StartSession inserts the session synchronously so visits can reference its id.
func (b *Backend) StartSession(s *core.Session, seq *core.PlaybackSequence) error {
	row, err := convert.CoreToSession(*s, seq)
	if err != nil {
		return err
	}

	if b.deps.DB != nil {
		if err := b.deps.DB.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
	}

	b.mu.Lock()
	b.sessions[s.ID] = row.ID
	b.mu.Unlock()
	return nil
}

// EndSession flushes pending visits and stamps the end time.
func (b *Backend) EndSession(s *core.Session) error {
	if err := b.Flush(); err != nil {
		return err
	}

	b.mu.Lock()
	id, ok := b.sessions[s.ID]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown session %s", s.ID)
	}

	if b.deps.DB == nil {
		return nil
	}
	ended := s.EndedAt
	if ended.IsZero() {
		ended = time.Now()
	}
	err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Update("ended_at", ended).Error
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// RecordVisit converts and queues a visit. Without a database it is a no-op.
func (b *Backend) RecordVisit(v *core.Visit) error {
	if b.deps.DB == nil {
		return nil
	}
	b.visits.Push(pendingVisit{session: v.SessionID, visit: convert.CoreToVisit(*v)})
	return nil
}

// Pending returns the number of queued visits.
func (b *Backend) Pending() int {
	return b.visits.Len()
}

// Dropped returns how many visits were discarded because the write queue was full.
func (b *Backend) Dropped() uint64 {
	return b.visits.Dropped()
}

// Visits reads the visits of a session back, oldest first.
func (b *Backend) Visits(sessionID uuid.UUID, limit int) ([]core.Visit, error) {
	if b.deps.DB == nil {
		return nil, ErrNoDB
	}
	if err := b.Flush(); err != nil {
		return nil, err
	}

	var session model.Session
	if err := b.deps.DB.Where("uuid = ?", sessionID.String()).First(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	q := b.deps.DB.Where("session_id = ?", session.ID).Order("arrived_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.Visit
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}

	visits := make([]core.Visit, len(rows))
	for i, row := range rows {
		visits[len(rows)-1-i] = convert.VisitToCore(row, sessionID)
	}
	return visits, nil
}

// Flush writes every queued visit now.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	if b.deps.DB == nil || b.visits.Empty() {
		return nil
	}

	b.mu.Lock()
	ids := make(map[uuid.UUID]uint, len(b.sessions))
	for k, v := range b.sessions {
		ids[k] = v
	}
	b.mu.Unlock()

	return writeQueue(b.deps.DB, b.visits, "visits", func(items []pendingVisit) []model.Visit {
		rows := make([]model.Visit, 0, len(items))
		for _, item := range items {
			id, ok := ids[item.session]
			if !ok {
				b.deps.Logger.Warn("Dropping visit of unknown session", "session", item.session)
				continue
			}
			item.visit.SessionID = id
			rows = append(rows, item.visit)
		}
		return rows
	})
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items go back to the front of the queue.
func writeQueue[T, R any](db *gorm.DB, q *queue.Queue[T], name string, prepare func([]T) []R) error {
	items := q.GetAndEmpty()
	if len(items) == 0 {
		return nil
	}
	rows := prepare(items)
	if len(rows) == 0 {
		return nil
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		q.Requeue(items...)
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	return nil
}

// writerLoop periodically drains the queue into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("DB writer failed", "error", err, "pending", b.visits.Len())
			}
		}
	}
}
