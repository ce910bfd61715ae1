// Package postgres implements the storage.Backend interface on PostgreSQL/PostGIS.
// It owns the connection through database.Manager, which falls back to an
// in-memory SQLite database when Postgres is unreachable, and delegates the
// writes to the GORM backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/flyover/internal/config"
	"github.com/OCAP2/flyover/internal/database"
	gormstorage "github.com/OCAP2/flyover/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	Config config.DBConfig
	DBLog  zerolog.Logger
	Logger *slog.Logger
}

// Backend embeds the GORM backend once connected.
type Backend struct {
	*gormstorage.Backend
	deps    Dependencies
	manager *database.Manager
}

// New creates a new Postgres storage backend. Call Init to connect.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		deps:    deps,
		manager: database.NewManager(deps.Config, deps.DBLog),
	}
}

// Init connects, then initializes the embedded GORM backend.
func (b *Backend) Init() error {
	if err := b.manager.Connect(); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if b.manager.ShouldSaveLocal {
		b.deps.Logger.Warn("Postgres unavailable, visits are kept in memory only")
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: b.manager.DB, Logger: b.deps.Logger})
	return b.Backend.Init()
}

// Local reports whether the backend fell back to SQLite.
func (b *Backend) Local() bool {
	return b.manager.ShouldSaveLocal
}

// Close flushes pending writes and closes the connection pool.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.manager.Close()
}
