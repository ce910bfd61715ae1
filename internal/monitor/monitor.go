// Package monitor periodically reports the player and storage state.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/flyover/internal/player"
	"github.com/OCAP2/flyover/pkg/core"
)

const defaultInterval = time.Minute

// StatusSource is implemented by *player.Player.
type StatusSource interface {
	Status() player.Status
}

// WriteQueue is implemented by storage backends that buffer writes.
type WriteQueue interface {
	Pending() int
	Dropped() uint64
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Player StatusSource
	Queue  WriteQueue // optional
	Logger *slog.Logger
	// StatusFile is rewritten with the latest snapshot on every tick when set.
	StatusFile string
	Interval   time.Duration
}

// Snapshot is one status report.
type Snapshot struct {
	Time          time.Time       `json:"time"`
	Index         int             `json:"index"`
	Running       bool            `json:"running"`
	IsPlaying     bool            `json:"isPlaying"`
	Coordinate    core.Coordinate `json:"coordinate"`
	PendingVisits int             `json:"pendingVisits"`
	DroppedVisits uint64          `json:"droppedVisits"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current program status
func (s *Service) GetProgramStatus() Snapshot {
	st := s.deps.Player.Status()
	snap := Snapshot{
		Time:       time.Now(),
		Index:      st.Index,
		Running:    st.Running,
		IsPlaying:  st.IsPlaying,
		Coordinate: st.Point.Coordinate(),
	}
	if s.deps.Queue != nil {
		snap.PendingVisits = s.deps.Queue.Pending()
		snap.DroppedVisits = s.deps.Queue.Dropped()
	}
	return snap
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if s.deps.Player == nil {
		return fmt.Errorf("monitor: no player to watch")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stopChan, s.done)
	return nil
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	logger := s.deps.Logger
	logger.Debug("Starting status monitor", "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.report()
		}
	}
}

func (s *Service) report() {
	snap := s.GetProgramStatus()
	s.deps.Logger.Info("Player status",
		"index", snap.Index,
		"running", snap.Running,
		"isPlaying", snap.IsPlaying,
		"coordinate", snap.Coordinate.String(),
		"pendingVisits", snap.PendingVisits,
		"droppedVisits", snap.DroppedVisits,
	)

	if s.deps.StatusFile == "" {
		return
	}
	if err := writeStatusFile(s.deps.StatusFile, snap); err != nil {
		s.deps.Logger.Error("Error writing status file", "path", s.deps.StatusFile, "error", err)
	}
}

func writeStatusFile(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
