package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OCAP2/flyover/internal/player"
	"github.com/OCAP2/flyover/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPlayer struct {
	calls atomic.Int32
	st    player.Status
}

func (p *staticPlayer) Status() player.Status {
	p.calls.Add(1)
	return p.st
}

type fakeQueue struct{}

func (fakeQueue) Pending() int    { return 7 }
func (fakeQueue) Dropped() uint64 { return 2 }

func newStaticPlayer() *staticPlayer {
	return &staticPlayer{st: player.Status{
		Index:     1,
		Running:   true,
		IsPlaying: true,
		Point:     core.MustPoint(core.Coordinate{Latitude: 40.6892, Longitude: -74.0445}, core.DefaultConfiguration),
	}}
}

func TestGetProgramStatus(t *testing.T) {
	s := NewService(Dependencies{Player: newStaticPlayer(), Queue: fakeQueue{}})
	snap := s.GetProgramStatus()

	assert.Equal(t, 1, snap.Index)
	assert.True(t, snap.Running)
	assert.Equal(t, 40.6892, snap.Coordinate.Latitude)
	assert.Equal(t, 7, snap.PendingVisits)
	assert.Equal(t, uint64(2), snap.DroppedVisits)
}

func TestGetProgramStatus_NoQueue(t *testing.T) {
	s := NewService(Dependencies{Player: newStaticPlayer()})
	snap := s.GetProgramStatus()
	assert.Zero(t, snap.PendingVisits)
}

func TestStartWritesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	p := newStaticPlayer()
	s := NewService(Dependencies{
		Player:     p,
		Queue:      fakeQueue{},
		StatusFile: path,
		Interval:   10 * time.Millisecond,
	})

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 1, snap.Index)
	assert.Equal(t, 7, snap.PendingVisits)

	calls := p.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, p.calls.Load(), "no reports after Stop")
}

func TestStart_RequiresPlayer(t *testing.T) {
	s := NewService(Dependencies{})
	assert.Error(t, s.Start())
	assert.False(t, s.IsRunning())
}
