package player

import (
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/flyover/internal/clock"
	"github.com/OCAP2/flyover/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 5, 17, 9, 0, 0, 0, time.UTC)

func newSequence(t *testing.T, durations ...time.Duration) *core.PlaybackSequence {
	t.Helper()
	points := make([]core.Point, len(durations))
	for i, d := range durations {
		p, err := core.NewPoint(
			core.Coordinate{Latitude: float64(i), Longitude: float64(i) * 2},
			core.DefaultConfiguration.WithPlaybackDuration(d),
		)
		require.NoError(t, err)
		points[i] = p
	}
	seq, err := core.NewPlaybackSequence(points...)
	require.NoError(t, err)
	return seq
}

// pending returns the buffered index, if any, without blocking.
func pending(p *Player) (int, bool) {
	select {
	case i, ok := <-p.Changes():
		return i, ok
	default:
		return 0, false
	}
}

func TestNew_CurrentPointMatchesStartIndex(t *testing.T) {
	seq := newSequence(t, time.Second, 2*time.Second, 3*time.Second)

	for i := 0; i < seq.Len(); i++ {
		for _, playing := range []bool{true, false} {
			c := clock.NewFake(epoch)
			p, err := New(seq, playing, WithStartIndex(i), WithClock(c))
			require.NoError(t, err)

			want, _ := seq.At(i)
			assert.Equal(t, want, p.CurrentPoint())
			assert.Equal(t, i, p.Index())
			_, ok := pending(p)
			assert.False(t, ok, "initial index must not be emitted")
			require.NoError(t, p.Close())
		}
	}
}

func TestNew_Errors(t *testing.T) {
	seq := newSequence(t, time.Second, time.Second, time.Second)

	_, err := New(nil, true)
	assert.ErrorIs(t, err, core.ErrInvalidSequence)

	_, err = New(&core.PlaybackSequence{}, true)
	assert.ErrorIs(t, err, core.ErrInvalidSequence)

	_, err = New(seq, true, WithStartIndex(3))
	assert.ErrorIs(t, err, core.ErrIndexOutOfRange)

	_, err = New(seq, true, WithStartIndex(-1))
	assert.ErrorIs(t, err, core.ErrIndexOutOfRange)
}

func TestPlayer_CyclesThroughSequence(t *testing.T) {
	c := clock.NewFake(epoch)
	seq := newSequence(t, time.Second, time.Second, time.Second)
	p, err := New(seq, true, WithClock(c))
	require.NoError(t, err)
	defer p.Close()

	assert.True(t, p.Running())

	var emitted []int
	for n := 0; n < 6; n++ {
		c.Advance(time.Second)
		i, ok := pending(p)
		require.True(t, ok, "advance %d produced no notification", n)
		emitted = append(emitted, i)
	}
	assert.Equal(t, []int{1, 2, 0, 1, 2, 0}, emitted)
	assert.Equal(t, 1, c.Pending())
}

func TestPlayer_UsesPerPointDuration(t *testing.T) {
	c := clock.NewFake(epoch)
	seq := newSequence(t, time.Second, 5*time.Second)
	p, err := New(seq, true, WithClock(c))
	require.NoError(t, err)
	defer p.Close()

	c.Advance(time.Second)
	assert.Equal(t, 1, p.Index())

	c.Advance(4 * time.Second)
	assert.Equal(t, 1, p.Index(), "second point lasts five seconds")

	c.Advance(time.Second)
	assert.Equal(t, 0, p.Index())
}

func TestPlayer_NotPlaying_NeverArms(t *testing.T) {
	c := clock.NewFake(epoch)
	seq := newSequence(t, time.Second, time.Second)
	p, err := New(seq, false, WithClock(c))
	require.NoError(t, err)
	defer p.Close()

	assert.False(t, p.Running())
	assert.Equal(t, 0, c.Pending())

	c.Advance(time.Hour)
	_, ok := pending(p)
	assert.False(t, ok)

	p.Restart()
	assert.False(t, p.Running(), "playing flag is fixed at construction")
	assert.Equal(t, 0, c.Pending())
}

func TestPlayer_ZeroDurationHalts(t *testing.T) {
	c := clock.NewFake(epoch)
	seq := newSequence(t, time.Second, 0, time.Second)
	p, err := New(seq, true, WithClock(c))
	require.NoError(t, err)
	defer p.Close()

	c.Advance(time.Second)
	i, ok := pending(p)
	require.True(t, ok)
	assert.Equal(t, 1, i)
	assert.False(t, p.Running())
	assert.Equal(t, 0, c.Pending())

	c.Advance(time.Hour)
	_, ok = pending(p)
	assert.False(t, ok)
	assert.Equal(t, 1, p.Index())

	// explicit restart on a zero-duration point still does not advance
	p.Restart()
	assert.False(t, p.Running())
}

func TestPlayer_ZeroDurationStartPoint(t *testing.T) {
	c := clock.NewFake(epoch)
	p, err := New(newSequence(t, 0), true, WithClock(c))
	require.NoError(t, err)
	defer p.Close()

	assert.False(t, p.Running())
	assert.Equal(t, 0, c.Pending())
}

func TestPlayer_StopTwice(t *testing.T) {
	c := clock.NewFake(epoch)
	p, err := New(newSequence(t, time.Second, time.Second), true, WithClock(c))
	require.NoError(t, err)
	defer p.Close()

	p.Stop()
	assert.False(t, p.Running())
	assert.Equal(t, 0, c.Pending())

	p.Stop()
	assert.False(t, p.Running())
	assert.Equal(t, 0, c.Pending())

	c.Advance(time.Minute)
	_, ok := pending(p)
	assert.False(t, ok)
}

func TestPlayer_StopThenRestartResumesFromCurrentIndex(t *testing.T) {
	c := clock.NewFake(epoch)
	p, err := New(newSequence(t, time.Second, time.Second, time.Second), true, WithClock(c))
	require.NoError(t, err)
	defer p.Close()

	c.Advance(time.Second)
	c.Advance(time.Second)
	assert.Equal(t, 2, p.Index())
	_, _ = pending(p)

	p.Stop()
	c.Advance(10 * time.Second)
	assert.Equal(t, 2, p.Index())

	p.Restart()
	assert.True(t, p.Running())
	c.Advance(time.Second)
	i, ok := pending(p)
	require.True(t, ok)
	assert.Equal(t, 0, i)
}

func TestPlayer_RestartRearmsFullDuration(t *testing.T) {
	c := clock.NewFake(epoch)
	p, err := New(newSequence(t, time.Second, time.Second), true, WithClock(c))
	require.NoError(t, err)
	defer p.Close()

	c.Advance(600 * time.Millisecond)
	p.Restart()
	c.Advance(600 * time.Millisecond)
	assert.Equal(t, 0, p.Index())
	assert.Equal(t, 1, c.Pending(), "restart must not leave a second timer behind")

	c.Advance(400 * time.Millisecond)
	assert.Equal(t, 1, p.Index())
}

func TestPlayer_ChangesKeepsMostRecentOnly(t *testing.T) {
	c := clock.NewFake(epoch)
	p, err := New(newSequence(t, time.Second, time.Second, time.Second), true, WithClock(c))
	require.NoError(t, err)
	defer p.Close()

	c.Advance(3 * time.Second)

	i, ok := pending(p)
	require.True(t, ok)
	assert.Equal(t, 0, i)
	_, ok = pending(p)
	assert.False(t, ok)
}

// leakyClock hands out timers whose Stop never wins the race, so the
// callback still runs after cancellation.
type leakyClock struct {
	mu    sync.Mutex
	funcs []func()
}

type leakyTimer struct{}

func (leakyTimer) Stop() bool { return false }

func (c *leakyClock) Now() time.Time { return epoch }

func (c *leakyClock) AfterFunc(_ time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs = append(c.funcs, f)
	return leakyTimer{}
}

func (c *leakyClock) fireAll() {
	c.mu.Lock()
	funcs := c.funcs
	c.funcs = nil
	c.mu.Unlock()
	for _, f := range funcs {
		f()
	}
}

func TestPlayer_StaleFireAfterStopIsIgnored(t *testing.T) {
	c := &leakyClock{}
	p, err := New(newSequence(t, time.Second, time.Second), true, WithClock(c))
	require.NoError(t, err)
	defer p.Close()

	p.Stop()
	c.fireAll()

	assert.Equal(t, 0, p.Index())
	_, ok := pending(p)
	assert.False(t, ok)
}

func TestPlayer_StaleFireAfterRestartIsIgnored(t *testing.T) {
	c := &leakyClock{}
	p, err := New(newSequence(t, time.Second, time.Second, time.Second), true, WithClock(c))
	require.NoError(t, err)
	defer p.Close()

	// two timers in flight, only the latest one is live
	p.Restart()
	c.fireAll()

	assert.Equal(t, 1, p.Index())
}

func TestPlayer_StaleFireAfterCloseIsIgnored(t *testing.T) {
	c := &leakyClock{}
	calls := 0
	p, err := New(newSequence(t, time.Second, time.Second), true,
		WithClock(c),
		WithIndexHandler(func(int) { calls++ }),
	)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.NotPanics(t, c.fireAll)
	assert.Equal(t, 0, calls)

	_, ok := <-p.Changes()
	assert.False(t, ok, "changes channel is closed")
}

func TestPlayer_HandlerCanStop(t *testing.T) {
	c := clock.NewFake(epoch)
	var p *Player
	var seen []int
	p, err := New(newSequence(t, time.Second, time.Second, time.Second), true,
		WithClock(c),
		WithIndexHandler(func(i int) {
			seen = append(seen, i)
			if i == 2 {
				p.Stop()
			}
		}),
	)
	require.NoError(t, err)
	defer p.Close()

	c.Advance(10 * time.Second)

	assert.Equal(t, []int{1, 2}, seen)
	assert.False(t, p.Running())
	assert.Equal(t, 0, c.Pending())
}

func TestPlayer_CloseIsIdempotent(t *testing.T) {
	c := clock.NewFake(epoch)
	p, err := New(newSequence(t, time.Second), true, WithClock(c))
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	p.Restart()
	p.Stop()
	assert.False(t, p.Running())
	assert.Equal(t, 0, c.Pending())
}

func TestPlayer_Status(t *testing.T) {
	c := clock.NewFake(epoch)
	seq := newSequence(t, time.Second, time.Second)
	p, err := New(seq, true, WithClock(c), WithStartIndex(1))
	require.NoError(t, err)
	defer p.Close()

	st := p.Status()
	assert.Equal(t, 1, st.Index)
	assert.True(t, st.Running)
	assert.True(t, st.IsPlaying)
	want, _ := seq.At(1)
	assert.Equal(t, want, st.Point)
	assert.Same(t, seq, p.Sequence())
}

func TestPlayer_RealClock(t *testing.T) {
	seq := newSequence(t, 5*time.Millisecond, 5*time.Millisecond)
	p, err := New(seq, true)
	require.NoError(t, err)
	defer p.Close()

	select {
	case i := <-p.Changes():
		assert.Equal(t, 1, i)
	case <-time.After(2 * time.Second):
		t.Fatal("no index change with real clock")
	}
}

func TestPlayer_CheckpointDiscardsReflectedChange(t *testing.T) {
	c := clock.NewFake(epoch)
	seq := newSequence(t, time.Second, time.Second, time.Second)
	p, err := New(seq, true, WithClock(c))
	require.NoError(t, err)
	defer p.Close()

	c.Advance(time.Second)
	st := p.Checkpoint()
	assert.Equal(t, 1, st.Index)
	assert.True(t, st.Running)
	_, ok := pending(p)
	assert.False(t, ok, "change already reflected in the checkpoint")

	c.Advance(time.Second)
	i, ok := pending(p)
	require.True(t, ok)
	assert.Equal(t, 2, i)

	require.NoError(t, p.Close())
	assert.Equal(t, 2, p.Checkpoint().Index)
}
