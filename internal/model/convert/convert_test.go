package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/OCAP2/flyover/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSequence(t *testing.T, n int) *core.PlaybackSequence {
	t.Helper()
	points := make([]core.Point, n)
	for i := range points {
		points[i] = core.MustPoint(core.Coordinate{Latitude: float64(i), Longitude: float64(10 * i)}, core.SeasideConfiguration)
	}
	seq, err := core.NewPlaybackSequence(points...)
	require.NoError(t, err)
	return seq
}

func TestCoreToSession(t *testing.T) {
	seq := testSequence(t, 3)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := core.NewSession(seq, 1, true, start)

	m, err := CoreToSession(*s, seq)
	require.NoError(t, err)

	assert.Equal(t, s.ID.String(), m.UUID)
	assert.Equal(t, start, m.StartedAt)
	assert.Nil(t, m.EndedAt)
	assert.Equal(t, 3, m.PointCount)
	assert.Equal(t, 1, m.StartIndex)
	assert.True(t, m.IsPlaying)
	assert.Equal(t, 3, m.Path.Coordinates().Length())

	var itinerary []ItineraryPoint
	require.NoError(t, json.Unmarshal(m.Itinerary, &itinerary))
	require.Len(t, itinerary, 3)
	assert.Equal(t, 20.0, itinerary[2].Coordinate.Longitude)
	assert.Equal(t, "seaside", itinerary[2].Configuration.Name)
}

func TestCoreToSession_SinglePointHasNoPath(t *testing.T) {
	seq := testSequence(t, 1)
	m, err := CoreToSession(*core.NewSession(seq, 0, false, time.Now()), seq)
	require.NoError(t, err)
	assert.True(t, m.Path.IsEmpty())
}

func TestSessionRoundTrip(t *testing.T) {
	seq := testSequence(t, 2)
	s := core.NewSession(seq, 0, true, time.Now().UTC())
	s.EndedAt = s.StartedAt.Add(time.Minute)

	m, err := CoreToSession(*s, seq)
	require.NoError(t, err)
	assert.NotNil(t, m.EndedAt)

	back, err := SessionToCore(m)
	require.NoError(t, err)
	assert.Equal(t, *s, back)

	m.UUID = "nope"
	_, err = SessionToCore(m)
	assert.Error(t, err)
}

func TestCoreToVisit(t *testing.T) {
	p := core.MustPoint(core.Coordinate{Latitude: 0, Longitude: 180, Altitude: 42}, core.GiddyConfiguration)
	s := core.NewSession(testSequence(t, 1), 0, true, time.Now())
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	v := core.NewVisit(s.ID, 4, p, at)

	m := CoreToVisit(*v)

	assert.Equal(t, 4, m.Index)
	assert.Equal(t, at, m.ArrivedAt)
	assert.Equal(t, "giddy", m.Preset)
	assert.Equal(t, int64(5000), m.PlaybackDuration)
	assert.Equal(t, 42.0, m.Altitude)

	xy, ok := m.Position.XY()
	require.True(t, ok)
	assert.InDelta(t, 20037508.34, xy.X, 1)

	back := VisitToCore(m, s.ID)
	assert.Equal(t, *v, back)
}
