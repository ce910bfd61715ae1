package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/OCAP2/flyover/internal/clock"
	"github.com/OCAP2/flyover/internal/config"
	"github.com/OCAP2/flyover/internal/control"
	"github.com/OCAP2/flyover/internal/director"
	"github.com/OCAP2/flyover/internal/dispatcher"
	"github.com/OCAP2/flyover/internal/player"
	"github.com/OCAP2/flyover/internal/renderer"
	"github.com/OCAP2/flyover/internal/storage/memory"
	"github.com/OCAP2/flyover/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *director.Director) {
	t.Helper()
	seq, err := core.NewPlaybackSequence(
		core.MustPoint(core.Coordinate{Latitude: 51.5007, Longitude: -0.1246}, core.DefaultConfiguration),
		core.MustPoint(core.Coordinate{Latitude: 51.5081, Longitude: -0.0759}, core.LowflightConfiguration),
		core.MustPoint(core.Coordinate{Latitude: 51.5033, Longitude: -0.1195}, core.GiddyConfiguration),
	)
	require.NoError(t, err)

	c := clock.NewFake(time.Date(2026, 4, 5, 6, 7, 8, 0, time.UTC))
	p, err := player.New(seq, true, player.WithClock(c))
	require.NoError(t, err)

	store := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, store.Init())

	d, err := director.New(director.Dependencies{
		Player:   p,
		Renderer: renderer.NewLog(slog.Default()),
		Storage:  store,
		Clock:    c,
	})
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Close(context.Background()) })

	disp, err := dispatcher.New(slog.Default())
	require.NoError(t, err)
	t.Cleanup(disp.Close)
	control.NewManager(control.Dependencies{Controller: d, Visits: store}).RegisterHandlers(disp)

	return New(config.APIConfig{Address: "127.0.0.1:0"}, disp, nil), d
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"flyover"}`, rec.Body.String())
}

func TestPlayerStatus(t *testing.T) {
	s, d := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/v1/player")
	require.Equal(t, http.StatusOK, rec.Code)

	st := decode[control.Status](t, rec)
	assert.Equal(t, 0, st.Index)
	assert.Equal(t, 3, st.PointCount)
	assert.True(t, st.Running)
	assert.Equal(t, "default", st.Preset)
	require.NotNil(t, st.Session)
	assert.Equal(t, d.Session().ID, *st.Session)
}

func TestPlayerStopRestart(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/player/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[control.Status](t, rec).Running)

	rec = do(t, s, http.MethodPost, "/api/v1/player/restart")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[control.Status](t, rec).Running)

	rec = do(t, s, http.MethodGet, "/api/v1/player/stop")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlayerAfterClose(t *testing.T) {
	s, d := newTestServer(t)
	require.NoError(t, d.Close(context.Background()))

	rec := do(t, s, http.MethodPost, "/api/v1/player/restart")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVisits(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/visits?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Visits []control.VisitView `json:"visits"`
	}](t, rec)
	require.Len(t, body.Visits, 1)
	assert.Equal(t, 0, body.Visits[0].Index)
	assert.Equal(t, "default", body.Visits[0].Preset)

	rec = do(t, s, http.MethodGet, "/api/v1/visits?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodGet, "/api/v1/visits?limit=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodGet, "/health")

	rec := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `flyover_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}

type failingDispatcher struct{ err error }

func (f failingDispatcher) Dispatch(context.Context, dispatcher.Command) (any, error) {
	return nil, f.err
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{director.ErrNotStarted, http.StatusConflict},
		{control.ErrNoSession, http.StatusNotFound},
		{control.ErrVisitsUnsupported, http.StatusNotImplemented},
		{dispatcher.ErrClosed, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s := New(config.APIConfig{}, failingDispatcher{err: tc.err}, nil)
		rec := do(t, s, http.MethodGet, "/api/v1/visits")
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
		assert.Contains(t, rec.Body.String(), tc.err.Error())
	}
}
