package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/flyover/internal/renderer"
	"github.com/OCAP2/flyover/pkg/core"
	"github.com/OCAP2/flyover/pkg/streaming"
)

// Compile-time interface checks.
var (
	_ renderer.Renderer        = (*Renderer)(nil)
	_ renderer.SessionRenderer = (*Renderer)(nil)
	_ renderer.IndexReporter   = (*Renderer)(nil)
)

// testServer upgrades to WebSocket, records received messages and acks
// start_session/end_session. Connections can be dropped from the test.
type testServer struct {
	*httptest.Server

	mu       sync.Mutex
	messages []streaming.Envelope
	queries  []string
	conns    []*ws.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		ts.mu.Lock()
		ts.queries = append(ts.queries, r.URL.RawQuery)
		ts.conns = append(ts.conns, c)
		ts.mu.Unlock()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ts.mu.Lock()
			ts.messages = append(ts.messages, env)
			ts.mu.Unlock()

			if env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession {
				data, _ := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(ts.Close)

	return ts
}

func (ts *testServer) all() []streaming.Envelope {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	cp := make([]streaming.Envelope, len(ts.messages))
	copy(cp, ts.messages)
	return cp
}

func (ts *testServer) types() []string {
	var out []string
	for _, env := range ts.all() {
		out = append(out, env.Type)
	}
	return out
}

func (ts *testServer) connCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.conns)
}

func (ts *testServer) dropAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, c := range ts.conns {
		_ = c.Close()
	}
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func fixture(t *testing.T) (*core.Session, *core.PlaybackSequence) {
	t.Helper()
	seq, err := core.NewPlaybackSequence(
		core.MustPoint(core.Coordinate{Latitude: 1, Longitude: 2}, core.DefaultConfiguration),
		core.MustPoint(core.Coordinate{Latitude: 3, Longitude: 4}, core.SeasideConfiguration),
	)
	require.NoError(t, err)
	return core.NewSession(seq, 0, true, time.Now()), seq
}

func newRenderer(t *testing.T, ts *testServer) *Renderer {
	t.Helper()
	r := New(Config{URL: ts.wsURL(), Secret: "test"}, nil)
	r.conn.backoff = 10 * time.Millisecond
	require.NoError(t, r.Init(context.Background()))
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestStartAndEndSession(t *testing.T) {
	ts := newTestServer(t)
	r := newRenderer(t, ts)
	ctx := context.Background()
	s, seq := fixture(t)

	require.NoError(t, r.StartSession(ctx, s, seq))
	require.NoError(t, r.EndSession(ctx, s))

	msgs := ts.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, streaming.TypeStartSession, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndSession, msgs[1].Type)

	var start streaming.StartSessionPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &start))
	assert.Equal(t, s.ID, start.Session.ID)
	assert.Len(t, start.Points, 2)

	var end streaming.EndSessionPayload
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &end))
	assert.Equal(t, s.ID.String(), end.SessionID)
}

func TestDialCarriesSecretAndClientID(t *testing.T) {
	ts := newTestServer(t)
	newRenderer(t, ts)

	require.Eventually(t, func() bool { return ts.connCount() == 1 }, time.Second, 5*time.Millisecond)
	ts.mu.Lock()
	q := ts.queries[0]
	ts.mu.Unlock()
	assert.Contains(t, q, "secret=test")
	assert.Contains(t, q, "client=")
}

func TestCameraCommands(t *testing.T) {
	ts := newTestServer(t)
	r := newRenderer(t, ts)
	ctx := context.Background()
	s, seq := fixture(t)
	require.NoError(t, r.StartSession(ctx, s, seq))

	p, _ := seq.At(1)
	require.NoError(t, r.FlyTo(ctx, renderer.NewFlyTo(1, p)))
	require.NoError(t, r.IndexChanged(ctx, 1))
	require.NoError(t, r.StopFlyover(ctx))

	require.Eventually(t, func() bool { return len(ts.all()) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{
		streaming.TypeStartSession,
		streaming.TypeFlyTo,
		streaming.TypeIndexChanged,
		streaming.TypeStopFlyover,
	}, ts.types())

	var fly core.FlyToCommand
	require.NoError(t, json.Unmarshal(ts.all()[1].Payload, &fly))
	assert.Equal(t, 1, fly.Index)
	assert.Equal(t, "seaside", fly.Configuration.Name)
}

func TestReconnectReplaysSessionAndFlyTo(t *testing.T) {
	ts := newTestServer(t)
	r := newRenderer(t, ts)
	ctx := context.Background()
	s, seq := fixture(t)
	require.NoError(t, r.StartSession(ctx, s, seq))

	p, _ := seq.At(0)
	require.NoError(t, r.FlyTo(ctx, renderer.NewFlyTo(0, p)))
	require.Eventually(t, func() bool { return len(ts.all()) == 2 }, time.Second, 5*time.Millisecond)

	ts.dropAll()

	require.Eventually(t, func() bool { return len(ts.all()) == 4 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, ts.connCount())
	assert.Equal(t, []string{
		streaming.TypeStartSession,
		streaming.TypeFlyTo,
		streaming.TypeStartSession,
		streaming.TypeFlyTo,
	}, ts.types())
}

func TestStopClearsFlyToReplay(t *testing.T) {
	ts := newTestServer(t)
	r := newRenderer(t, ts)
	ctx := context.Background()
	s, seq := fixture(t)

	p, _ := seq.At(0)
	require.NoError(t, r.StartSession(ctx, s, seq))
	require.NoError(t, r.FlyTo(ctx, renderer.NewFlyTo(0, p)))
	require.NoError(t, r.StopFlyover(ctx))

	r.conn.mu.Lock()
	defer r.conn.mu.Unlock()
	assert.Nil(t, r.conn.cachedFlyTo)
	assert.NotNil(t, r.conn.cachedStartMsg)
}

func TestSendAndWaitHonoursContext(t *testing.T) {
	ts := newTestServer(t)
	r := newRenderer(t, ts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// index_changed is never acked
	err := r.conn.sendAndWait(ctx, []byte(`{"type":"index_changed","payload":{}}`), streaming.TypeIndexChanged, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	r := New(Config{URL: ts.wsURL()}, nil)
	require.NoError(t, r.Init(context.Background()))

	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}

func TestInitFailsWithoutServer(t *testing.T) {
	r := New(Config{URL: "ws://127.0.0.1:1/renderer"}, nil)
	assert.Error(t, r.Init(context.Background()))
}

func TestEnvelopeSerialization(t *testing.T) {
	data, err := marshalEnvelope(streaming.TypeIndexChanged, streaming.IndexChangedPayload{Index: 7})
	require.NoError(t, err)

	var env streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, streaming.TypeIndexChanged, env.Type)
	assert.JSONEq(t, `{"index":7}`, string(env.Payload))
}
