package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SFZPL/lead-automation-system-sub000/internal/adapter"
	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

type staticToken string

func (s staticToken) Token() (string, bool) { return string(s), s != "" }

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

// === Decode ===

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"operation_update","data":{"operation_id":"op-1","status":"running","progress":45}}`))
	require.NoError(t, err)
	upd, ok := msg.(OperationUpdate)
	require.True(t, ok)
	assert.Equal(t, "op-1", upd.Event.OperationID)
	assert.Equal(t, domain.StatusRunning, upd.Event.Status)

	msg, err = Decode([]byte(`{"type":"outlook_auth","data":{"authorized":true,"user_email":"rep@example.com"}}`))
	require.NoError(t, err)
	assert.Equal(t, AuthorizationChanged{Authorized: true, UserEmail: "rep@example.com"}, msg)

	msg, err = Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, Heartbeat{}, msg)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{"type":"lead_scored","data":{}}`))
	assert.ErrorIs(t, err, ErrUnknownMessage)

	_, err = Decode([]byte(`not json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownMessage)

	_, err = Decode([]byte(`{"type":"operation_update","data":{"status":"running"}}`))
	require.Error(t, err)
}

// === Channel ===

func TestChannel_DispatchesAndSkipsBadFrames(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for _, frame := range []string{
			`garbage`,
			`{"type":"lead_scored","data":{}}`,
			`{"type":"operation_update","data":{"operation_id":"op-1","status":"running","progress":45}}`,
			`{"type":"operation_update","data":{"operation_id":"op-1","status":"completed"}}`,
		} {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
		}
		// Hold the connection open until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	d := NewDispatcher(adapter.NullLogger())
	var mu sync.Mutex
	var events []domain.OperationEvent
	d.OnOperation(func(ev domain.OperationEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	ch := NewChannel(Config{URL: wsURL(srv)}, staticToken("tok"), d, adapter.NullLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, domain.StatusCompleted, events[1].Status)
}

func TestChannel_AnswersPing(t *testing.T) {
	pong := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
		_, frame, err := conn.ReadMessage()
		if err == nil {
			pong <- string(frame)
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ch := NewChannel(Config{URL: wsURL(srv)}, nil, NewDispatcher(nil), adapter.NullLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	select {
	case frame := <-pong:
		assert.JSONEq(t, `{"type":"pong"}`, frame)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong received")
	}
}

func TestChannel_ReconnectsAndRunsHooks(t *testing.T) {
	var mu sync.Mutex
	conns := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()
		if n == 1 {
			conn.Close() // drop the first connection immediately
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ch := NewChannel(Config{URL: wsURL(srv), ReconnectMin: 10 * time.Millisecond, ReconnectMax: 40 * time.Millisecond},
		nil, NewDispatcher(nil), adapter.NullLogger())

	hooks := make(chan struct{}, 4)
	ch.OnConnect(func(context.Context) { hooks <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-hooks:
		case <-time.After(2 * time.Second):
			t.Fatalf("connect hook %d not run", i+1)
		}
	}
	assert.Eventually(t, ch.Connected, time.Second, 10*time.Millisecond)
}

func TestChannel_BackoffDoublesToMaxAndGivesUp(t *testing.T) {
	ch := NewChannel(Config{
		URL:          "ws://127.0.0.1:1/ws",
		ReconnectMin: time.Second,
		ReconnectMax: 4 * time.Second,
		MaxAttempts:  5,
	}, nil, NewDispatcher(nil), adapter.NullLogger())

	var waits []time.Duration
	ch.jitter = func(d time.Duration) time.Duration { return d }
	ch.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	err := ch.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 5 attempts")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}, waits)
}

func TestChannel_CancelDuringBackoff(t *testing.T) {
	ch := NewChannel(Config{URL: "ws://127.0.0.1:1/ws", ReconnectMin: time.Hour}, nil, NewDispatcher(nil), adapter.NullLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, ch.Run(ctx))
}

func TestJitter_Bounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := jitter(10 * time.Second)
		assert.GreaterOrEqual(t, d, 8*time.Second)
		assert.LessOrEqual(t, d, 12*time.Second)
	}
}

func TestDispatcher_RoutesAuthorization(t *testing.T) {
	d := NewDispatcher(nil)
	var got AuthorizationChanged
	d.OnAuthorization(func(m AuthorizationChanged) { got = m })
	d.Dispatch(AuthorizationChanged{Authorized: true})
	assert.True(t, got.Authorized)
}
