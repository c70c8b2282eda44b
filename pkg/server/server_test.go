package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/lumina/pkg/types"
)

type fakeBackend struct {
	mu       sync.Mutex
	commands []types.Command
	subs     map[int]func(*types.RunEvent)
	next     int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{subs: make(map[int]func(*types.RunEvent))}
}

func (b *fakeBackend) Handle(_ context.Context, cmd types.Command) types.Response {
	b.mu.Lock()
	b.commands = append(b.commands, cmd)
	b.mu.Unlock()

	switch cmd.Type {
	case types.CommandAgentStatus:
		return types.Ok(types.Status{CurrentStep: 2, TotalSteps: 3})
	case types.CommandStopAgent:
		return types.Failf("Agent is not running")
	case types.CommandExecuteTool:
		var p types.ExecuteToolPayload
		if err := cmd.DecodePayload(&p); err != nil {
			return types.Failf("%v", err)
		}
		return types.Ok(map[string]any{"tool": p.Tool})
	}
	return types.Failf("Unknown message type: %s", cmd.Type)
}

func (b *fakeBackend) Subscribe(fn func(*types.RunEvent)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *fakeBackend) publish(ev *types.RunEvent) {
	b.mu.Lock()
	subs := make([]func(*types.RunEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (b *fakeBackend) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func postCommand(t *testing.T, s *Server, body string) (*httptest.ResponseRecorder, types.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/commands", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp types.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestHealth(t *testing.T) {
	s := New(newFakeBackend(), Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, Version, body["version"])
}

func TestCommand(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, Options{})

	t.Run("success", func(t *testing.T) {
		rec, resp := postCommand(t, s, `{"type":"AGENT_STATUS"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		data, ok := resp.Data.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 2, data["currentStep"])
	})

	t.Run("payload reaches backend", func(t *testing.T) {
		rec, resp := postCommand(t, s, `{"type":"EXECUTE_TOOL","payload":{"tool":"extract","args":{"selector":"h1"}}}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		assert.Equal(t, map[string]any{"tool": "extract"}, resp.Data)
	})

	t.Run("failure is still 200", func(t *testing.T) {
		rec, resp := postCommand(t, s, `{"type":"STOP_AGENT"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, "Agent is not running", resp.Error)
	})

	t.Run("unknown type", func(t *testing.T) {
		rec, resp := postCommand(t, s, `{"type":"BOGUS"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Unknown message type: BOGUS", resp.Error)
	})

	t.Run("undecodable body", func(t *testing.T) {
		rec, resp := postCommand(t, s, `{"type":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "invalid command")
	})

	t.Run("missing type", func(t *testing.T) {
		rec, resp := postCommand(t, s, `{"payload":{}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid command: missing type", resp.Error)
	})
}

func dialEvents(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Hub().Run(ctx)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	require.Eventually(t, func() bool { return s.Hub().ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestEventsArePushed(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, Options{})
	ws := dialEvents(t, s)

	selector := "#buy"
	backend.publish(types.NewPickerResultEvent(&selector))

	f := readFrame(t, ws)
	assert.Empty(t, f.ID)
	assert.Nil(t, f.Response)
	require.NotNil(t, f.Event)
	assert.Equal(t, types.EventTypePickerResult, f.Event.Type)
	require.NotNil(t, f.Event.Selector)
	assert.Equal(t, "#buy", *f.Event.Selector)
}

func TestWebSocketCommands(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, Options{})
	ws := dialEvents(t, s)

	require.NoError(t, ws.WriteJSON(Request{ID: "req-1", Type: types.CommandAgentStatus}))
	f := readFrame(t, ws)
	assert.Equal(t, "req-1", f.ID)
	require.NotNil(t, f.Response)
	assert.True(t, f.Response.Success)

	require.NoError(t, ws.WriteJSON(Request{ID: "req-2", Type: types.CommandStopAgent}))
	f = readFrame(t, ws)
	assert.Equal(t, "req-2", f.ID)
	require.NotNil(t, f.Response)
	assert.Equal(t, "Agent is not running", f.Response.Error)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	f = readFrame(t, ws)
	assert.Empty(t, f.ID)
	assert.Equal(t, "invalid JSON message", f.Response.Error)
}

func TestDisconnectUnregisters(t *testing.T) {
	s := New(newFakeBackend(), Options{})
	ws := dialEvents(t, s)

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return s.Hub().ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownUnsubscribes(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, Options{})
	require.Equal(t, 1, backend.subscribers())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.Zero(t, backend.subscribers())
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{ReadTimeout: 10 * time.Second, PingInterval: time.Minute}.withDefaults()
	assert.Equal(t, int64(1<<20), o.MaxMessageSize)
	assert.Equal(t, 9*time.Second, o.PingInterval)
	assert.Equal(t, DefaultOptions().WriteTimeout, o.WriteTimeout)
}
