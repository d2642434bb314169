package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ohlc-streamer/src/helpers"
	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct{}

func (fakeStatus) Status() models.MEngineStatus {
	return models.MEngineStatus{State: "READY", Symbols: 2, Trades: 10, Updates: 12}
}

type fakeStore struct {
	bars      []models.MBar
	gotSymbol string
	gotLimit  int
}

func (f *fakeStore) Initialize() error                { return nil }
func (f *fakeStore) SaveBars(bars []models.MBar) error { return nil }
func (f *fakeStore) CleanupOldData() error            { return nil }
func (f *fakeStore) Close() error                     { return nil }
func (f *fakeStore) RecentBars(symbol string, limit int) ([]models.MBar, error) {
	f.gotSymbol, f.gotLimit = symbol, limit
	return f.bars, nil
}

func testConfig() *models.MConfig {
	return &models.MConfig{
		Name: "test", Host: "127.0.0.1", Port: 8080,
		Engine: models.MEngineConfig{BarInterval: 900000, TimestampUnit: "ms"},
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(testConfig(), logger.NewNop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Stop(context.Background())
		ts.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func nextEvent(t *testing.T, s *Server) models.MClientEvent {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no transport event")
		return models.MClientEvent{}
	}
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// -----------------------------------------------------------------------------

func TestWebSocketLifecycleEvents(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts)

	connected := nextEvent(t, s)
	require.Equal(t, models.ClientConnected, connected.Type)
	id := connected.ClientID
	assert.Equal(t, []string{id}, s.Clients())

	req := `{"event":"subscribe","symbol":"X","interval":"15m"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(req)))
	msg := nextEvent(t, s)
	assert.Equal(t, models.MClientEvent{Type: models.ClientMessage, ClientID: id, Text: req}, msg)

	require.NoError(t, s.SendText(id, `{"event":"ohlc_notify"}`))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"event":"ohlc_notify"}`, string(data))

	conn.Close()
	gone := nextEvent(t, s)
	assert.Equal(t, models.ClientDisconnected, gone.Type)
	assert.Equal(t, id, gone.ClientID)
	assert.Empty(t, s.Clients())
	assert.ErrorIs(t, s.SendText(id, "late"), ErrClientGone)
}

func TestSendTextToUnknownClient(t *testing.T) {
	s, _ := newTestServer(t)
	assert.ErrorIs(t, s.SendText("nobody", "x"), ErrClientGone)
}

func TestSlowClientIsDropped(t *testing.T) {
	s, _ := newTestServer(t)
	slow := &Client{id: "slow", server: s, send: make(chan string)}
	s.clientsMu.Lock()
	s.clients[slow.id] = slow
	s.clientsMu.Unlock()

	assert.ErrorIs(t, s.SendText("slow", "x"), ErrClientSlow)
	assert.Empty(t, s.Clients())

	ev := nextEvent(t, s)
	assert.Equal(t, models.ClientDisconnected, ev.Type)
	_, open := <-slow.send
	assert.False(t, open)
}

func TestSlowClientDropDoesNotWaitOnEvents(t *testing.T) {
	s, _ := newTestServer(t)
	slow := &Client{id: "slow", server: s, send: make(chan string, 1)}
	slow.send <- "queued"
	s.clientsMu.Lock()
	s.clients[slow.id] = slow
	s.clientsMu.Unlock()

	// Nobody reads the events while the hub is busy fanning out.
	for len(s.events) < cap(s.events) {
		s.events <- models.MClientEvent{Type: models.ClientMessage, ClientID: "other"}
	}

	result := make(chan error, 1)
	go func() { result <- s.SendText("slow", "x") }()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrClientSlow)
		var transportErr *helpers.TransportError
		assert.ErrorAs(t, err, &transportErr)
	case <-time.After(2 * time.Second):
		t.Fatal("SendText blocked on a full events queue")
	}
	assert.Empty(t, s.Clients())

	// The disconnect still reaches the hub once it drains its queue.
	for {
		ev := nextEvent(t, s)
		if ev.Type == models.ClientDisconnected {
			assert.Equal(t, "slow", ev.ClientID)
			return
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, ts := newTestServer(t)
	s.SetStatusProvider(fakeStatus{})

	var body struct {
		Status      string               `json:"status"`
		Connections int                  `json:"connections"`
		Engine      models.MEngineStatus `json:"engine"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/health", &body))
	assert.Equal(t, "ok", body.Status)
	assert.Zero(t, body.Connections)
	assert.Equal(t, "READY", body.Engine.State)
	assert.Equal(t, uint64(10), body.Engine.Trades)
}

func TestConfigEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	var body map[string]interface{}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/config", &body))
	assert.Equal(t, float64(900000), body["bar_interval"])
	assert.Equal(t, "ms", body["timestamp_unit"])
}

func TestBarsEndpoint(t *testing.T) {
	s, ts := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/bars/X", nil))

	store := &fakeStore{bars: []models.MBar{{Symbol: "X", Sequence: 2, Close: 11}, {Symbol: "X", Sequence: 1, Close: 10}}}
	s.SetBarStore(store)

	var body struct {
		Symbol string        `json:"symbol"`
		Bars   []models.MBar `json:"bars"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/bars/X?limit=5", &body))
	assert.Equal(t, "X", body.Symbol)
	require.Len(t, body.Bars, 2)
	assert.Equal(t, uint64(2), body.Bars[0].Sequence)
	assert.Equal(t, "X", store.gotSymbol)
	assert.Equal(t, 5, store.gotLimit)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/bars/X?limit=-1", nil))
	long := strings.Repeat("Y", models.MaxSymbolLength+1)
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/bars/"+long, nil))
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ohlc_server_connected_clients")
}

func TestParseLimit(t *testing.T) {
	n, err := parseLimit("")
	require.NoError(t, err)
	assert.Equal(t, defaultBarsLimit, n)

	n, err = parseLimit("5000")
	require.NoError(t, err)
	assert.Equal(t, maxBarsLimit, n)

	_, err = parseLimit("abc")
	assert.Error(t, err)
	_, err = parseLimit("0")
	assert.Error(t, err)
}
