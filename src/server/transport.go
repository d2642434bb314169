package server

import (
	"net/http"

	"ohlc-streamer/src/helpers"
	"ohlc-streamer/src/interfaces"
	"ohlc-streamer/src/metrics"
	"ohlc-streamer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrClientGone = interfaces.ErrClientGone
	ErrClientSlow = interfaces.ErrClientSlow
)

// -----------------------------------------------------------------------------
// IClientTransport Implementation
// -----------------------------------------------------------------------------

// Clients lists the ids of the connected clients.
func (s *Server) Clients() []string {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	return ids
}

// -----------------------------------------------------------------------------

// SendText queues text on the client's send buffer without blocking. A client
// whose buffer is full is disconnected. SendText runs on the hub goroutine, the
// only reader of Events, so it never waits on the events queue.
func (s *Server) SendText(clientID string, text string) error {
	s.clientsMu.RLock()
	client, ok := s.clients[clientID]
	if !ok {
		s.clientsMu.RUnlock()
		return helpers.NewTransportError("send to "+clientID, ErrClientGone)
	}

	select {
	case client.send <- text:
		s.clientsMu.RUnlock()
		return nil
	default:
	}
	s.clientsMu.RUnlock()

	// Client too slow, drop it so one consumer cannot stall the hub
	s.Logger.Warning("Client %s send queue full, disconnecting", clientID)
	if s.detach(client) {
		metrics.ConnectedClients.Dec()
		ev := models.MClientEvent{Type: models.ClientDisconnected, ClientID: client.id}
		go s.notify(ev)
	}
	return helpers.NewTransportError("send to "+clientID, ErrClientSlow)
}

// -----------------------------------------------------------------------------

// Events delivers connect, disconnect and inbound message notifications.
func (s *Server) Events() <-chan models.MClientEvent {
	return s.events
}

// -----------------------------------------------------------------------------
// Client registry
// -----------------------------------------------------------------------------

func (s *Server) register(c *Client) {
	s.clientsMu.Lock()
	s.clients[c.id] = c
	s.clientsMu.Unlock()

	metrics.ConnectedClients.Inc()
	s.notify(models.MClientEvent{Type: models.ClientConnected, ClientID: c.id})
}

// -----------------------------------------------------------------------------

// detach removes c and closes its send queue. It reports false when c was
// already gone.
func (s *Server) detach(c *Client) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	current, ok := s.clients[c.id]
	if !ok || current != c {
		return false
	}
	delete(s.clients, c.id)
	close(c.send)
	return true
}

// -----------------------------------------------------------------------------

// unregister detaches c and tells the hub. Safe to call more than once.
func (s *Server) unregister(c *Client) {
	if s.detach(c) {
		metrics.ConnectedClients.Dec()
		s.notify(models.MClientEvent{Type: models.ClientDisconnected, ClientID: c.id})
	}
}

// -----------------------------------------------------------------------------

// notify hands an event to the hub, giving up once the server is stopping.
func (s *Server) notify(ev models.MClientEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warning("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		server: s,
		conn:   conn,
		// Buffered channel so the hub never blocks on one client
		send: make(chan string, sendQueueSize),
	}

	s.register(client)
	s.Logger.Info("Client %s connected from %s", client.id, c.ClientIP())

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}
