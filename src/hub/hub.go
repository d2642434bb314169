package hub

import (
	"context"
	"errors"
	"time"

	"ohlc-streamer/src/interfaces"
	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/metrics"
	"ohlc-streamer/src/models"
	"ohlc-streamer/src/utils"
)

// maxUpdateBatch bounds how many queued bar updates one wake-up handles before
// the loop goes back to client events.
const maxUpdateBatch = 256

// -----------------------------------------------------------------------------
// Hub
// -----------------------------------------------------------------------------

// Hub is the distribution worker. The dedup cache and the subscription table
// belong to the goroutine running Run; nothing else reads or writes them.
type Hub struct {
	transport   interfaces.IClientTransport
	dedup       *dedupCache
	subs        *subscriptionTable
	journal     chan<- models.MBar
	idleTimeout time.Duration
	log         *logger.Logger
}

// -----------------------------------------------------------------------------

func NewHub(transport interfaces.IClientTransport, cfg *models.MConfig, log *logger.Logger) *Hub {
	return &Hub{
		transport:   transport,
		dedup:       newDedupCache(),
		subs:        newSubscriptionTable(),
		idleTimeout: time.Duration(cfg.Engine.IdleTimeoutMs) * time.Millisecond,
		log:         log,
	}
}

// -----------------------------------------------------------------------------

// SetJournal forwards every closed bar that passes dedup to ch.
func (h *Hub) SetJournal(ch chan<- models.MBar) {
	h.journal = ch
}

// -----------------------------------------------------------------------------
// Worker loop
// -----------------------------------------------------------------------------

// Run consumes bar updates and client events until ctx is cancelled. When the
// update channel closes the hub keeps serving subscription requests.
func (h *Hub) Run(ctx context.Context, updates <-chan models.MBarUpdate) error {
	h.log.Info("Hub worker started")

	events := h.transport.Events()
	idle := utils.NewIdleTimer(h.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Hub worker stopping: %v", ctx.Err())
			return nil

		case u, ok := <-updates:
			if !ok {
				h.log.Info("Bar update channel closed, hub keeps serving clients")
				updates = nil
				continue
			}

			if !h.drain(ctx, u, updates) {
				return nil
			}
			idle.Reset()

		case ev, ok := <-events:
			if !ok {
				h.log.Warning("Transport event channel closed")
				events = nil
				continue
			}
			h.HandleClientEvent(ev)

		case <-idle.C():
			if h.log.DebugEnabled() {
				h.log.Debug("Hub idle (%d clients, %d symbols cached)", h.subs.len(), len(h.dedup.last))
			}
			idle.Reset()
		}
	}
}

// -----------------------------------------------------------------------------

// drain handles first plus whatever is already queued, at most maxUpdateBatch
// updates in total. It returns false when ctx was cancelled mid batch.
func (h *Hub) drain(ctx context.Context, first models.MBarUpdate, updates <-chan models.MBarUpdate) bool {
	u, ok := first, true
	for n := 0; ok; n++ {
		if !h.HandleUpdate(ctx, u) {
			return false
		}
		if n+1 >= maxUpdateBatch {
			return true
		}
		select {
		case u, ok = <-updates:
		default:
			ok = false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Outbound
// -----------------------------------------------------------------------------

// HandleUpdate filters one bar update through the dedup cache and pushes it to
// every client subscribed to its symbol. It returns false only when ctx was
// cancelled while handing a closed bar to the journal.
func (h *Hub) HandleUpdate(ctx context.Context, u models.MBarUpdate) bool {
	if !h.dedup.pass(u) {
		metrics.DedupDropped.Inc()
		return true
	}

	h.fanOut(u)

	if h.journal != nil && u.Kind.IsClose() {
		select {
		case h.journal <- u.Bar:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------

func (h *Hub) fanOut(u models.MBarUpdate) int {
	var text string
	sent := 0

	for _, id := range h.transport.Clients() {
		if !h.subs.has(id, u.Symbol) {
			continue
		}

		if text == "" {
			var err error
			if text, err = EncodeNotify(u); err != nil {
				h.log.Error("Failed to encode %s update for %s: %v", u.Kind, u.Symbol, err)
				return 0
			}
		}

		if err := h.transport.SendText(id, text); err != nil {
			metrics.PushFailures.Inc()
			if errors.Is(err, interfaces.ErrClientSlow) || errors.Is(err, interfaces.ErrClientGone) {
				// Its disconnect event may still be queued behind us.
				h.subs.disconnect(id)
			}
			h.log.Debug("Skipping client %s: %v", id, err)
			continue
		}
		metrics.PushesSent.Inc()
		sent++
	}
	return sent
}

// -----------------------------------------------------------------------------
// Inbound
// -----------------------------------------------------------------------------

// HandleClientEvent applies a connect, disconnect or message notification.
func (h *Hub) HandleClientEvent(ev models.MClientEvent) {
	switch ev.Type {
	case models.ClientConnected:
		h.subs.connect(ev.ClientID)
		h.log.Info("Client %s connected", ev.ClientID)

	case models.ClientDisconnected:
		h.subs.disconnect(ev.ClientID)
		h.log.Info("Client %s disconnected", ev.ClientID)

	case models.ClientMessage:
		h.handleMessage(ev.ClientID, ev.Text)
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) handleMessage(clientID, text string) {
	if !h.subs.connected(clientID) {
		h.log.Warning("Message from unknown client %s ignored", clientID)
		return
	}

	req, err := DecodeRequest(text)
	if err != nil {
		h.log.Warning("Client %s sent an unreadable message: %v", clientID, err)
		return
	}

	if req.Event == models.EventSubscribe {
		sym, err := models.ParseSymbol(req.Symbol)
		if err != nil {
			h.log.Warning("Client %s subscribe rejected: %v", clientID, err)
		} else {
			h.subs.subscribe(clientID, sym)
			h.log.Info("Client %s subscribed to %s (interval %q)", clientID, sym, req.Interval)
		}
	}

	reply, err := EncodeSubscriptions(h.subs.symbols(clientID))
	if err != nil {
		h.log.Error("Failed to encode subscriptions of %s: %v", clientID, err)
		return
	}
	if err := h.transport.SendText(clientID, reply); err != nil {
		h.log.Debug("Subscription reply to %s dropped: %v", clientID, err)
	}
}
