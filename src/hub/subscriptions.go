package hub

import (
	"sort"

	"ohlc-streamer/src/models"
)

// subscriptionTable maps each connected client to the symbols it wants.
type subscriptionTable struct {
	clients map[string]map[models.Symbol]struct{}
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{clients: make(map[string]map[models.Symbol]struct{})}
}

func (s *subscriptionTable) connect(clientID string) {
	if _, ok := s.clients[clientID]; !ok {
		s.clients[clientID] = make(map[models.Symbol]struct{})
	}
}

func (s *subscriptionTable) disconnect(clientID string) {
	delete(s.clients, clientID)
}

func (s *subscriptionTable) connected(clientID string) bool {
	_, ok := s.clients[clientID]
	return ok
}

// subscribe adds sym to the client's set. Re-adding is a no-op.
func (s *subscriptionTable) subscribe(clientID string, sym models.Symbol) {
	s.connect(clientID)
	s.clients[clientID][sym] = struct{}{}
}

func (s *subscriptionTable) has(clientID string, sym models.Symbol) bool {
	set, ok := s.clients[clientID]
	if !ok {
		return false
	}
	_, ok = set[sym]
	return ok
}

// symbols returns the client's subscriptions, sorted.
func (s *subscriptionTable) symbols(clientID string) []string {
	set := s.clients[clientID]
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, string(sym))
	}
	sort.Strings(out)
	return out
}

func (s *subscriptionTable) len() int {
	return len(s.clients)
}
