package websocket

import (
	"encoding/json"
	"sync"
)

// FundUpdate is pushed to every subscriber of an organization after a
// committed credit or debit.
type FundUpdate struct {
	FundID   string `json:"fund_id"`
	Category string `json:"category"`
	Balance  string `json:"balance"`
	Reason   string `json:"reason"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(organizationID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[organizationID] == nil {
		h.clients[organizationID] = make(map[*Client]struct{})
	}
	h.clients[organizationID][client] = struct{}{}
}

func (h *Hub) Unregister(organizationID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[organizationID] == nil {
		return
	}
	delete(h.clients[organizationID], client)
	if len(h.clients[organizationID]) == 0 {
		delete(h.clients, organizationID)
	}
}

func (h *Hub) Subscribers(organizationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[organizationID])
}

// BroadcastFund never blocks: a subscriber with a full buffer misses the update.
func (h *Hub) BroadcastFund(organizationID string, update FundUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[organizationID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
