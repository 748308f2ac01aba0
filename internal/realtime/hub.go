// internal/realtime/hub.go
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-api/internal/models"
)

// SyncSession is what the hub needs from a live sync session.
type SyncSession interface {
	UserID() uuid.UUID
	Inject(msg models.Message)
	Refresh()
}

// Client is one registered live session (one websocket connection).
type Client struct {
	ID      string
	Session SyncSession
}

// Hub tracks the live sync sessions of connected users so handlers can
// hand freshly written rows straight to them without waiting for the bus
// round trip. Sessions deduplicate the double delivery by message id.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	log        zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// DeliverMessage injects a freshly stored message into the live sessions
// of both thread participants.
func (h *Hub) DeliverMessage(requesterID, ownerID uuid.UUID, msg models.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		uid := client.Session.UserID()
		if uid == requesterID || uid == ownerID {
			client.Session.Inject(msg)
		}
	}
}

// RefreshUser asks every live session of one user to recompute its
// conversation list.
func (h *Hub) RefreshUser(userID uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.Session.UserID() == userID {
			client.Session.Refresh()
		}
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.Info().Str("client_id", client.ID).Str("user_id", client.Session.UserID().String()).Msg("session registered")

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client.ID)
			h.mu.Unlock()
			h.log.Info().Str("client_id", client.ID).Msg("session unregistered")
		}
	}
}
