package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Message event types carried over the socket.
const (
	TypeMessage      = "message"
	TypeNotification = "notification"
	TypeRead         = "read"
)

// Hub maintains the set of active clients and routes events to the users
// they are addressed to
type Hub struct {
	// Registered clients organized by user ID. A user may hold several
	// connections (multiple tabs, devices); every one gets the event.
	clients map[int64]map[*Client]bool

	// Channel for inbound messages from clients
	inbound chan *Message

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed by Shutdown to stop the run loop
	quit chan struct{}

	// Mutex for concurrent access to clients map
	mu sync.RWMutex

	// Mutex for message listeners
	listenersMu sync.RWMutex

	// Listeners receiving every inbound client frame
	messageListeners []chan *Message

	// Logger for Hub operations
	logger zerolog.Logger
}

// Message represents an event sent over WebSocket, in either direction.
// Clients send {chatId, receiverId, content}; the server stamps the rest.
type Message struct {
	// Type of event: "message", "notification", "read"
	Type string `json:"type"`

	// Chat this event belongs to
	ChatID int64 `json:"chatId"`

	// User who sent the message
	SenderID int64 `json:"senderId"`

	// User the message is addressed to
	ReceiverID int64 `json:"receiverId"`

	// Message content
	Content string `json:"content"`

	// Timestamp when the message was sent
	Timestamp time.Time `json:"timestamp"`

	// Message ID from the database, zero until persisted
	ID int64 `json:"id,omitempty"`
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		inbound:          make(chan *Message),
		register:         make(chan *Client),
		unregister:       make(chan *Client),
		quit:             make(chan struct{}),
		clients:          make(map[int64]map[*Client]bool),
		messageListeners: []chan *Message{},
		logger:           logger,
	}
}

// Run starts the hub, handling client registrations and inbound frames.
// It returns when Shutdown is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.inbound:
			h.notifyMessageListeners(message)

		case <-h.quit:
			h.closeAllClients()
			return
		}
	}
}

// Shutdown stops the run loop and closes every client connection
func (h *Hub) Shutdown() {
	close(h.quit)
}

// registerClient registers a new client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.userID
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[*Client]bool)
	}
	h.clients[userID][client] = true

	h.logger.Info().
		Int64("userID", userID).
		Str("addr", client.conn.RemoteAddr().String()).
		Msg("Client registered")
}

// unregisterClient unregisters a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.userID
	if _, ok := h.clients[userID]; ok {
		if _, ok := h.clients[userID][client]; ok {
			delete(h.clients[userID], client)
			close(client.send)

			// Last connection for this user is gone
			if len(h.clients[userID]) == 0 {
				delete(h.clients, userID)
			}

			h.logger.Info().
				Int64("userID", userID).
				Str("addr", client.conn.RemoteAddr().String()).
				Msg("Client unregistered")
		}
	}
}

// closeAllClients drops every connection during shutdown
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
		delete(h.clients, userID)
	}
}

// Deliver pushes an event to every open connection of one user. Delivery is
// best effort: an offline user simply has no connections and a slow client
// gets disconnected rather than stalling the caller. Persistence must already
// have happened; nothing here is durable.
func (h *Hub) Deliver(userID int64, message *Message) {
	h.mu.RLock()
	clients, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		h.logger.Debug().
			Int64("userID", userID).
			Msg("No connections for delivery, skipping push")
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.mu.RUnlock()
		h.logger.Error().
			Err(err).
			Int64("userID", userID).
			Msg("Failed to marshal message for delivery")
		return
	}

	var stale []*Client
	for client := range clients {
		select {
		case client.send <- data:
		default:
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	// Slow or dead clients get unregistered outside the read lock
	for _, client := range stale {
		h.unregister <- client
	}

	h.logger.Debug().
		Int64("userID", userID).
		Str("type", message.Type).
		Msg("Event delivered")
}

// IsOnline reports whether the user has at least one open connection
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[userID]) > 0
}

// GetClientsCount returns the number of connections for a user
func (h *Hub) GetClientsCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.clients[userID]; ok {
		return len(clients)
	}
	return 0
}

// notifyMessageListeners fans an inbound frame out to registered listeners
func (h *Hub) notifyMessageListeners(message *Message) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()

	for _, listener := range h.messageListeners {
		// Non-blocking send so a slow listener cannot stall the hub
		select {
		case listener <- message:
		default:
			h.logger.Warn().Msg("Skipped slow message listener")
		}
	}
}

// AddMessageListener registers a channel to receive all inbound client frames
func (h *Hub) AddMessageListener(listener chan *Message) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()

	h.messageListeners = append(h.messageListeners, listener)
	h.logger.Info().Msg("Added new message listener")
}

// RemoveMessageListener removes a listener from the hub
func (h *Hub) RemoveMessageListener(listener chan *Message) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()

	for i, l := range h.messageListeners {
		if l == listener {
			h.messageListeners[i] = h.messageListeners[len(h.messageListeners)-1]
			h.messageListeners = h.messageListeners[:len(h.messageListeners)-1]
			h.logger.Info().Msg("Removed message listener")
			break
		}
	}
}
