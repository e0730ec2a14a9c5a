package hub

import (
	"sync"

	"github.com/dimitrije/assessor-collab/internal/logging"
	"github.com/dimitrije/assessor-collab/internal/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultSendBuffer = 256

// Client is one live socket connection. The write pump drains Send; the hub
// closes Send exactly once, when the client is unregistered.
type Client struct {
	ID       string
	UserID   int64
	UserName string
	Send     chan []byte

	closed bool
}

func NewClient(userID int64, userName string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		UserName: userName,
		Send:     make(chan []byte, buffer),
	}
}

type OnlineUser struct {
	UserID      int64  `json:"userId"`
	UserName    string `json:"userName"`
	Connections int    `json:"connections"`
}

// Hub is the connection registry. A user is present in userClients if and
// only if they hold at least one registered connection.
type Hub struct {
	clients     map[string]*Client
	userClients map[int64]map[string]*Client
	mu          sync.RWMutex
	log         *logrus.Entry
}

func NewHub() *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		userClients: make(map[int64]map[string]*Client),
		log:         logging.Component("hub"),
	}
}

// Register adds the client and reports whether it is the user's first
// connection.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		return false
	}
	h.clients[client.ID] = client

	conns, ok := h.userClients[client.UserID]
	if !ok {
		conns = make(map[string]*Client)
		h.userClients[client.UserID] = conns
	}
	conns[client.ID] = client

	metrics.Connections.Inc()
	if !ok {
		metrics.OnlineUsers.Inc()
	}

	h.log.WithFields(logrus.Fields{
		"client_id":   client.ID,
		"user_id":     client.UserID,
		"connections": len(conns),
	}).Debug("client registered")

	return !ok
}

// Unregister removes the client, closes its Send channel and reports whether
// it was the user's last connection. Unknown clients report false.
func (h *Hub) Unregister(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	delete(h.clients, client.ID)
	client.closed = true
	close(client.Send)
	metrics.Connections.Dec()

	conns := h.userClients[client.UserID]
	delete(conns, client.ID)
	last := len(conns) == 0
	if last {
		delete(h.userClients, client.UserID)
		metrics.OnlineUsers.Dec()
	}

	h.log.WithFields(logrus.Fields{
		"client_id": client.ID,
		"user_id":   client.UserID,
		"last":      last,
	}).Debug("client unregistered")

	return last
}

func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.userClients[userID]
	return ok
}

func (h *Hub) OnlineUsers() []OnlineUser {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]OnlineUser, 0, len(h.userClients))
	for userID, conns := range h.userClients {
		u := OnlineUser{UserID: userID, Connections: len(conns)}
		for _, c := range conns {
			u.UserName = c.UserName
			break
		}
		users = append(users, u)
	}
	return users
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ToAll delivers data to every registered connection and returns the number
// of successful deliveries.
func (h *Hub) ToAll(data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.clients {
		if h.send(client, data) {
			sent++
		}
	}
	return sent
}

// ToAllExcept delivers data to every connection not owned by userID.
func (h *Hub) ToAllExcept(userID int64, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.clients {
		if client.UserID == userID {
			continue
		}
		if h.send(client, data) {
			sent++
		}
	}
	return sent
}

// ToUsers delivers data to every connection of the given users. Offline
// users are skipped.
func (h *Hub) ToUsers(userIDs []int64, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, userID := range userIDs {
		for _, client := range h.userClients[userID] {
			if h.send(client, data) {
				sent++
			}
		}
	}
	return sent
}

// send must be called with h.mu held for reading. Closed clients and full
// buffers are skipped; removal is left to Unregister.
func (h *Hub) send(client *Client, data []byte) bool {
	if client.closed {
		metrics.Deliveries.WithLabelValues("closed").Inc()
		return false
	}
	select {
	case client.Send <- data:
		metrics.Deliveries.WithLabelValues("sent").Inc()
		return true
	default:
		metrics.Deliveries.WithLabelValues("dropped").Inc()
		h.log.WithFields(logrus.Fields{
			"client_id": client.ID,
			"user_id":   client.UserID,
		}).Warn("client buffer full, skipping")
		return false
	}
}
