package websocket

import (
	"context"
	"sync"
	"time"

	"buddyboard-be/internal/pkg/logger"

	"github.com/google/uuid"
)

const (
	logModule    = "Hub"
	relayTimeout = 5 * time.Second
)

// Hub owns the room table: document id to the connections joined to it. A
// room exists from its first join until its last member leaves.
type Hub struct {
	// Rooms keyed by document id
	rooms map[string]map[*Client]struct{}

	// Registered connections
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
	ready      chan struct{}

	// Guards rooms, clients and every Client.rooms
	mu sync.RWMutex

	// Fan-out to other instances, nil on a single node
	relay      Relay
	instanceID string

	limits  Limits
	logger  logger.ILogger
	metrics *Metrics
}

type Option func(*Hub)

func WithLimits(l Limits) Option {
	return func(h *Hub) { h.limits = l.withDefaults() }
}

func NewHub(relay Relay, log logger.ILogger, metrics *Metrics, opts ...Option) *Hub {
	h := &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		ready:      make(chan struct{}),
		relay:      relay,
		instanceID: uuid.NewString(),
		limits:     DefaultLimits(),
		logger:     log,
		metrics:    metrics,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) InstanceID() string { return h.instanceID }

// Ready is closed once Run has subscribed to the relay.
func (h *Hub) Ready() <-chan struct{} { return h.ready }

// Run processes connection lifecycle until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	if h.relay != nil {
		envelopes, err := h.relay.Subscribe(ctx)
		if err != nil {
			h.logger.Warn(logModule, "Relay unavailable, serving local rooms only", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			go h.consumeRelay(envelopes)
		}
	}
	close(h.ready)

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.metrics.connected()
			h.logger.Info(logModule, "Client registered", map[string]interface{}{
				"client_id": client.ID,
				"user_id":   client.UserID,
			})

		case client := <-h.unregister:
			h.disconnect(client)
		}
	}
}

// Register hands a new connection to the hub loop.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.stopped:
	}
}

// Unregister leaves every room of c and closes its send buffer.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
		h.disconnect(c)
	}
}

func (h *Hub) disconnect(c *Client) {
	h.mu.Lock()
	if c.gone {
		h.mu.Unlock()
		return
	}
	c.gone = true
	_, registered := h.clients[c]
	delete(h.clients, c)
	for documentID := range c.rooms {
		h.leaveLocked(c, documentID)
	}
	close(c.Send)
	rooms := len(h.rooms)
	h.mu.Unlock()

	h.metrics.setRooms(rooms)
	if registered {
		h.metrics.disconnected()
	}
	h.logger.Info(logModule, "Client unregistered", map[string]interface{}{
		"client_id": c.ID,
		"user_id":   c.UserID,
	})
}

// Join adds c to the room of documentID, creating the room on first join.
func (h *Hub) Join(c *Client, documentID string) {
	h.mu.Lock()
	if c.gone {
		h.mu.Unlock()
		return
	}
	room, ok := h.rooms[documentID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[documentID] = room
	}
	room[c] = struct{}{}
	c.rooms[documentID] = struct{}{}
	members := len(room)
	rooms := len(h.rooms)
	h.mu.Unlock()

	h.metrics.setRooms(rooms)
	h.logger.Debug(logModule, "Joined room", map[string]interface{}{
		"client_id":   c.ID,
		"document_id": documentID,
		"members":     members,
	})
}

// Leave removes c from the room of documentID. An empty room is deleted.
func (h *Hub) Leave(c *Client, documentID string) {
	h.mu.Lock()
	h.leaveLocked(c, documentID)
	rooms := len(h.rooms)
	h.mu.Unlock()

	h.metrics.setRooms(rooms)
}

func (h *Hub) leaveLocked(c *Client, documentID string) {
	delete(c.rooms, documentID)
	room, ok := h.rooms[documentID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, documentID)
		h.logger.Debug(logModule, "Room dissolved", map[string]interface{}{
			"document_id": documentID,
		})
	}
}

// Broadcast queues payload for every local member of the room except sender
// and publishes it to the other instances.
func (h *Hub) Broadcast(documentID string, sender *Client, payload []byte) {
	h.deliver(documentID, sender, payload)

	if h.relay == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()
	env := Envelope{Origin: h.instanceID, DocumentID: documentID, Payload: payload}
	if err := h.relay.Publish(ctx, env); err != nil {
		h.logger.Warn(logModule, "Relay publish failed", map[string]interface{}{
			"document_id": documentID,
			"error":       err.Error(),
		})
	}
}

// deliver never blocks: a member whose buffer is full misses the frame.
func (h *Hub) deliver(documentID string, exclude *Client, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.rooms[documentID] {
		if c == exclude {
			continue
		}
		select {
		case c.Send <- payload:
			sent++
		default:
			h.metrics.dropped()
			h.logger.Warn(logModule, "Client send buffer full, dropping frame", map[string]interface{}{
				"client_id":   c.ID,
				"document_id": documentID,
			})
		}
	}
	return sent
}

func (h *Hub) consumeRelay(envelopes <-chan Envelope) {
	for env := range envelopes {
		if env.Origin == h.instanceID {
			continue
		}
		h.metrics.relayed()
		h.deliver(env.DocumentID, nil, env.Payload)
	}
}

// RoomSize reports how many connections are joined to documentID.
func (h *Hub) RoomSize(documentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[documentID])
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
