package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yourboymarti/poker-everest/internal/model"
)

// CommandType represents the type of an inbound client message.
type CommandType string

const (
	CommandJoin       CommandType = "join"
	CommandResume     CommandType = "resume"
	CommandAddTask    CommandType = "add_task"
	CommandDeleteTask CommandType = "delete_task"
	CommandUndoDelete CommandType = "undo_delete"
	CommandStartRound CommandType = "start_round"
	CommandVote       CommandType = "vote"
	CommandReveal     CommandType = "reveal"
	CommandEndRound   CommandType = "end_round"
	CommandClaimHost  CommandType = "claim_host"
	CommandPing       CommandType = "ping"
)

// Command is a client message against a room.
type Command struct {
	Type          CommandType `json:"type"`
	Name          string      `json:"name,omitempty"`
	HostToken     string      `json:"hostToken,omitempty"`
	ParticipantID string      `json:"participantId,omitempty"`
	SessionToken  string      `json:"sessionToken,omitempty"`
	LastVersion   uint64      `json:"lastVersion,omitempty"`
	Title         string      `json:"title,omitempty"`
	TaskID        string      `json:"taskId,omitempty"`
	Value         string      `json:"value,omitempty"`
	TimerSeconds  int         `json:"timerSeconds,omitempty"`
}

// EventType represents the type of an outbound server message.
type EventType string

const (
	EventWelcome  EventType = "welcome"
	EventSnapshot EventType = "snapshot"
	EventDelta    EventType = "delta"
	EventError    EventType = "error"
	EventPong     EventType = "pong"
)

// Event is a server message to one client.
type Event struct {
	Type          EventType       `json:"type"`
	Delta         *model.Delta    `json:"delta,omitempty"`
	Snapshot      *model.Snapshot `json:"snapshot,omitempty"`
	ParticipantID string          `json:"participantId,omitempty"`
	SessionToken  string          `json:"sessionToken,omitempty"`
	Code          string          `json:"code,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Client represents one WebSocket connection bound to a room participant.
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	roomID        string
	participantID string

	mu          sync.Mutex
	send        chan []byte
	closed      bool
	lastVersion uint64
}

// NewClient creates a client for a connection that completed its handshake.
func NewClient(hub *Hub, conn *websocket.Conn, roomID, participantID string) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		roomID:        roomID,
		participantID: participantID,
		send:          make(chan []byte, 256),
	}
}

// ParticipantID returns the participant identity bound to this client.
func (c *Client) ParticipantID() string { return c.participantID }

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn { return c.conn }

// SendChan returns the send channel for the client.
func (c *Client) SendChan() <-chan []byte { return c.send }

// SendEvent queues an event for the client.
func (c *Client) SendEvent(ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// SendDelta queues a delta unless the client has already applied its version.
// Duplicate or stale deltas from at-least-once delivery are dropped here.
func (c *Client) SendDelta(d model.Delta) {
	c.mu.Lock()
	if c.closed || d.Version <= c.lastVersion {
		c.mu.Unlock()
		return
	}
	c.lastVersion = d.Version
	c.mu.Unlock()

	c.SendEvent(&Event{Type: EventDelta, Delta: &d})
}

// SetLastVersion records the version the client is known to have applied,
// from a snapshot or a replayed catch-up.
func (c *Client) SetLastVersion(v uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v > c.lastVersion {
		c.lastVersion = v
	}
}

func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		// Buffer full, close the client
		c.closeLocked()
	}
}

// Close closes the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed returns true if the client is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Hub fans room deltas out to every client bound to one room.
type Hub struct {
	roomID  string
	clients map[*Client]bool
	mu      sync.RWMutex
}

// NewHub creates a hub for the given room.
func NewHub(roomID string) *Hub {
	return &Hub{
		roomID:  roomID,
		clients: make(map[*Client]bool),
	}
}

// RoomID returns the room this hub serves.
func (h *Hub) RoomID() string { return h.roomID }

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client from the hub and closes it. The hub itself
// stays alive until the room is evicted, so a resuming session can rebind.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()

	client.Close()
}

// BroadcastDelta sends a delta to all bound clients in production order.
func (h *Hub) BroadcastDelta(d model.Delta) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.SendDelta(d)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close closes all client connections and the hub.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}

// HubManager manages the hubs of all live rooms.
type HubManager struct {
	hubs map[string]*Hub
	mu   sync.RWMutex
}

// NewHubManager creates a new HubManager.
func NewHubManager() *HubManager {
	return &HubManager{
		hubs: make(map[string]*Hub),
	}
}

// GetOrCreate returns an existing hub or creates a new one for the room.
func (m *HubManager) GetOrCreate(roomID string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[roomID]; ok {
		return hub
	}

	hub := NewHub(roomID)
	m.hubs[roomID] = hub
	return hub
}

// Get returns the hub for the room, or nil if not found.
func (m *HubManager) Get(roomID string) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[roomID]
}

// Remove removes the hub for the room.
func (m *HubManager) Remove(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[roomID]; ok {
		hub.Close()
		delete(m.hubs, roomID)
	}
}

// Close closes all hubs.
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, hub := range m.hubs {
		hub.Close()
	}
	m.hubs = make(map[string]*Hub)
}
