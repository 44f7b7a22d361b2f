// Package notify is the in-process notification bus. Subscribers join
// named rooms and receive events published to those rooms. Delivery is
// best-effort and at-most-once: nothing is queued for clients that
// connect later, and a slow client's events are dropped rather than
// blocking the publisher. All state remains retrievable via the HTTP
// read paths; the bus is a latency optimization, not a source of truth.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventQueueUpdate        = "queue:update"
	EventAppointmentUpdate  = "appointment:update"
	EventAppointmentMessage = "appointment:message"
)

// Room name helpers. A room is scoped to one subject; user:<id> is the
// union room for either role acting as a generic recipient.
func HospitalRoom(id uuid.UUID) string { return "hospital:" + id.String() }
func DoctorRoom(id uuid.UUID) string   { return "doctor:" + id.String() }
func PatientRoom(id uuid.UUID) string  { return "patient:" + id.String() }
func UserRoom(id uuid.UUID) string     { return "user:" + id.String() }

// Event is the envelope delivered to subscribers.
type Event struct {
	Event     string          `json:"event"`
	Room      string          `json:"room"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Bus is the publish side. Services take it as a constructor argument so
// tests can inject a recording fake.
type Bus interface {
	Publish(ctx context.Context, room, event string, payload any) error
}

// Client is one subscriber connection.
type Client struct {
	ID    string
	Send  chan []byte
	rooms []string
}

// Hub tracks clients and their room memberships. All operations are
// safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
	}
}

// NewClient creates an unregistered client with a buffered send channel.
func NewClient() *Client {
	return &Client{
		ID:   uuid.NewString(),
		Send: make(chan []byte, 256),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// Unregister removes the client from every room and closes its send
// channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	for _, room := range client.rooms {
		h.removeFromRoom(client, room)
	}
	client.rooms = nil

	delete(h.clients, client)
	close(client.Send)
}

// Join subscribes a registered client to the given rooms.
func (h *Hub) Join(client *Client, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	for _, room := range rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]struct{})
		}
		h.rooms[room][client] = struct{}{}
	}
	client.rooms = append(client.rooms, rooms...)
}

// Leave unsubscribes a client from the given rooms.
func (h *Hub) Leave(client *Client, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(rooms))
	for _, room := range rooms {
		removeSet[room] = struct{}{}
		h.removeFromRoom(client, room)
	}

	remaining := client.rooms[:0]
	for _, room := range client.rooms {
		if _, rm := removeSet[room]; !rm {
			remaining = append(remaining, room)
		}
	}
	client.rooms = remaining
}

// caller must hold h.mu
func (h *Hub) removeFromRoom(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Publish delivers an event to every client currently in the room. A
// client whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, room, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}

	data, err := json.Marshal(Event{
		Event:     event,
		Room:      room,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.Send <- data:
		default:
		}
	}

	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
