package occupancy

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client is one websocket subscriber. Room is empty until the client
// authenticates and subscribes.
type Client struct {
	Conn          *websocket.Conn
	Send          chan []byte
	Room          string
	Email         string
	Authenticated bool

	mu     sync.Mutex
	closed bool
}

// trySend queues data for the write pump without blocking. Returns false when
// the buffer is full or the channel is already closed, so concurrent writers
// can never hit a closed channel.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

type broadcastMsg struct {
	Room string
	Data []byte
}

// Hub fans occupancy updates out to every subscriber of a room.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	leave      chan *Client
	broadcast  chan broadcastMsg
	stop       chan struct{}
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		leave:      make(chan *Client),
		broadcast:  make(chan broadcastMsg),
		stop:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.Room] == nil {
				h.rooms[c.Room] = make(map[*Client]bool)
			}
			h.rooms[c.Room][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if conns := h.rooms[c.Room]; conns != nil {
				delete(conns, c)
				if len(conns) == 0 {
					delete(h.rooms, c.Room)
				}
			}
			h.mu.Unlock()
			c.closeSend()

		case c := <-h.leave:
			// drop room membership but keep the send channel alive so the
			// client can subscribe again
			h.mu.Lock()
			if conns := h.rooms[c.Room]; conns != nil {
				delete(conns, c)
				if len(conns) == 0 {
					delete(h.rooms, c.Room)
				}
			}
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			for c := range h.rooms[m.Room] {
				if !c.trySend(m.Data) {
					// slow consumer: drop it from the room only. The read
					// side stays the sole closer of the send channel, via
					// its deferred unregister.
					delete(h.rooms[m.Room], c)
				}
			}
			if len(h.rooms[m.Room]) == 0 {
				delete(h.rooms, m.Room)
			}
			h.mu.Unlock()

		case <-h.stop:
			h.mu.Lock()
			for room, conns := range h.rooms {
				for c := range conns {
					c.closeSend()
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.stop)
}

// Register/Unregister/Leave/Broadcast fall through after Stop instead of
// blocking on a run loop that already returned.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.stop:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stop:
		c.closeSend()
	}
}

func (h *Hub) Leave(c *Client) {
	select {
	case h.leave <- c:
	case <-h.stop:
	}
}

func (h *Hub) Broadcast(room string, data []byte) {
	select {
	case h.broadcast <- broadcastMsg{Room: room, Data: data}:
	case <-h.stop:
	}
}

// SubscribedRooms lists rooms with at least one live subscriber; the
// reconciliation poll only re-fetches those.
func (h *Hub) SubscribedRooms() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.rooms))
	for room, conns := range h.rooms {
		if len(conns) > 0 {
			out = append(out, room)
		}
	}
	return out
}
