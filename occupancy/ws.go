package occupancy

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"reservio/middleware"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// heartbeat so dead connections are detected and reaped
const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

type inboundMsg struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	RoomID string `json:"roomId,omitempty"`
}

type outboundMsg struct {
	Type         string  `json:"type"`
	Message      string  `json:"message,omitempty"`
	RoomID       string  `json:"roomId,omitempty"`
	Occupied     *bool   `json:"occupied,omitempty"`
	Reservations []Entry `json:"reservations,omitempty"`
}

// Handler upgrades the connection and speaks the occupancy protocol: a
// welcome message, then auth before any room subscription.
func Handler(b *Broadcaster) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("[occupancy] upgrade:", err)
			return
		}

		client := &Client{
			Conn: conn,
			Send: make(chan []byte, 256),
		}

		go writePump(client)
		send(client, outboundMsg{
			Type:    "connected",
			Message: "Connected to occupancy stream. Send auth message with JWT token.",
		})
		readPump(client, b)
	}
}

func writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func readPump(c *Client, b *Broadcaster) {
	defer func() {
		if c.Room != "" {
			b.hub.Unregister(c)
		} else {
			c.closeSend()
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		var in inboundMsg
		if err := json.Unmarshal(raw, &in); err != nil {
			send(c, outboundMsg{Type: "error", Message: "Invalid message format"})
			continue
		}

		switch in.Type {
		case "auth":
			handleAuth(c, in)

		case "subscribe", "subscribeRoom":
			handleSubscribe(c, b, in)

		case "unsubscribe":
			if c.Room != "" {
				b.hub.Leave(c)
				c.Room = ""
			}

		case "ping":
			send(c, outboundMsg{Type: "pong"})

		default:
			send(c, outboundMsg{Type: "error", Message: "Unknown message type: " + in.Type})
		}
	}
}

func handleAuth(c *Client, in inboundMsg) {
	if in.Token == "" {
		send(c, outboundMsg{Type: "auth_failed", Message: "Token is required"})
		return
	}

	claims, err := middleware.ValidateJWT(in.Token)
	if err != nil {
		send(c, outboundMsg{Type: "auth_failed", Message: "Invalid token"})
		return
	}
	if !claims.HasRole(middleware.AdminRole) {
		send(c, outboundMsg{Type: "auth_failed", Message: "Insufficient role"})
		return
	}

	c.Authenticated = true
	c.Email = claims.Email
	if c.Email == "" {
		c.Email = claims.PreferredUsername
	}
	send(c, outboundMsg{Type: "auth_success", Message: "Authentication successful"})
}

func handleSubscribe(c *Client, b *Broadcaster, in inboundMsg) {
	if !c.Authenticated {
		send(c, outboundMsg{Type: "error", Message: "Authentication required"})
		return
	}
	if in.RoomID == "" {
		send(c, outboundMsg{Type: "error", Message: "roomId is required"})
		return
	}

	if c.Room != "" {
		b.hub.Leave(c)
	}
	c.Room = in.RoomID
	b.hub.Register(c)

	// cold cache: fetch ground truth before answering
	if !b.cache.Known(in.RoomID) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		b.Reconcile(ctx, in.RoomID)
		cancel()
	}

	now := b.Now()
	occupied, _ := b.cache.RefreshOccupied(in.RoomID, now)
	send(c, outboundMsg{Type: "subscribed", RoomID: in.RoomID})
	send(c, outboundMsg{
		Type:         "occupancyUpdate",
		RoomID:       in.RoomID,
		Occupied:     &occupied,
		Reservations: b.cache.Snapshot(in.RoomID),
	})
}

func send(c *Client, msg outboundMsg) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}
