package occupancy

import (
	"encoding/json"
	"testing"
	"time"
)

func TestHubRegisterBroadcastUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{
		Send: make(chan []byte, 10),
		Room: "room-1",
	}

	hub.register <- client

	msg := outboundMsg{Type: "occupancyUpdate", RoomID: "room-1"}
	data, _ := json.Marshal(msg)
	hub.broadcast <- broadcastMsg{Room: "room-1", Data: data}

	select {
	case got := <-client.Send:
		if string(got) != string(data) {
			t.Fatalf("expected %s, got %s", data, got)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	hub.unregister <- client
}

func TestHubBroadcastSkipsOtherRooms(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	sub := &Client{Send: make(chan []byte, 10), Room: "room-1"}
	other := &Client{Send: make(chan []byte, 10), Room: "room-2"}
	hub.register <- sub
	hub.register <- other

	hub.broadcast <- broadcastMsg{Room: "room-1", Data: []byte("update")}

	select {
	case <-sub.Send:
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	select {
	case got := <-other.Send:
		t.Fatalf("room-2 client should not receive anything, got %s", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubLeaveKeepsSendOpen(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{Send: make(chan []byte, 10), Room: "room-1"}
	hub.register <- client
	hub.leave <- client

	hub.broadcast <- broadcastMsg{Room: "room-1", Data: []byte("update")}

	select {
	case got, ok := <-client.Send:
		if !ok {
			t.Fatal("send channel closed on leave")
		}
		t.Fatalf("left client should not receive anything, got %s", got)
	case <-time.After(100 * time.Millisecond):
	}

	// resubscribe to a new room and receive again
	client.Room = "room-2"
	hub.register <- client
	hub.broadcast <- broadcastMsg{Room: "room-2", Data: []byte("hello")}

	select {
	case got := <-client.Send:
		if string(got) != "hello" {
			t.Fatalf("expected hello, got %s", got)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for resubscribed message")
	}
}

func TestHubSubscribedRooms(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	a := &Client{Send: make(chan []byte, 1), Room: "room-a"}
	b := &Client{Send: make(chan []byte, 1), Room: "room-b"}
	hub.register <- a
	hub.register <- b
	hub.unregister <- b

	// give the run loop a beat to process
	time.Sleep(50 * time.Millisecond)

	rooms := hub.SubscribedRooms()
	if len(rooms) != 1 || rooms[0] != "room-a" {
		t.Fatalf("expected [room-a], got %v", rooms)
	}
}

func TestHubSlowClientDoesNotClosePipe(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{Send: make(chan []byte, 1), Room: "room-1"}
	hub.register <- client

	// fill the buffer, then broadcast so the run loop drops the slow client
	client.Send <- []byte("backlog")
	hub.Broadcast("room-1", []byte("overflow"))

	time.Sleep(50 * time.Millisecond)

	if got := hub.SubscribedRooms(); len(got) != 0 {
		t.Fatalf("expected slow client dropped from room, still have %v", got)
	}

	// the read side can still answer a ping; the channel must stay open
	// until its own deferred unregister closes it
	send(client, outboundMsg{Type: "pong"})

	hub.Unregister(client)
	time.Sleep(50 * time.Millisecond)

	if got := <-client.Send; string(got) != "backlog" {
		t.Fatalf("expected buffered backlog, got %s", got)
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected send channel closed after unregister")
	}
}

func TestHubCallsAfterStopReturn(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	hub.Stop()

	done := make(chan struct{})
	go func() {
		c := &Client{Send: make(chan []byte, 1), Room: "room-1"}
		hub.Register(c)
		hub.Broadcast("room-1", []byte("update"))
		hub.Leave(c)
		hub.Unregister(c)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub call blocked after Stop")
	}
}
