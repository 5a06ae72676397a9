package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, userID, householdID int64) *Client {
	return &Client{
		hub:         hub,
		send:        make(chan []byte, sendBufferSize),
		userID:      userID,
		householdID: householdID,
	}
}

func drain(c *Client) int {
	count := 0
	for {
		select {
		case _, ok := <-c.send:
			if !ok {
				return count
			}
			count++
		default:
			return count
		}
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := testHub()

	c1 := mockClient(hub, 1, 1)
	c2 := mockClient(hub, 2, 1)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := testHub()
	c := mockClient(hub, 1, 1)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastScopedToHousehold(t *testing.T) {
	hub := testHub()

	c1 := mockClient(hub, 1, 10)
	c2 := mockClient(hub, 2, 10)
	other := mockClient(hub, 3, 20)
	hub.Register(c1)
	hub.Register(c2)
	hub.Register(other)

	hub.Broadcast(10, NewMessage("product", "created", 42, map[string]any{"tag": "#dairy"}))

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "product_created" {
				t.Errorf("expected type product_created, got %s", got.Type)
			}
			if got.ID != 42 {
				t.Errorf("expected id 42, got %d", got.ID)
			}
			if got.Extra["tag"] != "#dairy" {
				t.Errorf("extra = %v", got.Extra)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	if n := drain(other); n != 0 {
		t.Errorf("other household received %d messages", n)
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := testHub()
	// Should not panic
	hub.Broadcast(1, NewMessage("member", "joined", 1, nil))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := testHub()

	c := mockClient(hub, 1, 1)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(1, NewMessage("test", "fill", int64(i), nil))
	}

	// This should drop the message, not panic or block
	hub.Broadcast(1, NewMessage("test", "dropped", 999, nil))

	if count := drain(c); count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestDisconnectUser(t *testing.T) {
	hub := testHub()

	phone := mockClient(hub, 1, 10)
	laptop := mockClient(hub, 1, 10)
	owner := mockClient(hub, 2, 10)
	hub.Register(phone)
	hub.Register(laptop)
	hub.Register(owner)

	hub.DisconnectUser(1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client, got %d", got)
	}
	for _, c := range []*Client{phone, laptop} {
		if _, ok := <-c.send; ok {
			t.Error("send channel should be closed")
		}
	}

	// The removed member no longer receives household updates.
	hub.Broadcast(10, NewMessage("member", "removed", 1, nil))
	if n := drain(owner); n != 1 {
		t.Errorf("owner received %d messages, want 1", n)
	}

	// Run's deferred Unregister after a disconnect is a no-op.
	hub.Unregister(phone)
	hub.DisconnectUser(99)
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("expected 1 client, got %d", got)
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("invite", "accepted", 5, nil)
	if msg.Type != "invite_accepted" {
		t.Errorf("expected type invite_accepted, got %s", msg.Type)
	}
	if msg.Entity != "invite" {
		t.Errorf("expected entity invite, got %s", msg.Entity)
	}
	if msg.Action != "accepted" {
		t.Errorf("expected action accepted, got %s", msg.Action)
	}
	if msg.ID != 5 {
		t.Errorf("expected id 5, got %d", msg.ID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := testHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := mockClient(hub, int64(i), int64(i%3))
			hub.Register(c)
			hub.Broadcast(int64(i%3), NewMessage("test", "concurrent", 0, nil))
			if i%5 == 0 {
				hub.DisconnectUser(int64(i))
			}
			drain(c)
			hub.Unregister(c)
		}(i)
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
