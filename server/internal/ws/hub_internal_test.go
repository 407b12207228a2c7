package ws

import (
	"sync"
	"testing"
)

// TestBroadcastRacesUnregister drops clients while broadcasts are in flight.
// A send on a channel closed by unregister would panic.
func TestBroadcastRacesUnregister(t *testing.T) {
	h := New(nil, nil, nil)

	const n = 2000
	clients := make([]*client, n)
	for i := range clients {
		clients[i] = &client{send: make(chan []byte, 1)}
		h.register(clients[i])
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, c := range clients {
			h.unregister(c)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			h.broadcast([]byte("tick"))
		}
	}()
	wg.Wait()

	if got := h.Count(); got != 0 {
		t.Errorf("Count after unregister: got %d, want 0", got)
	}
}

// TestBroadcastDropsFullClient disconnects a client whose buffer is full.
func TestBroadcastDropsFullClient(t *testing.T) {
	h := New(nil, nil, nil)
	c := &client{send: make(chan []byte, 1)}
	h.register(c)

	h.broadcast([]byte("one"))
	h.broadcast([]byte("two"))

	if got := h.Count(); got != 0 {
		t.Fatalf("Count: got %d, want 0", got)
	}
	if msg, ok := <-c.send; !ok || string(msg) != "one" {
		t.Errorf("first queued message: got %q ok=%v, want \"one\"", msg, ok)
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after drop")
	}
}
