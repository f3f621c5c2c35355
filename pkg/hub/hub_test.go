package hub

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	h := New("steps")
	if h.Topic() != "steps" {
		t.Errorf("Topic = %q, want steps", h.Topic())
	}
	if h.ClientCount() != 0 {
		t.Error("ClientCount should be 0 initially")
	}
	if h.IsRunning() {
		t.Error("hub should not run before Run")
	}
}

func TestBroadcast_DropsWhenQueueFull(t *testing.T) {
	h := New("steps")

	for i := 0; i < 300; i++ {
		h.Broadcast([]byte(`{}`))
	}

	stats := h.Stats()
	if stats.Published != 256 {
		t.Errorf("Published = %d, want 256", stats.Published)
	}
	if stats.Dropped != 44 {
		t.Errorf("Dropped = %d, want 44", stats.Dropped)
	}
}

func TestBroadcastJSON_EncodeError(t *testing.T) {
	h := New("steps")
	if err := h.BroadcastJSON(func() {}); err == nil {
		t.Error("expected error for unencodable value")
	}
	if err := h.BroadcastJSON(map[string]float64{"reward": 0.9}); err != nil {
		t.Errorf("BroadcastJSON: %v", err)
	}
}

func TestRun_StopsCleanly(t *testing.T) {
	h := New("steps")
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for !h.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !h.IsRunning() {
		t.Fatal("hub did not start")
	}

	h.Stop()
	h.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if h.IsRunning() {
		t.Error("hub still reports running")
	}
	if c := NewClient(h, nil); c != nil {
		t.Error("NewClient should fail on a stopped hub")
	}
}

func TestRun_DeliversToClients(t *testing.T) {
	h := New("steps")
	go h.Run()
	defer h.Stop()

	c := &Client{hub: h, send: make(chan []byte, 1)}
	h.register <- c

	h.Broadcast([]byte(`{"step":1}`))

	select {
	case got := <-c.send:
		if string(got) != `{"step":1}` {
			t.Errorf("got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("client did not receive the broadcast")
	}
	if n := h.ClientCount(); n != 1 {
		t.Errorf("ClientCount = %d, want 1", n)
	}
}
