package hub

import (
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := New("test")
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func recv(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}, false
	}
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	h := startHub(t)

	a, b := newClient(h), newClient(h)
	h.register <- a
	h.register <- b
	waitClients(t, h, 2)

	h.BroadcastBinary([]byte{0xff, 0xd8})

	for _, c := range []*Client{a, b} {
		m, ok := recv(t, c)
		if !ok || m.Kind != Binary || len(m.Data) != 2 {
			t.Errorf("client %s got %+v ok=%v", c.ID, m, ok)
		}
	}
}

func TestHub_ReplaysLatestToNewClient(t *testing.T) {
	h := startHub(t)

	first := newClient(h)
	h.register <- first
	waitClients(t, h, 1)

	if err := h.BroadcastJSON(map[string]int{"speed": 10}); err != nil {
		t.Fatal(err)
	}
	if err := h.BroadcastJSON(map[string]int{"speed": 20}); err != nil {
		t.Fatal(err)
	}
	// Both broadcasts have been handled once the first client sees them.
	for i := 0; i < 2; i++ {
		if _, ok := recv(t, first); !ok {
			t.Fatal("first client closed")
		}
	}

	c := newClient(h)
	h.register <- c

	m, ok := recv(t, c)
	if !ok || m.Kind != Text || string(m.Data) != `{"speed":20}` {
		t.Errorf("replayed %+v ok=%v", m, ok)
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := startHub(t)

	c := newClient(h)
	h.register <- c
	waitClients(t, h, 1)

	h.unregister <- c
	if _, ok := recv(t, c); ok {
		t.Error("send channel should be closed")
	}
	waitClients(t, h, 0)
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := startHub(t)

	c := newClient(h)
	h.register <- c
	waitClients(t, h, 1)

	for i := 0; i < sendBuffer+10; i++ {
		h.BroadcastBinary([]byte{byte(i)})
	}
	waitClients(t, h, 0)
}

func TestHub_StopClosesClients(t *testing.T) {
	h := New("stop")
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()

	c := newClient(h)
	h.register <- c
	waitClients(t, h, 1)

	h.Stop()
	h.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if _, ok := recv(t, c); ok {
		t.Error("client should be closed on stop")
	}
	if h.IsRunning() {
		t.Error("hub should not be running")
	}
}

func TestMessage_FrameType(t *testing.T) {
	if got := TextMessage([]byte("{}")).frameType(); got != websocket.TextMessage {
		t.Errorf("text frame type = %d", got)
	}
	if got := BinaryMessage([]byte{0xff}).frameType(); got != websocket.BinaryMessage {
		t.Errorf("binary frame type = %d", got)
	}
}
