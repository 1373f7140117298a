package ws

import (
	"testing"
	"time"
)

func recv(t *testing.T, c *Client) ([]byte, bool) {
	t.Helper()
	select {
	case data, ok := <-c.Outbound():
		return data, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client frame")
	}
	return nil, false
}

// settle waits until the run loop has handled every queued frame. Once the
// queue is empty, an unbuffered register only completes after the loop
// finished the frame it was working on.
func settle(t *testing.T, h *Hub) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(h.outbound) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("hub outbound queue did not drain")
		}
		time.Sleep(time.Millisecond)
	}
	tmp := NewClient("settle")
	h.Register(tmp)
	h.Unregister(tmp)
}

func TestHub_SendThenCloseKeepsOrder(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	c := NewClient("c1")
	if !h.Register(c) {
		t.Fatal("Register on a live hub returned false")
	}
	h.Send("c1", []byte("one"))
	h.Send("c1", []byte("two"))
	h.Close("c1")
	h.Send("c1", []byte("late"))

	for _, want := range []string{"one", "two"} {
		data, ok := recv(t, c)
		if !ok || string(data) != want {
			t.Fatalf("got %q ok=%v, want %q", data, ok, want)
		}
	}
	if _, ok := recv(t, c); ok {
		t.Error("channel still open after Close")
	}
}

func TestHub_UnknownHandleIgnored(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()
	h.Send("ghost", []byte("x"))
	h.Close("ghost")

	c := NewClient("c1")
	h.Register(c)
	h.Send("c1", nil)
	if data, ok := recv(t, c); !ok || len(data) != 0 {
		t.Errorf("empty frame = %q ok=%v", data, ok)
	}
}

func TestHub_ReregisterReplacesClient(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	old := NewClient("c1")
	h.Register(old)
	fresh := NewClient("c1")
	h.Register(fresh)

	if _, ok := recv(t, old); ok {
		t.Error("replaced client not closed")
	}
	h.Unregister(old)
	h.Send("c1", []byte("hi"))
	if data, ok := recv(t, fresh); !ok || string(data) != "hi" {
		t.Errorf("fresh client got %q ok=%v", data, ok)
	}
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	h := NewHub()
	defer h.Shutdown()

	c := NewClient("c1")
	h.Register(c)
	for i := 0; i < sendBufferSize+10; i++ {
		h.Send("c1", []byte("x"))
	}
	settle(t, h)
	h.Close("c1")

	n := 0
	for {
		_, ok := recv(t, c)
		if !ok {
			break
		}
		n++
	}
	if n != sendBufferSize {
		t.Errorf("delivered %d frames, want %d", n, sendBufferSize)
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := NewHub()
	c := NewClient("c1")
	h.Register(c)
	h.Shutdown()
	h.Shutdown()

	if _, ok := recv(t, c); ok {
		t.Error("client open after Shutdown")
	}
	if h.Register(NewClient("c2")) {
		t.Error("Register after Shutdown returned true")
	}
	h.Send("c1", []byte("x"))
	h.Unregister(c)
}
