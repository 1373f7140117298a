package ws

import (
	"log/slog"
	"sync"
)

const (
	sendBufferSize   = 256
	outboundQueueLen = 1024
)

// Client is one WebSocket connection known to the hub
type Client struct {
	Handle string
	send   chan []byte
}

// NewClient creates a client for a connection handle
func NewClient(handle string) *Client {
	return &Client{Handle: handle, send: make(chan []byte, sendBufferSize)}
}

// Outbound returns the channel the write pump drains. It is closed when the
// hub drops the client.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// frame is a queued send, or a close when data is nil
type frame struct {
	handle string
	data   []byte
}

// Hub owns the set of live connections. Register, unregister, send and
// close all go through one run loop, so a frame can never race a
// registration for the same handle.
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	outbound   chan frame
	quit       chan struct{}
	done       chan struct{}
	quitOnce   sync.Once
}

// NewHub creates a new WebSocket hub and starts its run loop
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan frame, outboundQueueLen),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			if old, ok := h.clients[c.Handle]; ok && old != c {
				close(old.send)
			}
			h.clients[c.Handle] = c
			slog.Debug("ws: client registered", "handle", c.Handle, "clients", len(h.clients))

		case c := <-h.unregister:
			if existing, ok := h.clients[c.Handle]; ok && existing == c {
				delete(h.clients, c.Handle)
				close(c.send)
				slog.Debug("ws: client unregistered", "handle", c.Handle, "clients", len(h.clients))
			}

		case f := <-h.outbound:
			c, ok := h.clients[f.handle]
			if !ok {
				continue
			}
			if f.data == nil {
				delete(h.clients, f.handle)
				close(c.send)
				slog.Info("ws: client closed by server", "handle", f.handle)
				continue
			}
			select {
			case c.send <- f.data:
			default:
				// Drop message if buffer full
				slog.Warn("ws: send buffer full, frame dropped", "handle", f.handle)
			}

		case <-h.quit:
			for handle, c := range h.clients {
				delete(h.clients, handle)
				close(c.send)
			}
			return
		}
	}
}

// Register adds a connection. It reports false once the hub is shut down.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Send queues a frame for handle (implements service.Transport). Unknown
// handles are ignored.
func (h *Hub) Send(handle string, data []byte) {
	if data == nil {
		data = []byte{}
	}
	h.enqueue(frame{handle: handle, data: data})
}

// Close drops a connection after the frames queued before it (implements
// service.Transport)
func (h *Hub) Close(handle string) {
	h.enqueue(frame{handle: handle})
}

func (h *Hub) enqueue(f frame) {
	select {
	case h.outbound <- f:
	case <-h.quit:
	}
}

// Shutdown closes every connection and stops the run loop
func (h *Hub) Shutdown() {
	h.quitOnce.Do(func() { close(h.quit) })
	<-h.done
}
