package service

import (
	"context"
	"encoding/json"
	"livepoll/internal/events"
	"livepoll/internal/model"
	"log/slog"
	"sync"
	"time"
)

const (
	outboxSize = 1024
	mirrorSize = 256
)

type deliveryOp int

const (
	opSend deliveryOp = iota
	opClose
	opBarrier
)

type delivery struct {
	op      deliveryOp
	handles []string
	data    []byte
	ack     chan struct{}
}

type mirrorMsg struct {
	subject string
	frame   json.RawMessage
}

// Coordinator fans events out to live sessions. The audience is resolved at
// emit time and frames go through one dispatcher goroutine, so every session
// sees events in the order they were emitted.
type Coordinator struct {
	roster    Roster
	transport Transport

	outbox    chan delivery
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	mirrorMu  sync.RWMutex
	publisher events.Publisher
	prefix    string
	mirror    chan mirrorMsg
	mirrorEnd chan struct{}
}

// NewCoordinator starts the dispatcher. Call Close to stop it.
func NewCoordinator(roster Roster, transport Transport) *Coordinator {
	c := &Coordinator{
		roster:    roster,
		transport: transport,
		outbox:    make(chan delivery, outboxSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go c.run()
	return c
}

// SetPublisher mirrors every Everyone-audience event to pub under
// <prefix>.<event_type>. Call before traffic starts.
func (c *Coordinator) SetPublisher(pub events.Publisher, prefix string) {
	c.mirrorMu.Lock()
	defer c.mirrorMu.Unlock()
	if c.mirror != nil || pub == nil {
		return
	}
	c.publisher = pub
	c.prefix = prefix
	c.mirror = make(chan mirrorMsg, mirrorSize)
	c.mirrorEnd = make(chan struct{})
	go c.runMirror(pub, c.mirror, c.mirrorEnd)
}

// Broadcast implements Broadcaster
func (c *Coordinator) Broadcast(aud Audience, typ model.EventType, payload any) {
	frame, err := encodeFrame(typ, payload)
	if err != nil {
		slog.Error("coordinator: encode failed", "type", typ, "err", err)
		return
	}

	if aud.Kind == AudienceEveryone {
		c.mirrorFrame(typ, frame)
	}

	handles := c.roster.Handles(aud)
	if len(handles) == 0 {
		return
	}
	c.enqueue(delivery{op: opSend, handles: handles, data: frame})
}

// Disconnect closes the given connections after every frame already queued
// for them has been handed to the transport
func (c *Coordinator) Disconnect(handles []string) {
	if len(handles) == 0 {
		return
	}
	c.enqueue(delivery{op: opClose, handles: append([]string(nil), handles...)})
}

// Flush blocks until everything queued before the call has been handed to
// the transport
func (c *Coordinator) Flush() {
	ack := make(chan struct{})
	if !c.enqueue(delivery{op: opBarrier, ack: ack}) {
		return
	}
	select {
	case <-ack:
	case <-c.stopped:
	}
}

// Close drains the outbox and stops the dispatcher and the mirror
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		<-c.stopped

		c.mirrorMu.Lock()
		mirror, end := c.mirror, c.mirrorEnd
		c.mirror = nil
		c.mirrorMu.Unlock()
		if mirror != nil {
			close(mirror)
			<-end
		}
	})
}

func (c *Coordinator) enqueue(d delivery) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outbox <- d:
		return true
	case <-c.done:
		return false
	}
}

func (c *Coordinator) run() {
	defer close(c.stopped)
	for {
		select {
		case d := <-c.outbox:
			c.deliver(d)
		case <-c.done:
			for {
				select {
				case d := <-c.outbox:
					c.deliver(d)
				default:
					return
				}
			}
		}
	}
}

func (c *Coordinator) deliver(d delivery) {
	switch d.op {
	case opSend:
		for _, h := range d.handles {
			c.transport.Send(h, d.data)
		}
	case opClose:
		for _, h := range d.handles {
			c.transport.Close(h)
		}
	case opBarrier:
		close(d.ack)
	}
}

func (c *Coordinator) mirrorFrame(typ model.EventType, frame []byte) {
	c.mirrorMu.RLock()
	defer c.mirrorMu.RUnlock()
	if c.mirror == nil {
		return
	}
	select {
	case c.mirror <- mirrorMsg{subject: events.Subject(c.prefix, string(typ)), frame: frame}:
	default:
		slog.Warn("coordinator: mirror queue full, event dropped", "type", typ)
	}
}

func (c *Coordinator) runMirror(pub events.Publisher, in <-chan mirrorMsg, end chan<- struct{}) {
	defer close(end)
	for m := range in {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := pub.Publish(ctx, m.subject, m.frame); err != nil {
			slog.Warn("coordinator: mirror publish failed", "subject", m.subject, "err", err)
		}
		cancel()
	}
}

func encodeFrame(typ model.EventType, payload any) ([]byte, error) {
	env := model.Envelope{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
