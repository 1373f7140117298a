package service

import (
	"encoding/json"
	"livepoll/internal/model"
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler records armed timers; tests fire them by hand
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) last(t *testing.T) *fakeTimer {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		t.Fatal("no timer armed")
	}
	return s.timers[len(s.timers)-1]
}

// fire runs the callback even if Stop was called, as when the timer
// goroutine was already on its way into the engine
func (t *fakeTimer) fire() { t.f() }

type sentEvent struct {
	aud     Audience
	typ     model.EventType
	payload any
}

// recordingBroadcaster captures broadcasts in emission order
type recordingBroadcaster struct {
	mu          sync.Mutex
	events      []sentEvent
	disconnects [][]string
}

func (b *recordingBroadcaster) Broadcast(aud Audience, typ model.EventType, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sentEvent{aud: aud, typ: typ, payload: payload})
}

func (b *recordingBroadcaster) Disconnect(handles []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnects = append(b.disconnects, append([]string(nil), handles...))
}

func (b *recordingBroadcaster) all() []sentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sentEvent(nil), b.events...)
}

func (b *recordingBroadcaster) count(typ model.EventType) int {
	n := 0
	for _, e := range b.all() {
		if e.typ == typ {
			n++
		}
	}
	return n
}

func (b *recordingBroadcaster) types() []model.EventType {
	var out []model.EventType
	for _, e := range b.all() {
		out = append(out, e.typ)
	}
	return out
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
	b.disconnects = nil
}

// fakeTransport records frames per handle
type fakeTransport struct {
	mu     sync.Mutex
	frames map[string][]model.Envelope
	closed []string
	order  []string // "send:<handle>:<type>" or "close:<handle>"
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{frames: make(map[string][]model.Envelope)}
}

func (t *fakeTransport) Send(handle string, data []byte) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		panic(err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames[handle] = append(t.frames[handle], env)
	t.order = append(t.order, "send:"+handle+":"+string(env.Type))
}

func (t *fakeTransport) Close(handle string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = append(t.closed, handle)
	t.order = append(t.order, "close:"+handle)
}

func (t *fakeTransport) types(handle string) []model.EventType {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.EventType
	for _, env := range t.frames[handle] {
		out = append(out, env.Type)
	}
	return out
}

func (t *fakeTransport) sequence() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.order...)
}

type staticDirectory []string

func (d staticDirectory) ParticipantIDs(model.Role) []string { return d }

func equalTypes(a, b []model.EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func twoOptions() []model.OptionInput {
	return []model.OptionInput{{Text: "London"}, {Text: "Paris", IsCorrect: true}}
}
