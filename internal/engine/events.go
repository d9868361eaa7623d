package engine

import (
	"sync"
	"sync/atomic"
)

// EventKind names one step of an engine operation.
type EventKind string

const (
	EventLoad      EventKind = "load"
	EventDiscover  EventKind = "discover"
	EventQuery     EventKind = "query"
	EventMutate    EventKind = "mutate"
	EventVerify    EventKind = "verify"
	EventRetry     EventKind = "retry"
	EventReconcile EventKind = "reconcile"
	EventSettle    EventKind = "settle"
	EventError     EventKind = "error"
)

// Event is one trace entry.
type Event struct {
	Seq     int64     `json:"seq" yaml:"seq"`
	OpID    string    `json:"op_id" yaml:"op_id"`
	Kind    EventKind `json:"kind" yaml:"kind"`
	Path    string    `json:"path,omitempty" yaml:"path,omitempty"`
	Service string    `json:"service,omitempty" yaml:"service,omitempty"`
	Attempt int       `json:"attempt,omitempty" yaml:"attempt,omitempty"`
	Count   int       `json:"count,omitempty" yaml:"count,omitempty"`
	Granted *bool     `json:"granted,omitempty" yaml:"granted,omitempty"`
	Detail  string    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Clock stamps trace events with a seq that starts at 1 and strictly
// increases across every operation of one engine. Safe for concurrent use.
type Clock struct {
	last atomic.Int64
}

// NewClock creates a clock whose first seq is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the seq for the next event.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Last returns the most recently issued seq, 0 before the first event.
func (c *Clock) Last() int64 {
	return c.last.Load()
}

// Observer receives trace events. Observe may be called from several
// goroutines.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Recorder is an Observer that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Observe implements Observer.
func (r *Recorder) Observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in arrival order.
func (r *Recorder) Kinds() []EventKind {
	events := r.Events()
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func boolPtr(b bool) *bool { return &b }
