// Package events provides a publish/subscribe event bus for simulation
// observability. Events flow from components (platform actor, rec
// engine, environment driver, agents) to subscribers (CLI progress
// logging, tests, future metrics collectors). The bus is nil-safe:
// calling Publish on a nil *Bus is a no-op, so components do not need
// guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourcePlatform identifies events from the platform actor.
	SourcePlatform = "platform"
	// SourceRecsys identifies events from the recommendation engine.
	SourceRecsys = "recsys"
	// SourceEnv identifies events from the environment driver.
	SourceEnv = "env"
	// SourceAgent identifies events from agent turns.
	SourceAgent = "agent"
)

// Kind constants describe the type of event within a source.
const (
	// KindActionCommitted signals a handler committed a mutation.
	// Data: action, agent_id, trace (whether a trace row was written).
	KindActionCommitted = "action_committed"
	// KindActionRejected signals a handler refused a request.
	// Data: action, agent_id, error.
	KindActionRejected = "action_rejected"
	// KindRecRefresh signals a finished rec table rebuild.
	// Data: strategy, users, posts, duration_ms.
	KindRecRefresh = "rec_refresh"
	// KindStepStart signals the driver began a timestep.
	// Data: step, interventions, activated.
	KindStepStart = "step_start"
	// KindStepDone signals the driver finished a timestep.
	// Data: step, failed_agents, duration_ms.
	KindStepDone = "step_done"
	// KindTurnFailed signals one agent's LLM turn was skipped.
	// Data: agent_id, error.
	KindTurnFailed = "turn_failed"
	// KindShutdown signals the platform drained its queue and stopped.
	// Data: traces.
	KindShutdown = "shutdown"
)

// Event represents a single operational event published by a component.
type Event struct {
	// Timestamp is when the event occurred (real time, not the
	// simulation clock).
	Timestamp time.Time `json:"ts"`
	// Source identifies the component that published the event.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus. Subscribers receive events
// on buffered channels; slow subscribers miss events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the bidirectional channel stored in subs. This allows
	// Unsubscribe to accept <-chan Event (the caller's view) without
	// an illegal type conversion.
	recvToSend map[<-chan Event]chan Event
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that
// subscriber. Safe to call on a nil receiver (no-op).
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full — drop the event rather than block.
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe to avoid resource leaks.
// bufSize controls the channel buffer; 64 covers a CLI consumer
// logging at step granularity.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
