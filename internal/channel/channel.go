// Package channel implements the request/response bus between agents
// and the platform actor. Many goroutines send; exactly one (the
// platform loop) receives. Each request carries a fresh uuid and the
// sender blocks until the response bearing that uuid comes back, so
// the bus behaves like a call into the single-writer platform.
package channel

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// DefaultCapacity bounds the inbound queue. Producers block when the
// platform falls this far behind, which is the backpressure the
// simulation wants when thousands of agent turns land at once.
const DefaultCapacity = 1024

// Request is one agent action awaiting the platform.
type Request struct {
	ID      string
	AgentID int64
	Action  string
	Payload any
}

// Response is the platform's reply to a single Request.
type Response struct {
	ID      string
	AgentID int64
	Result  map[string]any
}

// Channel is the bus. The zero value is not usable; call New.
type Channel struct {
	inbound chan Request

	mu      sync.Mutex
	waiters map[string]chan Response
	closed  bool
}

// New creates a bus with DefaultCapacity.
func New() *Channel {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates a bus whose inbound queue holds up to n
// requests before senders block.
func NewWithCapacity(n int) *Channel {
	if n < 1 {
		n = 1
	}
	return &Channel{
		inbound: make(chan Request, n),
		waiters: make(map[string]chan Response),
	}
}

// NewRequestID returns a fresh request id.
func NewRequestID() string {
	return uuid.NewString()
}

// Send enqueues a request and blocks until the matching response
// arrives or ctx is done. Cancellation after the platform has
// committed does not roll anything back; the reply is simply dropped.
func (c *Channel) Send(ctx context.Context, agentID int64, action string, payload any) (map[string]any, error) {
	id := NewRequestID()

	waiter := make(chan Response, 1)
	c.mu.Lock()
	c.waiters[id] = waiter
	c.mu.Unlock()

	req := Request{ID: id, AgentID: agentID, Action: action, Payload: payload}
	select {
	case c.inbound <- req:
	case <-ctx.Done():
		c.dropWaiter(id)
		return nil, ctx.Err()
	}

	select {
	case resp := <-waiter:
		return resp.Result, nil
	case <-ctx.Done():
		c.dropWaiter(id)
		return nil, ctx.Err()
	}
}

// Put enqueues a request without waiting for any reply. Used for
// control tags the platform never answers (exit, update_rec_table when
// fired blind).
func (c *Channel) Put(ctx context.Context, agentID int64, action string, payload any) error {
	req := Request{ID: NewRequestID(), AgentID: agentID, Action: action, Payload: payload}
	select {
	case c.inbound <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until a request is available. Only the platform loop
// calls this.
func (c *Channel) Receive(ctx context.Context) (Request, error) {
	select {
	case req := <-c.inbound:
		return req, nil
	case <-ctx.Done():
		return Request{}, ctx.Err()
	}
}

// Reply delivers a response to the waiter registered for its id. If
// the waiter has gone away (cancelled caller, or a Put request) the
// response is discarded.
func (c *Channel) Reply(resp Response) {
	c.mu.Lock()
	waiter, ok := c.waiters[resp.ID]
	if ok {
		delete(c.waiters, resp.ID)
	}
	c.mu.Unlock()

	if ok {
		// Buffered by one; never blocks, delivers exactly once.
		waiter <- resp
	}
}

// Pending returns how many callers are currently blocked on replies.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *Channel) dropWaiter(id string) {
	c.mu.Lock()
	delete(c.waiters, id)
	c.mu.Unlock()
}
