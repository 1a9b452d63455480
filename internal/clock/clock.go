// Package clock provides the virtual time source for a simulation.
//
// Two modes exist. Tick mode holds an integer time step that the
// environment driver advances after each round of agent turns; Now
// renders the step as a string. Scaled mode anchors a virtual start
// instant to the real clock and stretches elapsed real time by a
// factor k, so a minute of wall time can stand in for a day of
// platform time.
package clock

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// TimestampLayout is how scaled-mode instants are rendered and stored.
// Database timestamps are strings; analysis tooling parses this layout.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Clock is safe for concurrent use: the driver advances it while the
// platform stamps rows.
type Clock struct {
	mu sync.Mutex

	// tick mode
	ticking bool
	step    int64

	// scaled mode
	start     time.Time
	realStart time.Time
	k         float64
}

// NewTick returns a tick-mode clock starting at step 0.
func NewTick() *Clock {
	return &Clock{ticking: true}
}

// NewScaled returns a scaled-mode clock. Virtual time begins at start
// and advances k times faster than real time. A k of zero freezes the
// clock at start.
func NewScaled(start time.Time, k float64) *Clock {
	return &Clock{
		start:     start,
		realStart: time.Now(),
		k:         k,
	}
}

// Ticking reports whether the clock is in tick mode.
func (c *Clock) Ticking() bool {
	return c.ticking
}

// Now returns the current virtual time as the string stored in
// created_at columns: the bare step in tick mode, a formatted datetime
// in scaled mode.
func (c *Clock) Now() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticking {
		return strconv.FormatInt(c.step, 10)
	}
	return c.virtualNowLocked().Format(TimestampLayout)
}

// TimeStep returns the current integer step. Zero in scaled mode.
func (c *Clock) TimeStep() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Advance increments the step. No-op in scaled mode, where time moves
// on its own.
func (c *Clock) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticking {
		c.step++
	}
}

// VirtualNow returns the current virtual instant in scaled mode. In
// tick mode it returns the zero time; callers branch on Ticking.
func (c *Clock) VirtualNow() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticking {
		return time.Time{}
	}
	return c.virtualNowLocked()
}

func (c *Clock) virtualNowLocked() time.Time {
	elapsed := time.Since(c.realStart)
	scaled := time.Duration(float64(elapsed) * c.k)
	return c.start.Add(scaled)
}

// ParseTimestamp reads a created_at value back as either an integer
// tick or a scaled-mode datetime.
func ParseTimestamp(s string) (tick int64, t time.Time, err error) {
	if n, convErr := strconv.ParseInt(s, 10, 64); convErr == nil {
		return n, time.Time{}, nil
	}
	parsed, parseErr := time.Parse(TimestampLayout, s)
	if parseErr != nil {
		// Tolerate values written without fractional seconds.
		parsed, parseErr = time.Parse("2006-01-02 15:04:05", s)
	}
	if parseErr != nil {
		return 0, time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, parseErr)
	}
	return 0, parsed, nil
}
