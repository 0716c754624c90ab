package host

import (
	"math"
	"time"
)

// clock derives the engine's domain time. Caller timestamps (milliseconds)
// are used when present, anchored at the first one; frames without a
// timestamp advance the clock by a fixed interval. The clock never runs
// backwards.
type clock struct {
	interval time.Duration
	started  bool
	anchored bool
	anchor   float64
	now      time.Duration
}

func newClock(interval time.Duration) *clock {
	return &clock{interval: interval}
}

func (c *clock) tick(ts *float64) time.Duration {
	if ts == nil || math.IsNaN(*ts) || math.IsInf(*ts, 0) {
		if c.started {
			c.now += c.interval
		}
		c.started = true
		return c.now
	}

	if !c.anchored {
		c.anchored = true
		c.anchor = *ts - float64(c.now)/float64(time.Millisecond)
	}
	c.started = true

	if t := time.Duration((*ts - c.anchor) * float64(time.Millisecond)); t > c.now {
		c.now = t
	}
	return c.now
}
