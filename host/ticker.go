package host

import (
	"context"
	"math"
	"time"
)

// DefaultTickRate is the tick frequency until a script sets refreshRate.
const DefaultTickRate = 120.0

// Ticker paces the loop. Wait blocks until the next tick boundary.
type Ticker interface {
	Wait(ctx context.Context) error
	SetRate(hz float64)
}

// Clock is a wall-clock Ticker. Missed ticks are dropped rather than
// replayed.
type Clock struct {
	next   time.Time
	rate   float64
	period time.Duration
}

// NewClock returns a Clock ticking hz times per second. A non-positive
// rate selects DefaultTickRate.
func NewClock(hz float64) *Clock {
	c := &Clock{rate: DefaultTickRate, period: periodOf(DefaultTickRate)}
	c.SetRate(hz)
	return c
}

// SetRate changes the frequency. Rates that are not finite and positive
// are ignored.
func (c *Clock) SetRate(hz float64) {
	if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return
	}
	c.rate = hz
	c.period = periodOf(hz)
}

// Rate returns the current frequency.
func (c *Clock) Rate() float64 {
	return c.rate
}

func (c *Clock) Wait(ctx context.Context) error {
	now := time.Now()
	if c.next.IsZero() || c.next.Before(now) {
		c.next = now
	}
	c.next = c.next.Add(c.period)

	t := time.NewTimer(c.next.Sub(now))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func periodOf(hz float64) time.Duration {
	return max(time.Duration(float64(time.Second)/hz), time.Microsecond)
}
