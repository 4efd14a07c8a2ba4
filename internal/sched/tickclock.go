// internal/sched/tickclock.go

package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// MsToTicks converts milliseconds to the smallest tick count covering them.
// Zero stays zero: it means "yield", not "wait one tick". A zero period is
// treated as one millisecond, which makes the conversion the identity.
func MsToTicks(ms, tickPeriodMs uint32) uint32 {
	if ms == 0 {
		return 0
	}
	if tickPeriodMs <= 1 {
		return ms
	}
	return uint32((uint64(ms) + uint64(tickPeriodMs) - 1) / uint64(tickPeriodMs))
}

// TickConverter converts between milliseconds, ticks and wall-clock durations
// for one tick period.
type TickConverter struct {
	PeriodMs uint32
}

// Ticks returns MsToTicks(ms, c.PeriodMs).
func (c TickConverter) Ticks(ms uint32) uint32 { return MsToTicks(ms, c.PeriodMs) }

// Duration is the wall-clock length of n ticks.
func (c TickConverter) Duration(ticks uint32) time.Duration {
	period := c.PeriodMs
	if period == 0 {
		period = 1
	}
	return time.Duration(ticks) * time.Duration(period) * time.Millisecond
}

// Clock is the millisecond time source of the cooperative backend.
type Clock interface {
	Millis() uint64
}

// SystemClock counts milliseconds since it was created.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock { return &SystemClock{start: time.Now()} }

func (c *SystemClock) Millis() uint64 { return uint64(time.Since(c.start).Milliseconds()) }

// ManualClock only moves when told to. Simulations and tests drive it.
type ManualClock struct {
	ms atomic.Uint64
}

// Advance moves the clock forward and returns the new time.
func (c *ManualClock) Advance(ms uint64) uint64 { return c.ms.Add(ms) }

// Set jumps to an absolute time.
func (c *ManualClock) Set(ms uint64) { c.ms.Store(ms) }

func (c *ManualClock) Millis() uint64 { return c.ms.Load() }

// TickClock emits ticks and counts them atomically. Its time is the number
// of whole periods elapsed since Start, so ticks the ticker drops under load
// do not slow it down.
type TickClock struct {
	Ch       chan struct{}
	count    atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
	periodMs uint32
	started  atomic.Pointer[time.Time]
}

// NewTickClock creates a clock but does not start it.
func NewTickClock(buffer int) *TickClock {
	return &TickClock{
		Ch:   make(chan struct{}, buffer),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval. Ticks nobody reads
// are dropped; the count still advances.
func (c *TickClock) Start(interval time.Duration) {
	c.periodMs = uint32(interval / time.Millisecond)
	if c.periodMs == 0 {
		c.periodMs = 1
	}
	now := time.Now()
	c.started.Store(&now)
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
				select {
				case c.Ch <- struct{}{}:
				default:
				}
			case <-c.stop:
				close(c.Ch)
				return
			}
		}
	}()
}

// Stop signals the clock to stop emitting ticks. Safe to call twice.
func (c *TickClock) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}

// Millis implements Clock. It is zero until Start.
func (c *TickClock) Millis() uint64 {
	start := c.started.Load()
	if start == nil {
		return 0
	}
	period := uint64(c.periodMs)
	elapsed := uint64(time.Since(*start).Milliseconds())
	return elapsed / period * period
}
