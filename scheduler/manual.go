package scheduler

import (
	"sync"
	"time"
)

// ManualClock is a Clock whose time only moves when Advance is called.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[*manualTicker]struct{}
}

// NewManualClock creates a manual clock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{
		now:     start,
		tickers: make(map[*manualTicker]struct{}),
	}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTicker creates a ticker firing every d of manual time. It panics if d is
// not positive, matching time.NewTicker.
func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("scheduler: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTicker{
		clock:  c,
		period: d,
		next:   c.now.Add(d),
		ch:     make(chan time.Time, 1),
	}
	c.tickers[t] = struct{}{}
	return t
}

// Advance moves the clock forward by d, firing every ticker that comes due.
// A ticker that passes several periods in one step delivers only the latest
// tick time, and a ticker whose channel is still full drops the tick.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	for t := range c.tickers {
		if t.next.After(c.now) {
			continue
		}
		var due time.Time
		for !t.next.After(c.now) {
			due = t.next
			t.next = t.next.Add(t.period)
		}
		select {
		case t.ch <- due:
		default:
		}
	}
}

// Tickers returns the number of running tickers. Tests use it to wait until a
// task has started before advancing time.
func (c *ManualClock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type manualTicker struct {
	clock  *ManualClock
	period time.Duration
	next   time.Time
	ch     chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	delete(t.clock.tickers, t)
}
