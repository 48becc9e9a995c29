package scheduler

import "time"

// Ticker delivers ticks at a fixed period until stopped.
type Ticker interface {
	// C returns the channel ticks are delivered on.
	C() <-chan time.Time
	// Stop turns off the ticker. No more ticks are sent after Stop returns.
	Stop()
}

// Clock is a source of the current time and of tickers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// NewTicker creates a ticker firing every d.
	NewTicker(d time.Duration) Ticker
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// NewTicker creates a ticker using the standard library.
func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t realTicker) C() <-chan time.Time { return t.ticker.C }
func (t realTicker) Stop()               { t.ticker.Stop() }

// OrReal returns c, or RealClock when c is nil.
func OrReal(c Clock) Clock {
	if c != nil {
		return c
	}
	return RealClock{}
}
