// Package scheduler runs cancellable periodic tasks against an injectable clock.
//
// Production code uses RealClock. Tests use ManualClock, which only fires
// tickers when Advance is called, so periodic behaviour can be exercised without
// sleeping:
//
//	clock := scheduler.NewManualClock(time.Unix(0, 0))
//	go scheduler.Every(ctx, clock, 20*time.Millisecond, func(now time.Time) {
//	    // one tick
//	})
//	clock.Advance(20 * time.Millisecond)
//
// Like time.Ticker, tickers from either clock drop ticks when the task falls
// behind instead of queueing them.
package scheduler
