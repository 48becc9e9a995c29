package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock_AdvanceFiresDueTickers(t *testing.T) {
	start := time.Unix(100, 0)
	clock := NewManualClock(start)
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	clock.Advance(5 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	clock.Advance(5 * time.Millisecond)
	select {
	case now := <-ticker.C():
		assert.Equal(t, start.Add(10*time.Millisecond), now)
	default:
		t.Fatal("ticker did not fire")
	}
	assert.Equal(t, start.Add(10*time.Millisecond), clock.Now())
}

func TestManualClock_DeliversLatestDueTick(t *testing.T) {
	start := time.Unix(100, 0)
	clock := NewManualClock(start)
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	clock.Advance(35 * time.Millisecond)
	assert.Equal(t, start.Add(30*time.Millisecond), <-ticker.C())

	clock.Advance(5 * time.Millisecond)
	assert.Equal(t, start.Add(40*time.Millisecond), <-ticker.C())
}

func TestManualClock_DropsTicksWhenFull(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Millisecond)

	clock.Advance(10 * time.Millisecond)
	<-ticker.C()
	select {
	case <-ticker.C():
		t.Fatal("dropped ticks were queued")
	default:
	}

	ticker.Stop()
	assert.Equal(t, 0, clock.Tickers())
}

func TestManualClock_NonPositivePeriodPanics(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	assert.Panics(t, func() { clock.NewTicker(0) })
}

func TestEvery_RunsUntilCancelled(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())

	var ticks atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, Every(ctx, clock, 20*time.Millisecond, func(time.Time) {
			ticks.Add(1)
		}))
	}()

	require.Eventually(t, func() bool { return clock.Tickers() == 1 }, time.Second, time.Millisecond)

	for i := 1; i <= 3; i++ {
		clock.Advance(20 * time.Millisecond)
		want := int32(i)
		require.Eventually(t, func() bool { return ticks.Load() == want }, time.Second, time.Millisecond)
	}

	cancel()
	wg.Wait()

	assert.Equal(t, 0, clock.Tickers())
	clock.Advance(time.Second)
	assert.Equal(t, int32(3), ticks.Load())
}

func TestEvery_InvalidPeriod(t *testing.T) {
	err := Every(context.Background(), nil, 0, func(time.Time) {})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestEvery_RealClock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	go func() {
		_ = Every(ctx, RealClock{}, time.Millisecond, func(time.Time) { ticks.Add(1) })
	}()

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestOrReal(t *testing.T) {
	assert.IsType(t, RealClock{}, OrReal(nil))

	manual := NewManualClock(time.Unix(0, 0))
	assert.Same(t, manual, OrReal(manual))
}
