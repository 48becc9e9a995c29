package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrInvalidPeriod is returned when a task is scheduled with a non-positive period.
var ErrInvalidPeriod = errors.New("invalid task period")

// Every calls fn with the tick time once per period until ctx is cancelled.
// It blocks, returning nil after cancellation. A tick that arrives after
// cancellation is not delivered.
func Every(ctx context.Context, clock Clock, period time.Duration, fn func(now time.Time)) error {
	if period <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}

	ticker := OrReal(clock).NewTicker(period)
	defer ticker.Stop()

	logrus.WithFields(logrus.Fields{
		"function": "Every",
		"period":   period.String(),
	}).Debug("Periodic task started")

	for {
		select {
		case <-ctx.Done():
			logrus.WithFields(logrus.Fields{
				"function": "Every",
				"period":   period.String(),
			}).Debug("Periodic task stopped")
			return nil
		case now := <-ticker.C():
			if ctx.Err() != nil {
				continue
			}
			fn(now)
		}
	}
}
