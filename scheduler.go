package refetch

import (
	"context"
	"time"
)

// Scheduler abstracts timer waits so retry backoff can run against a
// simulated clock in tests. The default implementation uses real timers.
type Scheduler interface {
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type timerScheduler struct{}

var _ Scheduler = timerScheduler{}

func (timerScheduler) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
