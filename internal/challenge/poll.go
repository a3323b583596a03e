package challenge

import (
	"context"
	"time"
)

// pollUntil runs fn up to attempts times, interval apart, stopping early
// when fn reports done or the context is cancelled. Every wait in the
// solver goes through here or pollWindow so no state can block unbounded.
func pollUntil(ctx context.Context, attempts int, interval time.Duration, fn func(context.Context) (bool, error)) (bool, error) {
	for i := 0; i < attempts; i++ {
		done, err := fn(ctx)
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}
		if i < attempts-1 {
			if err := sleep(ctx, interval); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// sleep is a context-aware time.Sleep.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
