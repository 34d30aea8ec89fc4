package supervisor

import (
	"context"
	"errors"
	"time"
)

// Clock abstracts time so tests can simulate settle delays without real
// wall-clock waits.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is canceled, returning ctx.Err() in
	// the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock returns the wall-clock implementation.
func SystemClock() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const (
	pollInitialInterval = 50 * time.Millisecond
	pollMaxInterval     = time.Second
)

// errPollDeadline reports that the condition never held within the timeout.
var errPollDeadline = errors.New("poll deadline exceeded")

// pollUntil calls fn until it reports done, backing off between attempts up
// to pollMaxInterval. The sandbox's command-completion signal does not
// guarantee downstream side effects (file writes, process death) are visible
// yet, so callers poll the observable state instead of sleeping a fixed
// settle delay.
func pollUntil(ctx context.Context, clk Clock, timeout time.Duration, fn func(context.Context) (bool, error)) error {
	deadline := clk.Now().Add(timeout)
	interval := pollInitialInterval
	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		remaining := deadline.Sub(clk.Now())
		if remaining <= 0 {
			return errPollDeadline
		}
		if interval > remaining {
			interval = remaining
		}
		if err := clk.Sleep(ctx, interval); err != nil {
			return err
		}
		if interval < pollMaxInterval {
			interval *= 2
			if interval > pollMaxInterval {
				interval = pollMaxInterval
			}
		}
	}
}
