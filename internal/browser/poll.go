package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrPollTimeout is returned by Poll when the condition never held.
var ErrPollTimeout = errors.New("condition not met before timeout")

// Poll evaluates cond every interval until it returns true, an error, or
// timeout elapses. A zero interval defaults to timeout/10.
func Poll(ctx context.Context, timeout, interval time.Duration, cond func(ctx context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = max(timeout/10, time.Millisecond)
	}
	var b backoff.BackOff = backoff.NewConstantBackOff(interval)
	b = backoff.WithContext(b, ctx)

	deadline := time.Now().Add(timeout)
	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		next := b.NextBackOff()
		if next == backoff.Stop {
			return ctx.Err()
		}
		if time.Now().Add(next).After(deadline) {
			return fmt.Errorf("%w (%v)", ErrPollTimeout, timeout)
		}
		if err := Sleep(ctx, next); err != nil {
			return err
		}
	}
}
