// Package retry runs a fetch operation under a bounded, fixed-delay retry policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ytbatch/internal/entity"
	"ytbatch/internal/errs"

	"github.com/cenkalti/backoff/v5"
)

// Operation is one fetch attempt.
type Operation func(ctx context.Context) entity.Outcome

// NotifyFunc is called before each wait with the attempt that just failed (1-based).
type NotifyFunc func(attempt int, cause error, wait time.Duration)

// Policy bounds the attempts of one item.
type Policy struct {
	// MaxRetries is the total number of attempts, at least 1.
	MaxRetries int
	// Delay is the constant wait between attempts.
	Delay  time.Duration
	Notify NotifyFunc
}

// Do attempts op up to MaxRetries times and returns the first non-empty path.
// A success without a path counts as a failure with errs.ErrNoOutput.
// Validation failures stop immediately. After the last attempt the last
// cause is returned as is.
func Do(ctx context.Context, op Operation, p Policy) (string, error) {
	if p.MaxRetries < 1 {
		return "", fmt.Errorf("%w: max retries must be at least 1, got %d", errs.ErrInvalidSetting, p.MaxRetries)
	}

	attempt := 0

	operation := func() (string, error) {
		attempt++

		out := op(ctx)

		switch {
		case out.OK() && out.Path != "":
			return out.Path, nil
		case out.OK():
			return "", errs.ErrNoOutput
		case out.Kind == entity.FailureValidation:
			return "", backoff.Permanent(out.Cause)
		default:
			return "", out.Cause
		}
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(p.MaxRetries)),
		backoff.WithMaxElapsedTime(0),
	}

	if p.Notify != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			p.Notify(attempt, err, wait)
		}))
	}

	path, err := backoff.Retry(ctx, operation, opts...)
	if err != nil {
		var perr *backoff.PermanentError
		if errors.As(err, &perr) {
			return "", perr.Unwrap()
		}

		return "", err
	}

	return path, nil
}
