package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrAttemptsExhausted indicates every allowed attempt failed
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Policy bounds how often and how patiently an operation is retried
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy returns sensible retry defaults
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
	}
}

// Backoff computes the pause before the given zero-based attempt is retried.
// Exponential: initial * 2^attempt, capped at MaxBackoff
func (p Policy) Backoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}
	return time.Duration(backoff)
}

// Do runs fn up to MaxAttempts times with exponential backoff between failures.
// The context cancels both the waits and further attempts
func Do(ctx context.Context, p Policy, operation string, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logrus.Debugf("Retry succeeded for %s on attempt %d", operation, attempt+1)
			}
			return nil
		}

		lastErr = err
		logrus.Warnf("Attempt %d/%d for %s failed: %v", attempt+1, p.MaxAttempts, operation, err)

		// No pause after the final attempt
		if attempt < p.MaxAttempts-1 {
			backoff := p.Backoff(attempt)
			logrus.Debugf("Retrying %s in %v...", operation, backoff)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("%w for %s: %w", ErrAttemptsExhausted, operation, lastErr)
}
