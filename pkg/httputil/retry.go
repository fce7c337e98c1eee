package httputil

import (
	"context"
	"errors"
	"time"
)

// RetryableError marks a failure worth another attempt.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a RetryableError. Retryable(nil) is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether any error in err's chain is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff is an exponential retry schedule.
type Backoff struct {
	Attempts int           // Total tries, at least 1
	Initial  time.Duration // Delay before the second try
	Max      time.Duration // Upper bound for any single delay; 0 means none
}

// DefaultBackoff is used for registry metadata and tarball downloads.
var DefaultBackoff = Backoff{Attempts: 3, Initial: time.Second, Max: 4 * time.Second}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts are used up, in which case the last error is returned. A done
// context aborts the wait between attempts with ctx.Err().
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	attempts := max(b.Attempts, 1)
	var err error
	for i := range attempts {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(b.delay(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// delay returns the wait after the given zero-based failed attempt.
func (b Backoff) delay(attempt int) time.Duration {
	d := b.Initial << attempt
	if b.Max > 0 && (d > b.Max || d <= 0) {
		return b.Max
	}
	return d
}
