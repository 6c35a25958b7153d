// Package resilience implements the execution helpers of spec.md §4.3:
// timeout wrapping of a pending operation, and a retry loop with
// fixed/exponential backoff. It is grounded on internal/engine/resilience.go
// in the teacher repository this project started from, trimmed to the
// spec's exact contract.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError is raised when an operation does not complete before its
// deadline (spec.md §6 "<label>" timed out after <N>ms").
type TimeoutError struct {
	Label string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%q timed out after %dms", e.Label, e.After.Milliseconds())
}

// WithTimeout races fn against a timer of d; on expiry it returns a
// *TimeoutError labelled with label. The underlying operation's goroutine is
// not forcibly killed when it overruns (spec.md §4.3: "The underlying
// operation is not cancelled on the engine side") - fn is passed ctx so a
// cooperative operation may observe the deadline itself, but callers that
// ignore ctx will simply have their result discarded. The internal timer is
// always stopped on normal completion to avoid leaking it.
func WithTimeout(ctx context.Context, d time.Duration, label string, fn func(ctx context.Context) (any, error)) (any, error) {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		val any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		val, err := fn(ctx)
		done <- outcome{val, err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		return nil, &TimeoutError{Label: label, After: d}
	}
}

// Backoff selects the delay strategy between retry attempts.
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffExponential Backoff = "exponential"
)

// RetryConfig parametrizes the retry loop of spec.md §4.3.
type RetryConfig struct {
	// Attempts is the maximum number of attempts; 1 means no retry.
	Attempts int
	Backoff  Backoff
	// Delay is the base delay between attempts.
	Delay time.Duration
}

func (c RetryConfig) effectiveAttempts() int {
	if c.Attempts <= 0 {
		return 1
	}
	return c.Attempts
}

func (c RetryConfig) delayFor(attempt int) time.Duration {
	if c.Backoff == BackoffExponential {
		// delay x 2^(attempt-1), per spec.md §4.3.
		return c.Delay * time.Duration(1<<uint(attempt-1))
	}
	return c.Delay
}

// OnAttempt is invoked with the current attempt number (1-based) before
// each attempt - the retry loop's observer hook (spec.md §4.3).
type OnAttempt func(attempt int)

// Retry runs fn up to cfg.Attempts times, sleeping cfg's computed backoff
// between failures, and returns the last error if every attempt fails. It
// returns the number of attempts actually used alongside the result so
// callers can record StepStatus.RetryAttempt.
func Retry(ctx context.Context, cfg RetryConfig, onAttempt OnAttempt, fn func(ctx context.Context) (any, error)) (any, int, error) {
	attempts := cfg.effectiveAttempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if onAttempt != nil {
			onAttempt(attempt)
		}

		val, err := fn(ctx)
		if err == nil {
			return val, attempt, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		delay := cfg.delayFor(attempt)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, attempt, ctx.Err()
			}
		}
	}

	return nil, attempts, lastErr
}

// IsTimeout reports whether err is (or wraps) a *TimeoutError.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}
