// Package retry decides whether and when a failed operation is re-attempted.
//
// Policies only see transport-level failures: refetch never consults a policy
// for superseded attempts, and callers mark business failures (validation,
// authorization) with Terminal so they surface immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy is consulted after each failed attempt. attempt counts from 1.
type Policy interface {
	// ShouldRetry reports whether the operation should run again.
	ShouldRetry(err error, attempt int) bool
	// DelayFor returns how long to wait before the given attempt is re-run.
	DelayFor(attempt int) time.Duration
}

// terminalError marks an error as non-retryable regardless of policy.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so no policy will retry it. Use for validation and
// authorization failures, where re-running the operation cannot help.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err (or anything it wraps) was marked Terminal.
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}

// retryable is the shared gate: terminal and cancellation errors never retry.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if IsTerminal(err) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// None never retries. The default policy when no retries are configured.
type None struct{}

var _ Policy = None{}

func (None) ShouldRetry(error, int) bool { return false }
func (None) DelayFor(int) time.Duration  { return 0 }

// Linear waits Base * attempt between attempts. The default configurable
// policy. MaxRetries counts re-attempts, so an operation runs at most
// MaxRetries+1 times.
type Linear struct {
	Base       time.Duration
	MaxRetries int
}

var _ Policy = Linear{}

func (p Linear) ShouldRetry(err error, attempt int) bool {
	return attempt <= p.MaxRetries && retryable(err)
}

func (p Linear) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.Base * time.Duration(attempt)
}

// Exponential waits Base * 2^(attempt-1) between attempts, optionally capped.
type Exponential struct {
	Base       time.Duration
	MaxRetries int
	Cap        time.Duration // 0 = uncapped
}

var _ Policy = Exponential{}

func (p Exponential) ShouldRetry(err error, attempt int) bool {
	return attempt <= p.MaxRetries && retryable(err)
}

func (p Exponential) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.Cap > 0 && d >= p.Cap {
			return p.Cap
		}
	}
	if p.Cap > 0 && d > p.Cap {
		return p.Cap
	}
	return d
}

// ExhaustedError is returned once a policy has given up; it wraps the last
// attempt's error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }
