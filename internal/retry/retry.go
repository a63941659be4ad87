// Package retry runs operations with bounded retries and exponential
// backoff plus jitter.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config controls retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialDelay is the backoff after the first failure.
	InitialDelay time.Duration
	// MaxDelay caps the backoff between attempts.
	MaxDelay time.Duration
	// Factor multiplies the delay after each failure.
	Factor float64
	// Jitter randomizes each delay in [0.5, 1.5] of its base value.
	Jitter bool
}

// Exponential returns a config with doubling backoff and jitter.
func Exponential(maxAttempts int, initial, max time.Duration) Config {
	return Config{
		MaxAttempts:  maxAttempts,
		InitialDelay: initial,
		MaxDelay:     max,
		Factor:       2.0,
		Jitter:       true,
	}
}

// Result describes the outcome of a retried operation.
type Result struct {
	// Attempts is how many attempts ran.
	Attempts int
	// Err is the last error, nil on success.
	Err error
}

// Do runs op until it succeeds, returns a permanent error, the attempt
// budget is spent, or the context is cancelled.
func Do(ctx context.Context, cfg Config, op func() error) Result {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Factor <= 0 {
		cfg.Factor = 2.0
	}

	var result Result
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		if ctx.Err() != nil {
			result.Err = ctx.Err()
			return result
		}

		err := op()
		if err == nil {
			result.Err = nil
			return result
		}
		result.Err = err

		if IsPermanent(err) || attempt >= cfg.MaxAttempts {
			return result
		}

		sleep := delay
		if cfg.Jitter {
			sleep = time.Duration(float64(delay) * (0.5 + rand.Float64())) // #nosec G404 -- jitter needs no crypto randomness
		}

		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			return result
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * cfg.Factor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return result
}

// DoWithValue is Do for operations that produce a value.
func DoWithValue[T any](ctx context.Context, cfg Config, op func() (T, error)) (T, Result) {
	var value T
	result := Do(ctx, cfg, func() error {
		var err error
		value, err = op()
		return err
	})
	return value, result
}

// PermanentError marks an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do stops retrying when it sees it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
