package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter is the fraction of the delay randomized on each wait, in [0, 1].
	// A value of 0.5 turns a 10s delay into a wait in [5s, 15s]. Waits are
	// deliberately irregular so repeated login attempts do not fire on a
	// mechanical cadence.
	Jitter float64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        0.3,
	}
}

// Do executes a function with bounded retries and growing jittered delays.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err

			// Don't sleep after the last attempt
			if attempt < cfg.MaxAttempts-1 {
				if err := sleep(ctx, jittered(delay, cfg.Jitter)); err != nil {
					return err
				}
				delay = nextDelay(delay, cfg)
			}
		} else {
			return nil
		}
	}

	return lastErr
}

// DoWithResult executes a function with bounded retries and returns a result.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err != nil {
			lastErr = err

			// Don't sleep after the last attempt
			if attempt < cfg.MaxAttempts-1 {
				if err := sleep(ctx, jittered(delay, cfg.Jitter)); err != nil {
					return zero, err
				}
				delay = nextDelay(delay, cfg)
			}
		} else {
			return result, nil
		}
	}

	return zero, lastErr
}

// CalculateBackoff calculates the pre-jitter delay for a given attempt.
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration, factor float64) time.Duration {
	delay := float64(initialDelay) * math.Pow(factor, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	return time.Duration(delay)
}

func nextDelay(delay time.Duration, cfg Config) time.Duration {
	next := time.Duration(float64(delay) * cfg.BackoffFactor)
	if next > cfg.MaxDelay {
		next = cfg.MaxDelay
	}
	return next
}

func jittered(delay time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return delay
	}
	if jitter > 1 {
		jitter = 1
	}
	// Uniform in [delay*(1-jitter), delay*(1+jitter)]
	spread := float64(delay) * jitter
	return time.Duration(float64(delay) - spread + rand.Float64()*2*spread)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
