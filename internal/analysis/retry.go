package analysis

import (
	"context"
	"math"
	"time"
)

// RetryConfig controls inline retries of transient vision failures within
// one processing attempt.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryConfig retries three times after 5s, 10s and 20s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 5 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     20 * time.Second,
	}
}

// Delay returns the wait before retry number n, counting from zero.
func (c RetryConfig) Delay(n int) time.Duration {
	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	d := float64(c.InitialDelay) * math.Pow(multiplier, float64(n))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// sleepContext is the production Sleeper.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryTransient calls fn until it succeeds, returns an error for which
// retryable is false, or the retries are used up. onRetry runs before each
// wait with the retry number and the delay.
func retryTransient[T any](
	ctx context.Context,
	cfg RetryConfig,
	sleep Sleeper,
	retryable func(error) bool,
	onRetry func(n int, delay time.Duration, err error),
	fn func(context.Context) (T, error),
) (T, error) {
	result, err := fn(ctx)
	for n := 0; err != nil && retryable(err) && n < cfg.MaxRetries; n++ {
		delay := cfg.Delay(n)
		if onRetry != nil {
			onRetry(n+1, delay, err)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return result, err
		}
		result, err = fn(ctx)
	}
	return result, err
}
