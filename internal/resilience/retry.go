package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls exponential backoff with jitter. Zero fields take the
// store defaults: 3 attempts, 50ms initial delay doubling up to 1s.
type RetryConfig struct {
	MaxAttempts    int // total attempts including the first; 1 disables retry
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64 // 0.25 means ±25% of the computed delay

	// ShouldRetry overrides IsTransient.
	ShouldRetry func(err error) bool
	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the retry configuration for store writes.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{JitterFraction: 0.25}.withDefaults()
}

// StoreRetryConfig returns DefaultRetryConfig with maxAttempts applied when
// positive, logging each retry under operation.
func StoreRetryConfig(maxAttempts int, operation string) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	cfg.OnRetry = RetryLogger("store", operation)
	return cfg
}

// DoVal calls fn until it succeeds, returns a non-retryable error, runs out
// of attempts, or ctx is done. The last error is returned on failure.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	retryable := cfg.ShouldRetry
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		switch {
		case err == nil:
			return val, nil
		case ctx.Err() != nil, !retryable(err), attempt >= cfg.MaxAttempts:
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		timer := time.NewTimer(cfg.backoff(attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 50 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	cfg.JitterFraction = math.Max(cfg.JitterFraction, 0)
	return cfg
}

// backoff is the delay after the given zero-based retry.
func (cfg RetryConfig) backoff(retry int) time.Duration {
	delay := math.Min(float64(cfg.InitialBackoff)*math.Pow(cfg.Multiplier, float64(retry)), float64(cfg.MaxBackoff))
	if cfg.JitterFraction > 0 {
		delay += (rand.Float64()*2 - 1) * delay * cfg.JitterFraction
	}
	return time.Duration(math.Max(delay, 0))
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	log := zap.L().With(zap.String("component", "resilience"))
	return func(attempt int, err error) {
		log.Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
