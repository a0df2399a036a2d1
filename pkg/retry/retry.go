package retry

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	mathrand "math/rand"
	"time"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
)

// Config holds the configuration for retry operations
type Config struct {
	MaxAttempts     int                   // Maximum number of attempts, first try included
	InitialDelay    time.Duration         // Initial delay between attempts
	MaxDelay        time.Duration         // Maximum delay between attempts
	BackoffFactor   float64               // Multiplier for exponential backoff
	JitterFactor    float64               // Factor for adding jitter to delays (% of delay)
	LogRetryAttempt bool                  // Whether to log retry attempts
	ShouldRetry     func(error, int) bool // Predicate deciding whether the error is retryable (error, attempt number)
}

// DefaultConfig returns a configuration tuned for mirror node reads: a small
// attempt cap keeps the CLI responsive when the mirror is down.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:     4,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        8 * time.Second,
		BackoffFactor:   2.0,
		JitterFactor:    0.2,
		LogRetryAttempt: true,
		ShouldRetry:     nil,
	}
}

// Validate checks the configuration for reasonable values
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("MaxAttempts must be >= 1")
	}
	if c.InitialDelay <= 0 {
		return errors.New("InitialDelay must be positive")
	}
	if c.MaxDelay <= 0 {
		return errors.New("MaxDelay must be positive")
	}
	if c.BackoffFactor < 1.0 {
		return errors.New("BackoffFactor must be >= 1.0")
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1.0 {
		return errors.New("JitterFactor must be between 0.0 and 1.0")
	}
	return nil
}

// secureFloat64 returns a random float64 in [0.0,1.0)
func secureFloat64() float64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return mathrand.Float64()
	}
	return float64(binary.BigEndian.Uint64(b[:])) / (1 << 64)
}

// delayWithJitter applies the jitter factor to a base delay
func delayWithJitter(baseDelay time.Duration, jitterFactor float64) time.Duration {
	sleepDuration := baseDelay
	if jitterFactor > 0 {
		jitter := time.Duration(jitterFactor * float64(baseDelay) * secureFloat64())
		sleepDuration += jitter
	}
	return sleepDuration
}

// nextDelay advances the delay sequence, capped at maxDelay
func nextDelay(currentDelay time.Duration, backoffFactor float64, maxDelay time.Duration) time.Duration {
	next := time.Duration(float64(currentDelay) * backoffFactor)
	if next > maxDelay {
		next = maxDelay
	}
	return next
}

// Do executes the given operation with exponential backoff.
// Returns the result of the operation if any attempt succeeds, or the last
// error once the attempt cap is reached.
func Do[T any](ctx context.Context, operation func() (T, error), cfg *Config, logger logging.Logger) (T, error) {
	var zero T
	var err error

	if cfg == nil {
		cfg = DefaultConfig()
	} else if err := cfg.Validate(); err != nil {
		return zero, fmt.Errorf("invalid retry config: %w", err)
	}

	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, opErr := operation()
		if opErr == nil {
			return result, nil
		}
		err = opErr

		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err, attempt) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		sleepDuration := delayWithJitter(delay, cfg.JitterFactor)

		if cfg.LogRetryAttempt && logger != nil {
			logger.Warnf("Attempt %d/%d failed: %v. Retrying in %v...", attempt, cfg.MaxAttempts, err, sleepDuration)
		}

		select {
		case <-time.After(sleepDuration):
			delay = nextDelay(delay, cfg.BackoffFactor, cfg.MaxDelay)
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, err)
}

// DoFunc executes an operation that only returns an error.
// Convenience wrapper around Do.
func DoFunc(ctx context.Context, operation func() error, cfg *Config, logger logging.Logger) error {
	opWithValue := func() (struct{}, error) {
		return struct{}{}, operation()
	}
	_, err := Do(ctx, opWithValue, cfg, logger)
	return err
}
