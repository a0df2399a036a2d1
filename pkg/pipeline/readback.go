package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
)

// WriteThenReadBack runs a write, waits out the mirror's consensus lag, and
// polls the read until it reports the expected value. This is the single
// place the propagation sleep lives; callers never insert bare sleeps after
// writes.
func WriteThenReadBack[T comparable](
	ctx context.Context,
	logger logging.Logger,
	write func() error,
	read func() (T, error),
	expected T,
) error {
	return WriteThenReadBackDelay(ctx, logger, write, read, expected, MirrorPropagationDelay)
}

// WriteThenReadBackDelay is WriteThenReadBack with an explicit delay,
// exposed for tests.
func WriteThenReadBackDelay[T comparable](
	ctx context.Context,
	logger logging.Logger,
	write func() error,
	read func() (T, error),
	expected T,
	delay time.Duration,
) error {
	if err := write(); err != nil {
		return err
	}

	const readAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= readAttempts; attempt++ {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		got, err := read()
		if err != nil {
			lastErr = err
			logger.Debugf("read-back attempt %d: %v", attempt, err)
			continue
		}
		if got == expected {
			return nil
		}
		lastErr = fmt.Errorf("read-back mismatch: got %v, want %v", got, expected)
		logger.Debugf("read-back attempt %d: %v", attempt, lastErr)
	}
	return fmt.Errorf("write not visible on mirror after %d reads: %w", readAttempts, lastErr)
}
