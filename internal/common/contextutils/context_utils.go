package contextutils

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// SleepFunc suspends for d or until ctx is done. Components that wait (rate
// limiting, retry backoff, batch pauses) take one so tests can observe waits
// without real time passing.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real-time SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ContextCheckResult represents the result of a context cancellation check
type ContextCheckResult struct {
	Cancelled bool
	Error     error
}

// CheckCancellationWithLog checks for context cancellation and logs if cancelled
func CheckCancellationWithLog(ctx context.Context, logger zerolog.Logger, operation string) ContextCheckResult {
	result := CheckCancellation(ctx)
	if result.Cancelled {
		logger.Info().Str("operation", operation).Msg("Context cancelled")
	}
	return result
}

// CheckCancellation checks if the context is cancelled and returns appropriate result
func CheckCancellation(ctx context.Context) ContextCheckResult {
	select {
	case <-ctx.Done():
		return ContextCheckResult{Cancelled: true, Error: ctx.Err()}
	default:
		return ContextCheckResult{}
	}
}

// IsCancellation reports whether err came from a cancelled or expired context.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
