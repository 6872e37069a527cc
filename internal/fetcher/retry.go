package fetcher

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/aleister1102/oerscout/internal/common"
)

// BackoffDelay returns base * 2^attempt, attempt counted from zero.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base * time.Duration(math.Pow(2, float64(attempt)))
}

// isRetryable reports whether err is a network or timeout failure. Errors from
// the caller's own context and policy refusals are never retried.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, common.ErrPolicyViolation) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// cancelOnClose releases an attempt's timeout once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

type doFunc func(req *http.Request) (*http.Response, error)

// send runs the rate-limited attempt loop. Each attempt takes a token, runs under
// its own timeout and, on a network failure, backs off before the next one.
// The returned body must be closed.
func (f *Fetcher) send(ctx context.Context, req *http.Request, key string, attempts int, timeout time.Duration, do doFunc) (*http.Response, int, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if _, err := f.limiter.Acquire(ctx, key); err != nil {
			return nil, attempt, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := do(req.Clone(attemptCtx))
		if err == nil {
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			return resp, attempt + 1, nil
		}
		cancel()
		lastErr = err

		if ctx.Err() != nil {
			return nil, attempt + 1, ctx.Err()
		}
		if !isRetryable(err) || attempt == attempts-1 {
			return nil, attempt + 1, lastErr
		}

		delay := BackoffDelay(f.retryDelay, attempt)
		f.logger.Warn().
			Str("url", req.URL.String()).
			Int("attempt", attempt+1).
			Int("max_attempts", attempts).
			Dur("delay", delay).
			Err(err).
			Msg("Fetch attempt failed, backing off")

		if err := f.sleep(ctx, delay); err != nil {
			return nil, attempt + 1, err
		}
	}
	return nil, attempts, lastErr
}
