package prstack

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	// retryAttempts is the default maximum number of attempts per request.
	retryAttempts = 3
	// retryDelay is the initial retry delay.
	retryDelay = 500 * time.Millisecond
	// retryMaxDelay caps the backoff so a page view is never stalled for long.
	retryMaxDelay = 10 * time.Second
	// retryMaxJitter adds randomness to prevent thundering herd.
	retryMaxJitter = 250 * time.Millisecond
)

// RetryTransport wraps an http.RoundTripper with retry logic using exponential backoff with jitter.
// It retries 429 and 5xx responses and transport errors. An exhausted rate limit (403 with
// X-RateLimit-Remaining: 0) is returned immediately; its reset window is far longer than any
// backoff worth waiting for.
type RetryTransport struct {
	Base     http.RoundTripper
	Attempts uint
}

// RoundTrip implements the http.RoundTripper interface with retry logic.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := t.Attempts
	if attempts == 0 {
		attempts = retryAttempts
	}

	var resp *http.Response
	var lastErr error

	err := retry.Do(
		func() error { //nolint:contextcheck // Context is accessed via closure from req.Context()
			var err error
			start := time.Now()
			resp, err = base.RoundTrip(req) //nolint:bodyclose // Response body is handled by caller in successful cases
			elapsed := time.Since(start)
			if err != nil {
				slog.ErrorContext(req.Context(), "HTTP request failed",
					"url", req.URL.String(),
					"error", err,
					"elapsed", elapsed)
				lastErr = err
				return err
			}

			if resp.StatusCode != http.StatusTooManyRequests && (resp.StatusCode < 500 || resp.StatusCode >= 600) {
				if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-Ratelimit-Remaining") == "0" {
					slog.WarnContext(req.Context(), "GitHub rate limit exhausted",
						"url", req.URL.String(),
						"reset", resp.Header.Get("X-Ratelimit-Reset"))
				}
				return nil
			}

			// Buffer the body so the final failed response is still readable by the caller.
			bodyBytes, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				slog.DebugContext(req.Context(), "failed to read response body for retry", "error", readErr)
				bodyBytes = nil
			}
			if closeErr := resp.Body.Close(); closeErr != nil {
				slog.DebugContext(req.Context(), "failed to close response body for retry", "error", closeErr)
			}
			resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			slog.InfoContext(req.Context(), "HTTP request will be retried",
				"status", resp.StatusCode,
				"url", req.URL.String())
			lastErr = &retryableError{StatusCode: resp.StatusCode}
			return lastErr
		},
		retry.Context(req.Context()),
		retry.Attempts(attempts),
		retry.Delay(retryDelay),
		retry.MaxDelay(retryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxJitter(retryMaxJitter),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		var retryErr *retryableError
		if errors.As(lastErr, &retryErr) && resp != nil {
			// Hand the last response back so the client reports the real status.
			return resp, nil
		}
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}

	return resp, nil
}

// retryableError indicates an error that should be retried.
type retryableError struct {
	StatusCode int
}

func (e *retryableError) Error() string {
	return http.StatusText(e.StatusCode)
}
