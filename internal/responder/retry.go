package responder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"relaybot/internal/metrics"
)

const maxRetries = 3

// transientError is an upstream response worth retrying. retryAfter carries
// the server-requested delay, zero when the response had none.
type transientError struct {
	status     int
	body       string
	retryAfter time.Duration
}

func (e *transientError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

// retryDelay picks the wait before retry attempt. A server-provided
// Retry-After wins; otherwise exponential backoff with jitter.
func retryDelay(attempt int, lastErr error) time.Duration {
	if te, ok := lastErr.(*transientError); ok && te.retryAfter > 0 {
		return te.retryAfter
	}
	base := time.Duration(attempt*attempt) * time.Second
	jitter := time.Duration(rand.Int63n(int64(base/2 + 1)))
	return base + jitter
}

// retryAfterOf reads the Retry-After header in its delay-seconds form. The
// HTTP-date form is rare on completion APIs and reads as zero.
func retryAfterOf(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// doWithRetry executes an HTTP request, retrying network failures, 5xx and
// 429 responses. Every retried attempt counts on the responder retry metric
// so a storm of transient upstream errors is visible before it turns into
// hard failures.
func doWithRetry(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			metrics.ResponderRetries.Inc()
			delay := retryDelay(attempt, lastErr)
			logger.Warn("retrying responder request", "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxRetries {
				logger.Warn("responder request failed, will retry", "error", err)
				continue
			}
			return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = &transientError{
				status:     resp.StatusCode,
				body:       string(body),
				retryAfter: retryAfterOf(resp),
			}
			if attempt < maxRetries {
				logger.Warn("responder returned transient error, will retry",
					"status", resp.StatusCode, "body", string(body))
				continue
			}
			return nil, fmt.Errorf("server error after %d retries: %w", maxRetries, lastErr)
		}

		return resp, nil
	}

	return nil, lastErr
}
