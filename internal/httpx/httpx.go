// Package httpx carries the small amount of HTTP plumbing shared by the
// external API clients: JSON decoding with status checks and a bounded
// retry/backoff loop for transient failures.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError reports a non-2xx response, preserving a snippet of the body
// for diagnostics.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether a response status is worth retrying.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoJSON executes the request, retrying transient failures with exponential
// backoff, and decodes a 2xx JSON body into out. The request must have a
// context attached; its body (if any) must be replayable via GetBody.
func DoJSON(client *http.Client, req *http.Request, out any, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	backoff := 250 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return req.Context().Err()
			case <-time.After(backoff):
			}
			backoff *= 2

			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return fmt.Errorf("rewind request body: %w", err)
				}
				req.Body = body
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return req.Context().Err()
			}
			lastErr = err
			continue
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
			if retryable(resp.StatusCode) {
				continue
			}
			return lastErr
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("request failed after %d attempts: %w", maxAttempts, lastErr)
}

// NewRequest builds a context-bound request; a convenience wrapper keeping
// client call sites short.
func NewRequest(ctx context.Context, method, url string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, url, nil)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
