package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

const (
	// maxBodySize bounds a source response; a posted value is a few bytes.
	maxBodySize = 4 << 10

	// maxRetryAfter caps how long a Retry-After header may stall a lookup.
	maxRetryAfter = 30 * time.Second
)

// APIError is an error status from the market-data source.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
	RetryAfter time.Duration // from the Retry-After header, 0 when absent
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market data error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether another attempt may succeed.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether the source has no value for the day.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Is lets errors.Is(err, ErrNotAvailable) match a 404.
func (e *APIError) Is(target error) bool {
	return target == ErrNotAvailable && e.IsNotFound()
}

// get fetches one path from the source.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
			RetryAfter: retryAfter(resp.Header),
		}
	}
	return body, nil
}

// getWithRetry retries retryable statuses with jittered exponential backoff.
// Transport errors are returned at once so the caller can classify them.
func (c *Client) getWithRetry(ctx context.Context, path string) ([]byte, error) {
	backoff := c.retryBackoff

	for attempt := 0; ; attempt++ {
		body, err := c.get(ctx, path)
		if err == nil {
			return body, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
		if attempt >= c.maxRetries {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		wait := jitter(backoff)
		if apiErr.RetryAfter > wait {
			wait = min(apiErr.RetryAfter, maxRetryAfter)
		}
		c.logger.Debug("retrying source request",
			"path", path,
			"attempt", attempt+1,
			"status", apiErr.StatusCode,
			"wait", wait,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
}

// jitter returns a wait in [d/2, 3d/2).
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int64N(int64(d)))
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
