package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rickgao/remindchat/internal/metrics"
)

// APIError represents a non-2xx response from the reminder service.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if detail := e.detail(); detail != "" {
		return fmt.Sprintf("reminder api error %d: %s: %s", e.StatusCode, e.Message, detail)
	}
	return fmt.Sprintf("reminder api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsNotFound reports a 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// detail extracts the service's {"detail": "..."} message when present.
func (e *APIError) detail() string {
	var body struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(e.Body, &body) != nil {
		return ""
	}
	if s, ok := body.Detail.(string); ok {
		return s
	}
	return ""
}

// idempotent reports whether a request may be replayed after a failure.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodHead:
		return true
	default:
		return false
	}
}

// doRequest performs a single HTTP request. A non-nil payload is sent as JSON.
func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil || method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveRESTRequest(ctx, method, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveRESTRequest(ctx, method, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		metrics.ObserveRESTRequest(ctx, method, "http_error", time.Since(start).Seconds())
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	metrics.ObserveRESTRequest(ctx, method, "success", time.Since(start).Seconds())
	return respBody, nil
}

// doWithRetry performs a request with exponential backoff retry. Only
// idempotent methods are retried.
func (c *Client) doWithRetry(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	retries := c.maxRetries
	if !idempotent(method) {
		retries = 0
	}

	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			wait := backoff
			if backoff > 0 {
				wait = backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			}
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", wait,
				"method", method,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, method, path, payload)
		if err == nil {
			return body, nil
		}

		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	if retries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// call performs a request and decodes the JSON response into result when
// result is non-nil.
func (c *Client) call(ctx context.Context, method, path string, in, result any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	body, err := c.doWithRetry(ctx, method, path, payload)
	if err != nil {
		return err
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
