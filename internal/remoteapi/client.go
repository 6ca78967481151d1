package remoteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

const userAgent = "syncagent/0.1"

// RetryConfig holds the retry/backoff parameters for transient request
// failures, configurable via the `max_retries` / `retry_max_delay` settings.
type RetryConfig struct {
	MaxRetries     int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	JitterFraction float64
}

// DefaultRetryConfig returns the default retry parameters: max_retries=5,
// base 1s, cap 60s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     5,
		BaseBackoff:    1 * time.Second,
		MaxBackoff:     60 * time.Second,
		BackoffFactor:  2.0,
		JitterFraction: 0.25,
	}
}

// Client is an HTTP client for the remote sync API: bearer
// token auth, automatic retry with exponential backoff + jitter, and HTTP
// status classification via errors.Is.
type Client struct {
	baseURL    string
	token      string
	metaHTTP   *http.Client // short-timeout client for metadata calls
	transferHTTP *http.Client // unbounded-timeout client for chunk bodies
	logger     *slog.Logger
	retry      RetryConfig

	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a remote API client. metaHTTP should carry a bounded
// timeout; transferHTTP should have no deadline beyond the
// caller's context. Either may be nil to get sane defaults.
func NewClient(baseURL, token string, metaHTTP, transferHTTP *http.Client, retry RetryConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if metaHTTP == nil {
		metaHTTP = &http.Client{Timeout: 30 * time.Second}
	}

	if transferHTTP == nil {
		transferHTTP = &http.Client{}
	}

	return &Client{
		baseURL:      baseURL,
		token:        token,
		metaHTTP:     metaHTTP,
		transferHTTP: transferHTTP,
		logger:       logger,
		retry:        retry,
		sleepFunc:    timeSleep,
	}
}

func (c *Client) doRetry(ctx context.Context, httpClient *http.Client, method, path string, body []byte, extraHeaders http.Header) (*http.Response, error) {
	url := c.baseURL + path

	var attempt int

	for {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("remoteapi: creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("User-Agent", userAgent)

		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		for key, vals := range extraHeaders {
			if len(vals) > 0 {
				req.Header.Set(key, vals[0])
			}

			for _, v := range vals[1:] {
				req.Header.Add(key, v)
			}
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("remoteapi: request canceled: %w", ctx.Err())
			}

			if attempt < c.retry.MaxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method), slog.String("path", path),
					slog.Int("attempt", attempt+1), slog.Duration("backoff", backoff),
					slog.String("error", err.Error()))

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("remoteapi: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("remoteapi: %s %s failed after %d retries: %w", method, path, c.retry.MaxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		// 409 is a meaningful application response, not an error: callers
		// that care (PutFile) read the body themselves.
		if resp.StatusCode == http.StatusConflict {
			return resp, nil
		}

		errBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if isRetryable(resp.StatusCode) && attempt < c.retry.MaxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method), slog.String("path", path),
				slog.Int("status", resp.StatusCode), slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff))

			if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
				return nil, fmt.Errorf("remoteapi: request canceled: %w", sleepErr)
			}

			attempt++

			continue
		}

		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(errBody), Err: classifyStatus(resp.StatusCode)}
	}
}

func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(c.retry.BaseBackoff) * math.Pow(c.retry.BackoffFactor, float64(attempt))
	if backoff > float64(c.retry.MaxBackoff) {
		backoff = float64(c.retry.MaxBackoff)
	}

	jitter := backoff * c.retry.JitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // timing jitter only
	backoff += jitter

	return time.Duration(backoff)
}

func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}
