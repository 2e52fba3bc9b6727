package retailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/agroprecios/backend/internal/domain"
	"github.com/agroprecios/backend/internal/logger"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123 Safari/537.36"

	// maxBodyBytes bounds a single page or API response
	maxBodyBytes = 8 << 20
)

// RetryPolicy describes how transient failures are retried
type RetryPolicy struct {
	MaxRetries           int
	BackoffFactor        float64
	RetryableStatusCodes []int
}

// DefaultRetryPolicy retries 429 and gateway errors three times
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:           3,
		BackoffFactor:        1.2,
		RetryableStatusCodes: []int{429, 500, 502, 503, 504},
	}
}

// ClientConfig holds configuration for the retailer HTTP client
type ClientConfig struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
	Retry             RetryPolicy
}

// Client is a rate limited HTTP client with bounded exponential backoff,
// shared by every retailer fetcher
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	retry       RetryPolicy
	userAgent   string
	maxBody     int64
	logger      *zap.Logger
}

// NewClient creates a new retailer client
func NewClient(config ClientConfig, log *zap.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 8
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	retry := config.Retry
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rateLimiter: rate.NewLimiter(limit, burst),
		retry:       retry,
		userAgent:   userAgent,
		maxBody:     maxBodyBytes,
		logger:      logger.OrNop(log),
	}
}

// exponentialBackoff returns the wait before retry number attempt (1-based):
// factor * 2^(attempt-1) seconds
func exponentialBackoff(factor float64, attempt int) time.Duration {
	if factor <= 0 || attempt < 1 {
		return 0
	}
	seconds := factor * math.Pow(2, float64(attempt-1))
	return time.Duration(seconds * float64(time.Second))
}

// doRequest executes an HTTP GET request with browser-like headers
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "es-PY,es;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailure, err)
	}
	return resp, nil
}

// Get fetches reqURL with query params, retrying transport errors and
// retryable status codes. Any other non-200 status fails immediately.
func (c *Client) Get(ctx context.Context, reqURL string, params url.Values) ([]byte, error) {
	if len(params) > 0 {
		reqURL = reqURL + "?" + params.Encode()
	}
	log := c.logger.With(zap.String("url", reqURL))

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxRetries+1; attempt++ {
		if attempt > 1 {
			wait := exponentialBackoff(c.retry.BackoffFactor, attempt-1)
			log.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("backoff", wait), zap.Error(lastErr))
			if err := sleepContext(ctx, wait); err != nil {
				return nil, err
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailure, ctx.Err())
			}
			lastErr = err
			continue
		}

		body, readErr := readLimitedBody(resp.Body, c.maxBody)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("%w: status %d", domain.ErrFetchFailure, resp.StatusCode)
			if slices.Contains(c.retry.RetryableStatusCodes, resp.StatusCode) {
				continue
			}
			return nil, lastErr
		}
		if readErr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailure, readErr)
		}
		return body, nil
	}

	log.Warn("all retries failed", zap.Int("attempts", c.retry.MaxRetries+1), zap.Error(lastErr))
	return nil, lastErr
}

// GetJSON fetches reqURL and decodes the JSON body into v
func (c *Client) GetJSON(ctx context.Context, reqURL string, params url.Values, v any) error {
	body, err := c.Get(ctx, reqURL, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var errBodyTooLarge = errors.New("response body exceeds limit")

// readLimitedBody reads at most limit bytes and fails when the body is longer
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
