package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/burnt-labs/dao-dao-indexer/internal/logger"
)

// ErrNotFound is returned for HTTP 404 responses so callers can distinguish
// absent resources from transport failures
var ErrNotFound = errors.New("resource not found")

// HTTPClient defines an interface for HTTP operations to enable mocking
type HTTPClient interface {
	// Get performs a GET request and unmarshals the JSON response into result
	Get(ctx context.Context, url string, result interface{}) error
}

// RetryConfig controls the exponential backoff applied to transient failures
type RetryConfig struct {
	// MaxAttempts is the total number of tries, the first call included
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RealHTTPClient implements HTTPClient with retry on transient failures
type RealHTTPClient struct {
	client *http.Client
	json   JSON
	retry  RetryConfig
}

// NewHTTPClient creates an HTTP client with the given per-request timeout
// and retry policy
func NewHTTPClient(timeout time.Duration, retry RetryConfig, jsonAdapter JSON) *RealHTTPClient {
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 3
	}
	if retry.InitialInterval == 0 {
		retry.InitialInterval = 100 * time.Millisecond
	}
	if retry.MaxInterval == 0 {
		retry.MaxInterval = time.Second
	}
	return &RealHTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		json:  jsonAdapter,
		retry: retry,
	}
}

// doRequestWithRetry executes a request, retrying network errors, rate
// limiting, and server errors with exponential backoff. Client errors are
// permanent; 404 maps to ErrNotFound.
func (c *RealHTTPClient) doRequestWithRetry(ctx context.Context, req *http.Request) ([]byte, error) {
	var respBody []byte

	operation := func() error {
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to perform request: %w", err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				logger.Warn("failed to close response body", zap.Error(err), zap.String("url", req.URL.String()))
			}
		}()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("retryable status code %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body)))
		}

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to read response body: %w", err))
		}

		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	b.MaxInterval = c.retry.MaxInterval
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	// backoff counts retries after the unconditional first call, so the
	// wrapper gets attempts-1 to keep the total at MaxAttempts.
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.retry.MaxAttempts-1), ctx))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("request failed after retries: %w", err)
	}

	return respBody, nil
}

// Get performs a GET request and unmarshals the response into result
func (c *RealHTTPClient) Get(ctx context.Context, url string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	respBody, err := c.doRequestWithRetry(ctx, req)
	if err != nil {
		return err
	}

	if result == nil {
		return nil
	}

	if err := c.json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
