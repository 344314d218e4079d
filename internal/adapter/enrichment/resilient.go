package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/hive-corporation/harrier/internal/core/domain"
	"github.com/hive-corporation/harrier/internal/metrics"
)

// ResilientClient wraps an HTTP client with a circuit breaker and
// exponential-backoff retries. Every failure it returns is a
// domain.ClassifiedError, so the job engine records it under the same
// taxonomy the rest of the pipeline uses.
type ResilientClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	config  ResilientClientConfig
}

// ResilientClientConfig holds configuration for the resilient client
type ResilientClientConfig struct {
	// Circuit breaker settings
	EnableCircuitBreaker bool
	MaxFailures          uint32
	CircuitTimeout       time.Duration

	// Retry settings
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultResilientClientConfig returns default configuration values
func DefaultResilientClientConfig() ResilientClientConfig {
	return ResilientClientConfig{
		EnableCircuitBreaker: true,
		MaxFailures:          5,
		CircuitTimeout:       30 * time.Second,
		MaxRetries:           3,
		InitialInterval:      500 * time.Millisecond,
		MaxInterval:          5 * time.Second,
	}
}

// NewResilientClient creates a new resilient HTTP client
func NewResilientClient(timeout time.Duration, config ResilientClientConfig) *ResilientClient {
	client := &http.Client{
		Timeout: timeout,
	}

	var breaker *gobreaker.CircuitBreaker
	if config.EnableCircuitBreaker {
		settings := gobreaker.Settings{
			Name:        "enrichment-api",
			MaxRequests: 1,
			Interval:    0, // Don't reset counts automatically
			Timeout:     config.CircuitTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.MaxFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				if to == gobreaker.StateOpen {
					metrics.RecordEnrichmentError("circuit_open")
				}
			},
		}
		breaker = gobreaker.NewCircuitBreaker(settings)
	}

	return &ResilientClient{
		client:  client,
		breaker: breaker,
		config:  config,
	}
}

// Do executes an HTTP request with circuit breaker and retry logic
func (c *ResilientClient) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.doWithRetry(req)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doWithRetry(req)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			metrics.RecordEnrichmentError("circuit_open")
			return nil, &domain.ClassifiedError{
				Type: domain.ErrEnrichment,
				Err:  fmt.Errorf("circuit breaker is open: %w", err),
			}
		}
		return nil, err
	}

	return result.(*http.Response), nil
}

// doWithRetry executes an HTTP request with exponential backoff. The retry
// decision and the emitted metric both come from the taxonomy type of the
// last failure.
func (c *ResilientClient) doWithRetry(req *http.Request) (*http.Response, error) {
	// If max retries is 0, just do a single attempt
	if c.config.MaxRetries == 0 {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, c.fail(err, 0)
		}
		if resp.StatusCode >= 400 {
			status := resp.StatusCode
			resp.Body.Close()
			return nil, c.fail(nil, status)
		}
		return resp, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.config.InitialInterval
	expBackoff.MaxInterval = c.config.MaxInterval
	expBackoff.Multiplier = 2.0
	expBackoff.MaxElapsedTime = 0 // No max elapsed time, only max retries

	retryBackoff := backoff.WithMaxRetries(expBackoff, uint64(c.config.MaxRetries))
	retryBackoff = backoff.WithContext(retryBackoff, req.Context())

	var resp *http.Response
	var lastErr error

	operation := func() error {
		// Clone request body for retry (if present)
		var bodyBytes []byte
		if req.Body != nil {
			var err error
			bodyBytes, err = io.ReadAll(req.Body)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("failed to read request body: %w", err))
			}
			req.Body.Close()
		}

		if len(bodyBytes) > 0 {
			req.Body = io.NopCloser(strings.NewReader(string(bodyBytes)))
		}

		var err error
		resp, err = c.client.Do(req)
		if err != nil {
			lastErr = c.fail(err, 0)
			if retryable(classify(err, 0), 0) {
				return lastErr
			}
			return backoff.Permanent(lastErr)
		}

		if resp.StatusCode >= 400 {
			status := resp.StatusCode
			resp.Body.Close()
			lastErr = c.fail(nil, status)
			if retryable(classify(nil, status), status) {
				return lastErr
			}
			return backoff.Permanent(lastErr)
		}

		return nil
	}

	if err := backoff.Retry(operation, retryBackoff); err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}

	return resp, nil
}

// fail records the failure metric and wraps the underlying cause in a
// ClassifiedError so callers see the taxonomy type.
func (c *ResilientClient) fail(err error, status int) error {
	t := classify(err, status)
	metrics.RecordEnrichmentError(string(t))
	if err == nil {
		err = fmt.Errorf("HTTP %d: %s", status, http.StatusText(status))
	}
	return &domain.ClassifiedError{Type: t, Err: err}
}

// classify maps a transport failure onto the ingestion error taxonomy.
// Exactly one of err and status is meaningful: a non-nil err means the
// request never produced a response.
func classify(err error, status int) domain.ErrorType {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ErrTimeout
		}
		msg := err.Error()
		if strings.Contains(msg, "connection refused") ||
			strings.Contains(msg, "connection reset") ||
			strings.Contains(msg, "EOF") {
			return domain.ErrNetwork
		}
		return domain.ErrProcessing
	}

	switch {
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrPermission
	case status == http.StatusPaymentRequired:
		return domain.ErrQuotaExceeded
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return domain.ErrTimeout
	case status >= 500:
		return domain.ErrEnrichment
	default:
		return domain.ErrValidation
	}
}

// retryable reports whether a failure of this type is worth another
// attempt. Server-side 5xx responses always are; 408 and 504 already
// classify as timeouts, so the status check only has to cover the rest.
func retryable(t domain.ErrorType, status int) bool {
	if status >= 500 {
		return true
	}
	switch t {
	case domain.ErrTimeout, domain.ErrRateLimit, domain.ErrNetwork:
		return true
	}
	return false
}
