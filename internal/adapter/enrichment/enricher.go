// Package enrichment implements the enrichment port against an external
// reputation API, with retries and a circuit breaker between the job
// engine and the upstream.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

// HTTPEnricher looks indicators up in a reputation service. A failed
// lookup is reported as an error; the job engine decides what that means
// for the item.
type HTTPEnricher struct {
	client  *ResilientClient
	baseURL string
	apiKey  string
}

func NewHTTPEnricher(baseURL, apiKey string, timeout time.Duration, cfg ResilientClientConfig) *HTTPEnricher {
	return &HTTPEnricher{
		client:  NewResilientClient(timeout, cfg),
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (e *HTTPEnricher) Name() string { return "reputation-api" }

func (e *HTTPEnricher) Enrich(ctx context.Context, ioc domain.IOC) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/v1/lookup?%s", e.baseURL, url.Values{
		"value": {ioc.Value},
		"type":  {string(ioc.Type)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set("X-API-Key", e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup failed: %w", err)
	}
	defer resp.Body.Close()

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	return data, nil
}
