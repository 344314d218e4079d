package enrichment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

func fastConfig() ResilientClientConfig {
	return ResilientClientConfig{
		EnableCircuitBreaker: false,
		MaxRetries:           2,
		InitialInterval:      time.Millisecond,
		MaxInterval:          5 * time.Millisecond,
	}
}

func TestEnrichDecodesLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("value"); got != "1.2.3.4" {
			t.Errorf("value param = %q, want 1.2.3.4", got)
		}
		if got := r.Header.Get("X-API-Key"); got != "secret" {
			t.Errorf("api key header = %q, want secret", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reputation":"poor","sightings":12}`))
	}))
	defer srv.Close()

	e := NewHTTPEnricher(srv.URL, "secret", 5*time.Second, fastConfig())
	data, err := e.Enrich(context.Background(), domain.IOC{Type: domain.IPv4, Value: "1.2.3.4"})
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if data["reputation"] != "poor" {
		t.Errorf("reputation = %v, want poor", data["reputation"])
	}
}

func TestEnrichRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"reputation":"clean"}`))
	}))
	defer srv.Close()

	e := NewHTTPEnricher(srv.URL, "", 5*time.Second, fastConfig())
	data, err := e.Enrich(context.Background(), domain.IOC{Type: domain.Domain, Value: "example.com"})
	if err != nil {
		t.Fatalf("Enrich after retries: %v", err)
	}
	if data["reputation"] != "clean" {
		t.Errorf("reputation = %v, want clean", data["reputation"])
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestEnrichDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := NewHTTPEnricher(srv.URL, "bad-key", 5*time.Second, fastConfig())
	if _, err := e.Enrich(context.Background(), domain.IOC{Type: domain.IPv4, Value: "1.2.3.4"}); err == nil {
		t.Fatal("expected error for 401 response")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1 (4xx is permanent)", got)
	}
}

func TestFailuresCarryTaxonomyType(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   domain.ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, domain.ErrPermission},
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimit},
		{"upstream outage", http.StatusBadGateway, domain.ErrEnrichment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			e := NewHTTPEnricher(srv.URL, "", 5*time.Second, fastConfig())
			_, err := e.Enrich(context.Background(), domain.IOC{Type: domain.IPv4, Value: "1.2.3.4"})
			if err == nil {
				t.Fatalf("expected error for HTTP %d", tc.status)
			}
			var ce *domain.ClassifiedError
			if !errors.As(err, &ce) {
				t.Fatalf("error %v does not carry a taxonomy type", err)
			}
			if ce.Type != tc.want {
				t.Errorf("error type = %s, want %s", ce.Type, tc.want)
			}
		})
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := ResilientClientConfig{
		EnableCircuitBreaker: true,
		MaxFailures:          2,
		CircuitTimeout:       time.Minute,
		MaxRetries:           0,
	}
	e := NewHTTPEnricher(srv.URL, "", 5*time.Second, cfg)
	ioc := domain.IOC{Type: domain.IPv4, Value: "1.2.3.4"}

	for i := 0; i < 2; i++ {
		if _, err := e.Enrich(context.Background(), ioc); err == nil {
			t.Fatal("expected upstream failure")
		}
	}
	// Third call must fail fast without reaching the server.
	if _, err := e.Enrich(context.Background(), ioc); err == nil {
		t.Fatal("expected circuit-open failure")
	}
}
