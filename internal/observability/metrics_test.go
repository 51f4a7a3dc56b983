package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/harborvet/harborvet/internal/authz"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsRecordsDecisions(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordDecision(true, authz.ReasonGrantedByRole)
	metrics.RecordDecision(false, authz.ReasonDeniedOverride)
	metrics.RecordDecision(false, "Condition failed: ownerId equals 42 (value mismatch)")

	body := scrape(t, metrics)
	if !strings.Contains(body, `harborvet_authz_decisions_total{outcome="allowed",reason="role_grant"} 1`) {
		t.Fatalf("expected role grant decision, got: %s", body)
	}
	if !strings.Contains(body, `harborvet_authz_decisions_total{outcome="denied",reason="override_deny"} 1`) {
		t.Fatalf("expected override deny decision, got: %s", body)
	}
	if !strings.Contains(body, `harborvet_authz_decisions_total{outcome="denied",reason="condition_failed"} 1`) {
		t.Fatalf("expected condition failure to be collapsed, got: %s", body)
	}
}

func TestMetricsRecordsCacheEvents(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordCacheEvent(authz.CacheEventMiss)
	metrics.RecordCacheEvent(authz.CacheEventHit)
	metrics.RecordCacheEvent(authz.CacheEventHit)

	body := scrape(t, metrics)
	if !strings.Contains(body, `harborvet_authz_cache_events_total{event="hit"} 2`) {
		t.Fatalf("expected two cache hits, got: %s", body)
	}
	if !strings.Contains(body, `harborvet_authz_cache_events_total{event="miss"} 1`) {
		t.Fatalf("expected one cache miss, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "harborvet_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "harborvet_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}
