package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestObserveReportExposesCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveReport("folder", 120, 40*time.Millisecond, nil)
	metrics.ObserveReport("folder", 0, time.Millisecond, errors.New("boom"))
	metrics.ObserveReport("", 0, time.Millisecond, nil)

	body := scrape(t, metrics)
	for _, want := range []string{
		`odyssey_aging_reports_total{source="folder",status="success"} 1`,
		`odyssey_aging_reports_total{source="folder",status="failure"} 1`,
		`odyssey_aging_reports_total{source="unknown",status="success"} 1`,
		`odyssey_aging_ledger_rows_count{source="folder"} 1`,
		`odyssey_aging_report_duration_seconds_count{source="folder"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics, got: %s", want, body)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveReport("folder", 1, time.Second, nil)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rr.Code)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/aging/reports")

	req := httptest.NewRequest(http.MethodPost, "/aging/reports", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "http_requests_total{code=\"418\",route=\"/aging/reports\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "http_request_duration_seconds_bucket{route=\"/aging/reports\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}
