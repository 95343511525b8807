package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/neurotask/internal/core/domain"
)

func TestMiddlewareLabelsRoutePattern(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/items/"+id, nil))
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/items/{id}", "418"))
	if got != 2 {
		t.Fatalf("expected 2 requests under route pattern, got %v", got)
	}
}

func TestObserveExtraction(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.ObserveExtraction(domain.FormatPDF, domain.OutcomeOK, 20*time.Millisecond)
	m.ObserveExtraction(domain.FormatPDF, "decode_error", time.Millisecond)

	if got := testutil.ToFloat64(m.extractionsTotal.WithLabelValues("api", "pdf", "ok")); got != 1 {
		t.Fatalf("expected 1 ok extraction, got %v", got)
	}
	if got := testutil.ToFloat64(m.extractionsTotal.WithLabelValues("api", "pdf", "decode_error")); got != 1 {
		t.Fatalf("expected 1 failed extraction, got %v", got)
	}
}

func TestRecordTaskPlanAndHandler(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordTaskPlan(nil)
	m.RecordTaskPlan(errors.New("upstream"))
	m.RecordRateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"doctext_tasks_plans_total", "doctext_http_rate_limited_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in exposition", name)
		}
	}
}

func TestWorkerMetrics(t *testing.T) {
	m := NewWorkerMetrics("worker")

	m.StartRequest()
	if got := testutil.ToFloat64(m.requestInFlight); got != 1 {
		t.Fatalf("expected 1 in flight, got %v", got)
	}
	m.FinishRequest(time.Second, domain.OutcomeOK)

	if got := testutil.ToFloat64(m.requestInFlight); got != 0 {
		t.Fatalf("expected 0 in flight, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("worker", "ok")); got != 1 {
		t.Fatalf("expected 1 served request, got %v", got)
	}
}
