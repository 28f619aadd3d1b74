package trace

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	applog "expensetracker/internal/log"
)

func newRouter(t *testing.T, reg *prometheus.Registry, buf *bytes.Buffer) http.Handler {
	t.Helper()
	logger := applog.New(applog.Config{Format: "json", Output: buf})

	r := chi.NewRouter()
	r.Use(applog.Middleware(logger))
	r.Use(NewMiddleware(func(*http.Request) string { return "203.0.113.7" }, NewMetrics(reg)).Middleware)
	r.Get("/expenses/{id}", func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("request id missing from handler context")
		}
		w.WriteHeader(http.StatusNotFound)
	})
	r.Post("/expenses", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func TestMiddleware_RouteLabelAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	var buf bytes.Buffer
	h := newRouter(t, reg, &buf)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/expenses/abc", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/expenses", nil))

	expected := `
# HELP expensetracker_http_requests_total HTTP requests by method, route and status code.
# TYPE expensetracker_http_requests_total counter
expensetracker_http_requests_total{method="GET",route="/expenses/{id}",status="404"} 1
expensetracker_http_requests_total{method="POST",route="/expenses",status="200"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "expensetracker_http_requests_total"); err != nil {
		t.Error(err)
	}

	out := buf.String()
	if !strings.Contains(out, `"route":"/expenses/{id}"`) || !strings.Contains(out, `"level":"WARN"`) {
		t.Errorf("404 should be logged at warn with its route pattern: %s", out)
	}
	if !strings.Contains(out, `"client_ip":"203.0.113.7"`) {
		t.Errorf("client ip missing: %s", out)
	}
}

func TestMiddleware_RequestIDHeader(t *testing.T) {
	h := newRouter(t, prometheus.NewRegistry(), &bytes.Buffer{})

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/expenses", nil))
		if _, err := uuid.Parse(rec.Header().Get(RequestIDHeader)); err != nil {
			t.Errorf("response request id is not a uuid: %q", rec.Header().Get(RequestIDHeader))
		}
	})

	t.Run("propagated", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodPost, "/expenses", nil)
		req.Header.Set(RequestIDHeader, id)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get(RequestIDHeader) != id {
			t.Errorf("request id = %q, want %q", rec.Header().Get(RequestIDHeader), id)
		}
	})

	t.Run("malformed incoming id replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/expenses", nil)
		req.Header.Set(RequestIDHeader, "<script>")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get(RequestIDHeader) == "<script>" {
			t.Error("malformed request id should not be echoed")
		}
	})
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newRouter(t, reg, &bytes.Buffer{})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	count, err := testutil.GatherAndCount(reg, "expensetracker_http_requests_total")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("series = %d, want 1", count)
	}

	expected := `
# HELP expensetracker_http_requests_total HTTP requests by method, route and status code.
# TYPE expensetracker_http_requests_total counter
expensetracker_http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "expensetracker_http_requests_total"); err != nil {
		t.Error(err)
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	if GetRequestID(context.Background()) != "" {
		t.Error("expected empty request id")
	}
}
