package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/mmuslimabdulj/goat-dm/internal/metrics"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest("POST", "/messages/send/bob", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected one JSON log line, got %q", buf.String())
	}
	if entry["status"] != float64(http.StatusCreated) {
		t.Errorf("Expected status 201, got %v", entry["status"])
	}
	if entry["path"] != "/messages/send/bob" {
		t.Errorf("Unexpected path %v", entry["path"])
	}
	if entry["level"] != "info" {
		t.Errorf("Expected info level, got %v", entry["level"])
	}
}

func TestLogger_ServerErrorsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["level"] != "error" {
		t.Errorf("Expected error level, got %v", entry["level"])
	}
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/messages/{id}", "200")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/messages/u-123", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/messages/u-456", nil))

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("Expected 2 requests under the route pattern, got %v", got)
	}
}
