package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2beens/fitcoach/internal/telemetry/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMetrics(t *testing.T) {
	metricsManager, registry := metrics.NewTestManagerAndRegistry()

	r := mux.NewRouter()
	r.HandleFunc("/analysis/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}).Methods("GET").Name("get-session")
	r.Use(RequestMetrics(metricsManager))

	for _, id := range []string{"a", "b", "c"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/analysis/sessions/"+id, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(metricsManager.CounterRequests.WithLabelValues("GET", "404")))
	// one series for all three ids
	count, err := testutil.GatherAndCount(registry, "fitcoach_test_server_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestResponseWriter_HijackUnsupported(t *testing.T) {
	w := &responseWriter{httptest.NewRecorder(), http.StatusOK}
	_, _, err := w.Hijack()
	assert.Error(t, err)
}

func TestLogRequest(t *testing.T) {
	called := false
	handler := LogRequest()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/exercises", nil))
	assert.True(t, called)
}
