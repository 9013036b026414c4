package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.OutboxEvent("notifications", true)
	m.OutboxEvent("notifications", true)
	m.OutboxEvent("order_events", false)
	m.ProviderCall("stripe", "ok", 120*time.Millisecond)
	m.ProviderCall("bakong", "error", time.Second)
	m.ObserveHTTP(http.MethodPost, "/orders", http.StatusCreated, 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outboxEvents.WithLabelValues("notifications", "published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxEvents.WithLabelValues("order_events", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("bakong", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/orders", "201")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ProviderCall("stripe", "rejected", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `petstore_payment_provider_calls_total{outcome="rejected",provider="stripe"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OutboxEvent("notifications", true)
		m.ProviderCall("stripe", "ok", time.Millisecond)
		m.ObserveHTTP(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	})
}
