package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"petstore/internal/config"
	"petstore/internal/handler"
	"petstore/internal/metrics"
)

func newTestServer(health HealthCheck) http.Handler {
	return newTestServerWithMetrics(health, nil)
}

func newTestServerWithMetrics(health HealthCheck, m *metrics.Metrics) http.Handler {
	cfg := config.Config{JWTSecret: "test-secret", FEURL: "http://localhost:3000", GoEnv: "prod"}
	return New(cfg, zap.NewNop(), Handlers{
		Auth:         handler.NewAuthHandler(nil, nil, nil),
		Product:      handler.NewProductHandler(nil),
		AdminProduct: handler.NewAdminProductHandler(nil),
		AdminUser:    handler.NewAdminUserHandler(nil, nil),
		Address:      handler.NewAddressHandler(nil),
		Order:        handler.NewOrderHandler(nil, nil),
		Payment:      handler.NewPaymentHandler(nil),
		Promotion:    handler.NewPromotionHandler(nil),
		Metrics:      m,
	}, health)
}

func serve(h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(newTestServer(nil), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	down := func(context.Context) error { return errors.New("db down") }
	rec = serve(newTestServer(down), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNotFoundUsesMessageKey(t *testing.T) {
	rec := serve(newTestServer(nil), http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Not Found"}`, rec.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(nil)
	routes := []struct{ method, path string }{
		{http.MethodPost, "/orders"},
		{http.MethodGet, "/orders/1/payment"},
		{http.MethodGet, "/orders"},
		{http.MethodPut, "/orders/1/status"},
		{http.MethodPost, "/payments/create-intent"},
		{http.MethodGet, "/addresses"},
		{http.MethodPost, "/promotions"},
		{http.MethodGet, "/admin/audit-logs"},
		{http.MethodPost, "/admin/users/2/force-logout"},
		{http.MethodPut, "/admin/inventory/1"},
	}
	for _, r := range routes {
		rec := serve(srv, r.method, r.path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.path)
		assert.JSONEq(t, `{"message":"unauthorized"}`, rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := serve(newTestServer(nil), http.MethodOptions, "/orders", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	srv := newTestServerWithMetrics(nil, metrics.New())
	serve(srv, http.MethodGet, "/health", nil)
	serve(srv, http.MethodGet, "/nope", nil)

	rec = serve(srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `petstore_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), `status="404"} 1`)
}
