package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"restaurant-ordering/internal/auth"
	"restaurant-ordering/internal/common/httpx"
	"restaurant-ordering/internal/common/logger"
	"restaurant-ordering/internal/config"
	"restaurant-ordering/internal/events"
	trackerservice "restaurant-ordering/internal/microservices/tracker/service"
	"restaurant-ordering/internal/pricing"
	"restaurant-ordering/internal/repository"
	"restaurant-ordering/internal/ticket"
)

func testRouter(t *testing.T, mutate func(*config.Config), checks map[string]httpx.Check, secret string) (http.Handler, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.UploadDir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	lg := logger.NewWithZap("test", zap.NewNop())
	hub := trackerservice.NewHub(nil, lg)
	if checks == nil {
		checks = map[string]httpx.Check{}
	}
	h := NewRouter(Deps{
		Config:    &cfg,
		Store:     repository.NewMemoryStore(),
		Tickets:   ticket.NewMemorySequencer(time.UTC),
		Publisher: events.Multi{hub},
		Hub:       hub,
		Auth:      auth.New(secret, time.Hour),
		Rules:     pricing.DefaultRules(),
		Checks:    checks,
		Logger:    lg,
	})
	return h, &cfg
}

func serve(h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	h, _ := testRouter(t, nil, map[string]httpx.Check{
		"store": func(context.Context) error { return nil },
	}, "")

	rec := serve(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store":"ok"`)
	assert.NotEmpty(t, rec.Header().Get(httpx.RequestIDHeader))

	rec = serve(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_HealthDegraded(t *testing.T) {
	h, _ := testRouter(t, nil, map[string]httpx.Check{
		"rabbitmq": func(context.Context) error { return errors.New("connection closed") },
	}, "")

	rec := serve(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection closed")
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, _ := testRouter(t, func(c *config.Config) { c.Server.CORSOrigins = []string{"https://pos.example"} }, nil, "")

	rec := serve(h, http.MethodOptions, "/api/orders", "",
		"Origin", "https://pos.example", "Access-Control-Request-Method", "POST")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://pos.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_OrderRateLimit(t *testing.T) {
	h, _ := testRouter(t, func(c *config.Config) {
		c.Server.OrderRate = 0.001
		c.Server.OrderBurst = 1
	}, nil, "")

	first := serve(h, http.MethodPost, "/api/orders", `{"order_type":"takeout","items":[]}`)
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := serve(h, http.MethodPost, "/api/orders", `{"order_type":"takeout","items":[]}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	quote := serve(h, http.MethodPost, "/api/orders/quote", `{"order_type":"takeout","items":[]}`)
	assert.Equal(t, http.StatusBadRequest, quote.Code, "quotes are not rate limited")
}

func TestRouter_ServesUploads(t *testing.T) {
	h, cfg := testRouter(t, nil, nil, "")
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Server.UploadDir, "latte.txt"), []byte("foam"), 0o644))

	rec := serve(h, http.MethodGet, "/uploads/latte.txt", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "foam", rec.Body.String())
}

func TestRouter_StaffRoutesNeedToken(t *testing.T) {
	h, _ := testRouter(t, nil, nil, "s3cret")

	rec := serve(h, http.MethodPost, "/api/menu", `{"name":"Latte","price":4.5,"category":"drinks"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := auth.New("s3cret", time.Hour).Issue("manager", auth.RoleStaff)
	require.NoError(t, err)
	rec = serve(h, http.MethodPost, "/api/menu", `{"name":"Latte","price":4.5,"category":"drinks"}`,
		"Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(h, http.MethodGet, "/api/menu", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
