package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	authmw "tradeledger/pkg/platform/middleware/auth"
	"tradeledger/pkg/platform/middleware/ratelimit"
	"tradeledger/pkg/requestcontext"
)

const (
	testAdminToken = "admin-secret"
	testUserID     = "6f1c1c36-3f8a-4a0f-9a57-2a8f0c1e0b11"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*authmw.JWTClaims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &authmw.JWTClaims{UserID: testUserID}, nil
}

type whoami struct{}

func (whoami) Register(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, requestcontext.UserID(r.Context()).String())
	})
}

func newTestRouter(health map[string]HealthCheck) http.Handler {
	return NewRouter(Config{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Validator:  stubValidator{},
		AdminToken: testAdminToken,
		API:        []Registrar{whoami{}},
		Admin:      []Registrar{whoami{}},
		Health:     health,
	})
}

func serve(h http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAPIRequiresBearerToken(t *testing.T) {
	router := newTestRouter(nil)

	rr := serve(router, "/api/whoami", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(router, "/api/whoami", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(router, "/api/whoami", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, testUserID, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestAdminRequiresAdminToken(t *testing.T) {
	router := newTestRouter(nil)

	rr := serve(router, "/admin/whoami", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(router, "/admin/whoami", map[string]string{"X-Admin-Token": testAdminToken})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAPIRateLimitedPerUser(t *testing.T) {
	router := NewRouter(Config{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Validator:   stubValidator{},
		RateLimiter: ratelimit.New(0.01, 1),
		API:         []Registrar{whoami{}},
	})
	auth := map[string]string{"Authorization": "Bearer good"}

	assert.Equal(t, http.StatusOK, serve(router, "/api/whoami", auth).Code)
	rr := serve(router, "/api/whoami", auth)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(router, "/healthz", nil).Code, "operational endpoints are not limited")
}

func TestHealthz(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		})
		rr := serve(router, "/healthz", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok"}}`, rr.Body.String())
	})

	t.Run("failing check degrades", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		})
		rr := serve(router, "/healthz", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.JSONEq(t, `{"status":"degraded","checks":{"redis":"connection refused"}}`, rr.Body.String())
	})
}

func TestMetricsEndpoint(t *testing.T) {
	rr := serve(newTestRouter(nil), "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
