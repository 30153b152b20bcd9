package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/identity/service"
	"tradeledger/internal/identity/store"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/middleware/admin"
	"tradeledger/pkg/testutil"
)

const adminToken = "secret-token"

var _ Service = (*service.Service)(nil)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.New(store.NewInMemoryStore(), id.NewUserID(), service.WithLogger(logger))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(adminToken, logger))
		New(svc, logger).Register(r)
	})
	return r
}

func asAdmin(req *http.Request) *http.Request {
	req.Header.Set("X-Admin-Token", adminToken)
	return req
}

func TestRegisterUser(t *testing.T) {
	router := newRouter(t)

	testutil.Given(t, "a valid admin token", func(t *testing.T) {
		var userID string

		testutil.When(t, "registering a corporate user", func(t *testing.T) {
			rr := testutil.DoRequest(router, asAdmin(testutil.NewJSONRequest(t, http.MethodPost, "/admin/users",
				map[string]any{"role": "Corporate"})))

			testutil.Then(t, "the user is created", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusCreated)
				resp := testutil.UnmarshalResponse[UserResponse](t, rr)
				assert.Equal(t, "corporate", resp.Role)
				userID = resp.UserID
			})
		})

		testutil.When(t, "changing the user's role", func(t *testing.T) {
			rr := testutil.DoRequest(router, asAdmin(testutil.NewJSONRequest(t, http.MethodPost, "/admin/users",
				map[string]any{"user_id": userID, "role": "bank"})))

			testutil.Then(t, "the existing user is updated", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				rr = testutil.DoRequest(router, asAdmin(testutil.NewRequest(t, http.MethodGet, "/admin/users/"+userID)))
				testutil.AssertStatus(t, rr, http.StatusOK)
				assert.Equal(t, "bank", testutil.UnmarshalResponse[UserResponse](t, rr).Role)
			})
		})

		testutil.When(t, "the role is unknown", func(t *testing.T) {
			rr := testutil.DoRequest(router, asAdmin(testutil.NewJSONRequest(t, http.MethodPost, "/admin/users",
				map[string]any{"role": "exporter"})))
			testutil.Then(t, "validation fails", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
			})
		})
	})

	testutil.Given(t, "no admin token", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/admin/users",
			map[string]any{"role": "admin"}))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})
}

func TestHandleGetUnknownUser(t *testing.T) {
	rr := testutil.DoRequest(newRouter(t), asAdmin(testutil.NewRequest(t, http.MethodGet, "/admin/users/"+id.NewUserID().String())))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}
