package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	id "tradeledger/pkg/domain"
	"tradeledger/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return s.claims, s.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	userID := id.NewUserID()

	var seen id.UserID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name      string
		header    string
		validator stubValidator
		status    int
	}{
		{"valid token", "Bearer good", stubValidator{claims: &JWTClaims{UserID: userID.String()}}, http.StatusNoContent},
		{"missing header", "", stubValidator{}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubValidator{}, http.StatusUnauthorized},
		{"invalid token", "Bearer bad", stubValidator{err: errors.New("expired")}, http.StatusUnauthorized},
		{"non-uuid subject", "Bearer good", stubValidator{claims: &JWTClaims{UserID: "alice"}}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = id.UserID{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			RequireAuth(tt.validator, logger)(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, userID, seen)
			}
		})
	}
}
