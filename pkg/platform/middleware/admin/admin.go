package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "tradeledger/pkg/domain-errors"
	"tradeledger/pkg/platform/httputil"
	"tradeledger/pkg/platform/secrets"
	"tradeledger/pkg/requestcontext"
)

// HeaderAdminToken carries the operator token.
const HeaderAdminToken = "X-Admin-Token"

// RequireAdminToken guards operator endpoints with a shared X-Admin-Token.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return guard(func(token string) bool {
		return expectedToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) == 1
	}, logger)
}

// RequireAdminTokenHash is RequireAdminToken against a bcrypt hash of the token.
func RequireAdminTokenHash(hash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return guard(func(token string) bool {
		return hash != "" && secrets.Verify(token, hash) == nil
	}, logger)
}

func guard(valid func(token string) bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !valid(r.Header.Get(HeaderAdminToken)) {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", requestcontext.ClientIP(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
