package testutil

import (
	"net/http"

	id "tradeledger/pkg/domain"
	"tradeledger/pkg/requestcontext"
)

// AsUser attaches an authenticated user to the request, the way the bearer
// auth middleware does.
func AsUser(req *http.Request, userID id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}
