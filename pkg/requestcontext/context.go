// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets the values; services read them without importing net/http:
//
//	actor := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "tradeledger/pkg/domain"
)

type (
	userIDKey      struct{}
	requestIDKey   struct{}
	clientIPKey    struct{}
	clientKey      struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyUserID      = userIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyClient      = clientKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// UserID retrieves the authenticated user ID from the context.
// Returns the zero value (nil UUID) if not set.
func UserID(ctx context.Context) id.UserID {
	if userID, ok := ctx.Value(ContextKeyUserID).(id.UserID); ok {
		return userID
	}
	return id.UserID{}
}

// WithUserID injects a user ID into the context.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects the caller's IP address into the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextKeyClientIP, ip)
}

// Client retrieves the summarised user agent (browser and OS) of the caller.
func Client(ctx context.Context) string {
	if client, ok := ctx.Value(ContextKeyClient).(string); ok {
		return client
	}
	return ""
}

// WithClient injects the caller's user agent summary into the context.
func WithClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, ContextKeyClient, client)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, queue consumers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// Detach returns a background context that keeps the request-scoped values
// (request id, user id) but not the parent's deadline or cancellation. Used
// for work that must outlive the request that triggered it.
func Detach(ctx context.Context) context.Context {
	out := context.Background()
	if reqID := RequestID(ctx); reqID != "" {
		out = WithRequestID(out, reqID)
	}
	if userID := UserID(ctx); !userID.IsNil() {
		out = WithUserID(out, userID)
	}
	return out
}
