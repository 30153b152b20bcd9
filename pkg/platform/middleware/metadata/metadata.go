package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"tradeledger/pkg/requestcontext"
)

// ClientMetadata stores the caller's IP address and a short user agent
// summary in the request context. It should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientIP(r.Context(), ClientIPFromRequest(r))
		ctx = requestcontext.WithClient(ctx, DescribeUserAgent(r.Header.Get("User-Agent")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DescribeUserAgent reduces a raw User-Agent header to "browser/version (os)".
// Crawlers are reported as "bot" and an empty header as "unknown".
func DescribeUserAgent(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "unknown"
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		return "bot"
	}
	name, version := ua.Browser()
	if name == "" {
		return "unknown"
	}
	desc := name
	if version != "" {
		desc += "/" + version
	}
	if os := ua.OS(); os != "" {
		desc += " (" + os + ")"
	}
	return desc
}

// ClientIPFromRequest extracts the client IP, honouring proxy headers.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// first hop is the original client
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
