package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"tradeledger/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.1.1.1:80", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": " 10.0.0.9 "}, "1.1.1.1:80", "10.0.0.9"},
		{"remote addr", nil, "192.168.1.4:5555", "192.168.1.4"},
		{"ipv6 remote addr", nil, "[::1]:5555", "[::1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(r))
		})
	}
}

func TestDescribeUserAgent(t *testing.T) {
	assert.Equal(t, "unknown", DescribeUserAgent(""))
	assert.Equal(t, "bot", DescribeUserAgent("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))

	firefox := DescribeUserAgent("Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0")
	assert.Contains(t, firefox, "Firefox/120.0")
	assert.Contains(t, firefox, "Linux")
}

func TestClientMetadataPopulatesContext(t *testing.T) {
	var ip, client string
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		client = requestcontext.Client(r.Context())
	})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:4000"
	ClientMetadata(next).ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "10.1.2.3", ip)
	assert.Equal(t, "unknown", client)
}
