package jwttai

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSecure(t *testing.T) {
	standard := &TrustedProxyConfig{TrustXForwardedProto: true}
	rfc7239 := &TrustedProxyConfig{TrustForwarded: true}
	both := &TrustedProxyConfig{TrustXForwardedProto: true, TrustForwarded: true}

	tests := []struct {
		name    string
		tls     bool
		headers map[string]string
		config  *TrustedProxyConfig
		want    bool
	}{
		{
			name: "direct TLS",
			tls:  true,
			want: true,
		},
		{
			name: "direct TLS ignores forwarded headers",
			tls:  true,
			headers: map[string]string{
				"X-Forwarded-Proto": "http",
			},
			config: standard,
			want:   true,
		},
		{
			name: "plain HTTP",
			want: false,
		},
		{
			name:    "nil config ignores X-Forwarded-Proto",
			headers: map[string]string{"X-Forwarded-Proto": "https"},
			want:    false,
		},
		{
			name:    "all flags false ignores headers",
			headers: map[string]string{"X-Forwarded-Proto": "https", "Forwarded": "proto=https"},
			config:  &TrustedProxyConfig{},
			want:    false,
		},
		{
			name:    "trusted X-Forwarded-Proto https",
			headers: map[string]string{"X-Forwarded-Proto": "https"},
			config:  standard,
			want:    true,
		},
		{
			name:    "trusted X-Forwarded-Proto is case insensitive",
			headers: map[string]string{"X-Forwarded-Proto": "HTTPS"},
			config:  standard,
			want:    true,
		},
		{
			name:    "trusted X-Forwarded-Proto http",
			headers: map[string]string{"X-Forwarded-Proto": "http"},
			config:  standard,
			want:    false,
		},
		{
			name:    "X-Forwarded-Proto chain uses leftmost",
			headers: map[string]string{"X-Forwarded-Proto": "https, http"},
			config:  standard,
			want:    true,
		},
		{
			name:    "X-Forwarded-Proto chain with http client hop",
			headers: map[string]string{"X-Forwarded-Proto": "http, https"},
			config:  standard,
			want:    false,
		},
		{
			name:    "standard config ignores Forwarded",
			headers: map[string]string{"Forwarded": "for=192.0.2.60;proto=https"},
			config:  standard,
			want:    false,
		},
		{
			name:    "trusted Forwarded https",
			headers: map[string]string{"Forwarded": "for=192.0.2.60;proto=https;host=api.example.com"},
			config:  rfc7239,
			want:    true,
		},
		{
			name:    "trusted Forwarded quoted proto",
			headers: map[string]string{"Forwarded": `for="[2001:db8::1]";proto="https"`},
			config:  rfc7239,
			want:    true,
		},
		{
			name:    "trusted Forwarded without proto",
			headers: map[string]string{"Forwarded": "for=192.0.2.60"},
			config:  rfc7239,
			want:    false,
		},
		{
			name: "Forwarded takes precedence",
			headers: map[string]string{
				"Forwarded":         "proto=http",
				"X-Forwarded-Proto": "https",
			},
			config: both,
			want:   false,
		},
		{
			name: "falls back to X-Forwarded-Proto when Forwarded has no proto",
			headers: map[string]string{
				"Forwarded":         "for=192.0.2.60",
				"X-Forwarded-Proto": "https",
			},
			config: both,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://backend:8080/api", nil)
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, isSecure(req, tt.config))
			assert.Equal(t, tt.want, NewRequest(req, tt.config).IsSecure())
		})
	}
}

func TestProxyOptions(t *testing.T) {
	t.Run("WithStandardProxy", func(t *testing.T) {
		i, err := New(WithStandardProxy())
		assert.NoError(t, err)
		assert.Equal(t, &TrustedProxyConfig{TrustXForwardedProto: true}, i.trustedProxies)
	})

	t.Run("WithRFC7239Proxy", func(t *testing.T) {
		i, err := New(WithRFC7239Proxy())
		assert.NoError(t, err)
		assert.Equal(t, &TrustedProxyConfig{TrustForwarded: true}, i.trustedProxies)
	})
}

func TestGetLeftmost(t *testing.T) {
	assert.Equal(t, "https", getLeftmost("https"))
	assert.Equal(t, "https", getLeftmost(" https , http"))
	assert.Equal(t, "", getLeftmost(""))
}

func TestParseForwardedProto(t *testing.T) {
	assert.Equal(t, "https", parseForwardedProto("for=192.0.2.60;proto=https;by=203.0.113.43"))
	assert.Equal(t, "http", parseForwardedProto("Proto=http, proto=https"))
	assert.Equal(t, "https", parseForwardedProto(`proto="https"`))
	assert.Equal(t, "", parseForwardedProto("for=192.0.2.60"))
}
