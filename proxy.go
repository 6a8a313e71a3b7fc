package jwttai

import (
	"net/http"
	"strings"
)

// TrustedProxyConfig defines which reverse proxy headers are trusted to
// report that the client connection was secure.
//
// SECURITY WARNING: Only enable when behind a trusted reverse proxy that
// terminates TLS and strips client-provided forwarded headers. Enabling this
// on a directly exposed listener lets any client claim a secure transport.
//
// A nil config trusts nothing: only r.TLS counts. RFC 7239 Forwarded takes
// precedence over X-Forwarded-Proto when both are enabled, and the leftmost
// value of a multi-proxy chain is used.
type TrustedProxyConfig struct {
	// TrustXForwardedProto enables the X-Forwarded-Proto header.
	TrustXForwardedProto bool

	// TrustForwarded enables the RFC 7239 Forwarded header's proto parameter.
	TrustForwarded bool
}

func (c *TrustedProxyConfig) hasAnyTrustedHeaders() bool {
	if c == nil {
		return false
	}
	return c.TrustXForwardedProto || c.TrustForwarded
}

// WithTrustedProxies configures trusted proxy headers for transport security
// detection.
//
// Example:
//
//	interceptor, err := jwttai.New(
//	    jwttai.WithTrustedProxies(&jwttai.TrustedProxyConfig{
//	        TrustXForwardedProto: true,
//	    }),
//	)
func WithTrustedProxies(config *TrustedProxyConfig) Option {
	return func(i *Interceptor) error {
		if config == nil {
			return nil
		}
		i.trustedProxies = config
		return nil
	}
}

// WithStandardProxy trusts X-Forwarded-Proto, as set by Nginx, Apache and
// HAProxy.
func WithStandardProxy() Option {
	return WithTrustedProxies(&TrustedProxyConfig{TrustXForwardedProto: true})
}

// WithRFC7239Proxy trusts the RFC 7239 Forwarded header.
func WithRFC7239Proxy() Option {
	return WithTrustedProxies(&TrustedProxyConfig{TrustForwarded: true})
}

// isSecure reports whether r arrived over TLS, directly or, when config
// allows it, as reported by a trusted proxy.
func isSecure(r *http.Request, config *TrustedProxyConfig) bool {
	if r.TLS != nil {
		return true
	}
	if !config.hasAnyTrustedHeaders() {
		return false
	}

	if config.TrustForwarded {
		if forwarded := r.Header.Get("Forwarded"); forwarded != "" {
			if proto := parseForwardedProto(forwarded); proto != "" {
				return strings.EqualFold(proto, "https")
			}
		}
	}

	if config.TrustXForwardedProto {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			return strings.EqualFold(getLeftmost(proto), "https")
		}
	}

	return false
}

// getLeftmost extracts the leftmost value from a comma-separated header.
// The leftmost value is closest to the client.
func getLeftmost(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}

// parseForwardedProto returns the proto parameter of the leftmost RFC 7239
// Forwarded entry, e.g. "for=192.0.2.60;proto=https;host=api.example.com".
func parseForwardedProto(forwarded string) string {
	for _, part := range strings.Split(getLeftmost(forwarded), ";") {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if found && strings.EqualFold(name, "proto") {
			return strings.Trim(value, `"`)
		}
	}
	return ""
}
