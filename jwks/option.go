package jwks

import (
	"errors"
	"net/http"
	"net/url"
	"time"
)

// ProviderOption configures a Provider. CachingProvider accepts them too.
type ProviderOption func(*Provider) error

// WithIssuerURL names the issuer whose discovery document yields the JWKS
// URI.
func WithIssuerURL(issuerURL *url.URL) ProviderOption {
	return func(p *Provider) error {
		if issuerURL == nil {
			return errors.New("issuer URL cannot be nil")
		}
		p.IssuerURL = issuerURL
		return nil
	}
}

// WithCustomJWKSURI fetches keys from jwksURI and skips discovery.
func WithCustomJWKSURI(jwksURI *url.URL) ProviderOption {
	return func(p *Provider) error {
		if jwksURI == nil {
			return errors.New("custom JWKS URI cannot be nil")
		}
		p.CustomJWKSURI = jwksURI
		return nil
	}
}

// WithCustomClient replaces the default client, which times out after 30s.
func WithCustomClient(c *http.Client) ProviderOption {
	return func(p *Provider) error {
		if c == nil {
			return errors.New("HTTP client cannot be nil")
		}
		p.Client = c
		return nil
	}
}

// CachingProviderOption configures only a CachingProvider.
type CachingProviderOption func(*cachingProviderConfig) error

type cachingProviderConfig struct {
	issuerURL     *url.URL
	customJWKSURI *url.URL
	httpClient    *http.Client
	cacheTTL      time.Duration
	cache         Cache
}

// WithCacheTTL sets how long a fetched key set is served before it is
// fetched again. Zero selects DefaultCacheTTL. A longer Cache-Control
// max-age from the JWKS endpoint wins.
func WithCacheTTL(ttl time.Duration) CachingProviderOption {
	return func(c *cachingProviderConfig) error {
		switch {
		case ttl < 0:
			return errors.New("cache TTL cannot be negative")
		case ttl == 0:
			c.cacheTTL = DefaultCacheTTL
		default:
			c.cacheTTL = ttl
		}
		return nil
	}
}

// WithCache replaces the in-memory cache, e.g. with a RedisCache shared by
// several hosts. The cache then owns TTL handling and WithCacheTTL has no
// effect.
func WithCache(cache Cache) CachingProviderOption {
	return func(c *cachingProviderConfig) error {
		if cache == nil {
			return errors.New("cache cannot be nil")
		}
		c.cache = cache
		return nil
	}
}
