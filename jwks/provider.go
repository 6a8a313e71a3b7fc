package jwks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/cicsdev/go-jwt-tai/internal/oidc"
)

// DefaultCacheTTL is the refresh interval of a CachingProvider.
const DefaultCacheTTL = 15 * time.Minute

// maxJWKSSize bounds a JWKS response body. Real sets are a few KB.
const maxJWKSSize = 1 << 20

// Cache returns the key set published at a JWKS URI, fetching it when it
// holds no fresh copy.
type Cache interface {
	Get(ctx context.Context, jwksURI string) (jwk.Set, error)
}

// KeySetSource supplies the key set a Consumer verifies against.
type KeySetSource interface {
	KeySet(ctx context.Context) (jwk.Set, error)
}

// Provider fetches the JWKS of an issuer on every call. Use it for tools
// and tests; servers want a CachingProvider.
type Provider struct {
	IssuerURL     *url.URL // discovery base, unless CustomJWKSURI is set
	CustomJWKSURI *url.URL
	Client        *http.Client
}

// NewProvider returns a Provider. WithIssuerURL or WithCustomJWKSURI is
// required.
func NewProvider(opts ...ProviderOption) (*Provider, error) {
	p := &Provider{Client: newHTTPClient()}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	if p.IssuerURL == nil && p.CustomJWKSURI == nil {
		return nil, errMissingIssuer
	}
	return p, nil
}

// KeySet fetches the current key set.
func (p *Provider) KeySet(ctx context.Context) (jwk.Set, error) {
	uri, err := resolveJWKSURI(ctx, p.Client, p.IssuerURL, p.CustomJWKSURI)
	if err != nil {
		return nil, err
	}

	set, _, err := fetchKeySet(ctx, p.Client, uri)
	if err != nil {
		return nil, fmt.Errorf("could not fetch JWKS: %w", err)
	}
	return set, nil
}

var errMissingIssuer = errors.New("issuer URL is required (use WithIssuerURL or WithCustomJWKSURI)")

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// resolveJWKSURI returns custom when set and otherwise asks the issuer's
// discovery document.
func resolveJWKSURI(ctx context.Context, client *http.Client, issuer, custom *url.URL) (string, error) {
	if custom != nil {
		return custom.String(), nil
	}

	endpoints, err := oidc.GetWellKnownEndpointsFromIssuerURL(ctx, client, *issuer, issuer.String())
	if err != nil {
		return "", fmt.Errorf("failed to discover JWKS URI: %w", err)
	}
	if _, err := url.Parse(endpoints.JWKSURI); err != nil {
		return "", fmt.Errorf("discovery document carries an invalid jwks_uri: %w", err)
	}
	return endpoints.JWKSURI, nil
}

// fetchKeySet GETs a JWKS. The returned duration is the max-age the
// response allows, or 0.
func fetchKeySet(ctx context.Context, client *http.Client, jwksURI string) (jwk.Set, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURI, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building JWKS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("requesting JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("request returned status %d, expected 200", resp.StatusCode)
	}

	set, err := jwk.ParseReader(io.LimitReader(resp.Body, maxJWKSSize))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	return set, parseCacheControl(resp.Header.Get("Cache-Control")), nil
}

// parseCacheControl extracts max-age from a Cache-Control header. It
// returns 0 when max-age is absent, invalid, below one second or above
// seven days.
func parseCacheControl(cacheControl string) time.Duration {
	const (
		maxAgePrefix = "max-age="
		minTTL       = 1 * time.Second
		maxTTL       = 7 * 24 * time.Hour
	)

	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, maxAgePrefix) {
			continue
		}

		seconds, err := strconv.ParseInt(strings.TrimPrefix(directive, maxAgePrefix), 10, 64)
		if err != nil || seconds <= 0 {
			continue
		}

		ttl := time.Duration(seconds) * time.Second
		if ttl < minTTL || ttl > maxTTL {
			return 0
		}
		return ttl
	}

	return 0
}

// effectiveTTL lets a longer Cache-Control max-age extend the configured TTL.
func effectiveTTL(configured, cacheTTL time.Duration) time.Duration {
	if cacheTTL > 0 && configured < cacheTTL {
		return cacheTTL
	}
	return configured
}

// memoryCache is the default Cache. A fresh entry is served without
// locking; once 80% of its TTL has passed one request triggers a refresh
// in the background while the old set keeps being served.
type memoryCache struct {
	client *http.Client
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	fetch      chan struct{} // one-slot lock serializing fetches of one URI
	snapshot   atomic.Pointer[entrySnapshot]
	refreshing atomic.Bool
}

// lock acquires the fetch slot or gives up when ctx is done.
func (e *cacheEntry) lock(ctx context.Context) error {
	select {
	case e.fetch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *cacheEntry) unlock() { <-e.fetch }

type entrySnapshot struct {
	set       jwk.Set
	expiresAt time.Time
	refreshAt time.Time
}

func newMemoryCache(client *http.Client, ttl time.Duration) *memoryCache {
	return &memoryCache{
		client:  client,
		ttl:     ttl,
		entries: make(map[string]*cacheEntry),
	}
}

func (c *memoryCache) entry(jwksURI string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[jwksURI]
	if !ok {
		e = &cacheEntry{fetch: make(chan struct{}, 1)}
		c.entries[jwksURI] = e
	}
	return e
}

func (c *memoryCache) Get(ctx context.Context, jwksURI string) (jwk.Set, error) {
	e := c.entry(jwksURI)

	if snap := e.snapshot.Load(); snap != nil && time.Now().Before(snap.expiresAt) {
		if time.Now().After(snap.refreshAt) && e.refreshing.CompareAndSwap(false, true) {
			go c.refresh(jwksURI, e)
		}
		return snap.set, nil
	}

	if err := e.lock(ctx); err != nil {
		return nil, fmt.Errorf("could not fetch JWKS: waiting for another fetch: %w", err)
	}
	defer e.unlock()

	// A concurrent caller may have filled the entry while we waited.
	if snap := e.snapshot.Load(); snap != nil && time.Now().Before(snap.expiresAt) {
		return snap.set, nil
	}

	set, maxAge, err := fetchKeySet(ctx, c.client, jwksURI)
	if err != nil {
		return nil, fmt.Errorf("could not fetch JWKS: %w", err)
	}
	c.store(e, set, maxAge)
	return set, nil
}

func (c *memoryCache) store(e *cacheEntry, set jwk.Set, maxAge time.Duration) {
	ttl := effectiveTTL(c.ttl, maxAge)
	now := time.Now()
	e.snapshot.Store(&entrySnapshot{
		set:       set,
		expiresAt: now.Add(ttl),
		refreshAt: now.Add(ttl * 4 / 5),
	})
}

// refresh replaces the entry's set. A failed refresh keeps the old set
// until it expires.
func (c *memoryCache) refresh(jwksURI string, e *cacheEntry) {
	defer e.refreshing.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.lock(ctx); err != nil {
		return
	}
	defer e.unlock()

	set, maxAge, err := fetchKeySet(ctx, c.client, jwksURI)
	if err == nil {
		c.store(e, set, maxAge)
	}
}

// CachingProvider serves the JWKS of an issuer through a Cache. The JWKS URI
// is discovered on first use and kept; a failed discovery is retried on the
// next call.
type CachingProvider struct {
	cache  Cache
	issuer *url.URL
	client *http.Client

	uriMu sync.Mutex
	uri   string
}

// NewCachingProvider returns a CachingProvider. It takes ProviderOption and
// CachingProviderOption values alike:
//
//	provider, err := jwks.NewCachingProvider(
//	    jwks.WithIssuerURL(issuerURL),
//	    jwks.WithCacheTTL(5*time.Minute),
//	)
func NewCachingProvider(opts ...any) (*CachingProvider, error) {
	cfg := &cachingProviderConfig{
		httpClient: newHTTPClient(),
		cacheTTL:   DefaultCacheTTL,
	}

	for _, opt := range opts {
		if err := cfg.apply(opt); err != nil {
			return nil, err
		}
	}
	if cfg.issuerURL == nil && cfg.customJWKSURI == nil {
		return nil, errMissingIssuer
	}

	cp := &CachingProvider{
		cache:  cfg.cache,
		issuer: cfg.issuerURL,
		client: cfg.httpClient,
	}
	if cfg.customJWKSURI != nil {
		cp.uri = cfg.customJWKSURI.String()
	}
	if cp.cache == nil {
		cp.cache = newMemoryCache(cfg.httpClient, cfg.cacheTTL)
	}
	return cp, nil
}

func (cfg *cachingProviderConfig) apply(opt any) error {
	switch o := opt.(type) {
	case CachingProviderOption:
		if err := o(cfg); err != nil {
			return fmt.Errorf("invalid option: %w", err)
		}
	case ProviderOption:
		var p Provider
		if err := o(&p); err != nil {
			return fmt.Errorf("invalid option: %w", err)
		}
		if p.IssuerURL != nil {
			cfg.issuerURL = p.IssuerURL
		}
		if p.CustomJWKSURI != nil {
			cfg.customJWKSURI = p.CustomJWKSURI
		}
		if p.Client != nil {
			cfg.httpClient = p.Client
		}
	default:
		return fmt.Errorf("invalid option type: %T (must be ProviderOption or CachingProviderOption)", opt)
	}
	return nil
}

func (c *CachingProvider) jwksURI(ctx context.Context) (string, error) {
	c.uriMu.Lock()
	defer c.uriMu.Unlock()

	if c.uri != "" {
		return c.uri, nil
	}
	uri, err := resolveJWKSURI(ctx, c.client, c.issuer, nil)
	if err != nil {
		return "", err
	}
	c.uri = uri
	return uri, nil
}

// KeySet returns the cached key set, fetching it when needed. It is safe
// for concurrent use.
func (c *CachingProvider) KeySet(ctx context.Context) (jwk.Set, error) {
	uri, err := c.jwksURI(ctx)
	if err != nil {
		return nil, err
	}
	return c.cache.Get(ctx, uri)
}
