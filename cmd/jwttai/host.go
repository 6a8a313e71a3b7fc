package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	jwttai "github.com/cicsdev/go-jwt-tai"
	"github.com/cicsdev/go-jwt-tai/config"
	"github.com/cicsdev/go-jwt-tai/jwks"
	"github.com/cicsdev/go-jwt-tai/keystore"
	"github.com/cicsdev/go-jwt-tai/trust"
	"github.com/cicsdev/go-jwt-tai/validator"
)

// host is an interceptor wired from configuration, with the consumer
// registry its delegated key sources resolve against.
type host struct {
	cfg          *config.Config
	interceptor  *jwttai.Interceptor
	registry     *trust.Registry
	keySource    keystore.Config
	keystoreOpts []keystore.Option
	closers      []func() error
}

func newHost(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...jwttai.Option) (*host, error) {
	keySource, err := cfg.KeySource.ToKeystore()
	if err != nil {
		return nil, err
	}

	h := &host{
		cfg:       cfg,
		registry:  trust.NewRegistry(),
		keySource: keySource,
	}

	if err := h.registerJWKS(ctx, cfg.JWKS); err != nil {
		_ = h.Close()
		return nil, err
	}

	validatorOpts, err := cfg.Interceptor.ValidatorOptions()
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	v, err := validator.New(validatorOpts...)
	if err != nil {
		_ = h.Close()
		return nil, err
	}

	if cfg.Interceptor.BaseDir != "" {
		h.keystoreOpts = append(h.keystoreOpts, keystore.WithBaseDir(cfg.Interceptor.BaseDir))
	}

	interceptorOpts := []jwttai.Option{
		jwttai.WithValidator(v),
		jwttai.WithResolver(h.registry),
		jwttai.WithKeystoreOptions(h.keystoreOpts...),
		jwttai.WithLogger(jwttai.NewZerologLogger(logger)),
		jwttai.WithTrustedProxies(&jwttai.TrustedProxyConfig{
			TrustXForwardedProto: cfg.Interceptor.TrustXForwardedProto,
			TrustForwarded:       cfg.Interceptor.TrustForwarded,
		}),
	}
	if len(cfg.Interceptor.ExclusionURLs) > 0 {
		interceptorOpts = append(interceptorOpts, jwttai.WithExclusionURLs(cfg.Interceptor.ExclusionURLs))
	}
	interceptorOpts = append(interceptorOpts, opts...)

	i, err := jwttai.New(interceptorOpts...)
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	h.interceptor = i
	h.closers = append(h.closers, i.Close)

	return h, nil
}

func (h *host) registerJWKS(ctx context.Context, cfg config.JWKSConfig) error {
	if !cfg.Enabled() {
		return nil
	}

	providerOpts := []any{
		jwks.WithCacheTTL(cfg.CacheTTL),
		jwks.WithCustomClient(&http.Client{Timeout: 10 * time.Second}),
	}
	if cfg.IssuerURL != "" {
		issuerURL, err := url.Parse(cfg.IssuerURL)
		if err != nil {
			return fmt.Errorf("jwks.issuer_url: %w", err)
		}
		providerOpts = append(providerOpts, jwks.WithIssuerURL(issuerURL))
	}
	if cfg.URI != "" {
		uri, err := url.Parse(cfg.URI)
		if err != nil {
			return fmt.Errorf("jwks.uri: %w", err)
		}
		providerOpts = append(providerOpts, jwks.WithCustomJWKSURI(uri))
	}
	if cfg.Redis {
		cache, err := jwks.NewRedisCacheFromEnv(ctx, &http.Client{Timeout: 10 * time.Second})
		if err != nil {
			return fmt.Errorf("jwks cache: %w", err)
		}
		h.closers = append(h.closers, cache.Close)
		providerOpts = append(providerOpts, jwks.WithCache(cache))
	}

	provider, err := jwks.NewCachingProvider(providerOpts...)
	if err != nil {
		return fmt.Errorf("jwks provider: %w", err)
	}
	consumer, err := jwks.NewConsumer(provider)
	if err != nil {
		return err
	}
	return h.registry.Register(cfg.Consumer, consumer)
}

// initialize loads the configured key source into the interceptor.
func (h *host) initialize(ctx context.Context) error {
	return h.interceptor.Initialize(ctx, h.keySource)
}

// loadAnchor loads the key source on its own, without publishing it.
func (h *host) loadAnchor(ctx context.Context) (*trust.Anchor, error) {
	opts := append([]keystore.Option{keystore.WithResolver(h.registry)}, h.keystoreOpts...)
	return keystore.Load(ctx, h.keySource, opts...)
}

// watch reloads a file key source when it changes on disk.
func (h *host) watch(ctx context.Context) error {
	if h.keySource.Kind != keystore.SourceFileKeystore {
		return nil
	}
	path := keystore.ResolveLocation(h.cfg.Interceptor.BaseDir, h.keySource.Location)
	return h.interceptor.WatchKeySource(ctx, path, jwttai.DefaultWatchDebounce)
}

func (h *host) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}
