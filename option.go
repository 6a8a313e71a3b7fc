package jwttai

import (
	"errors"
	"net/http"

	"github.com/cicsdev/go-jwt-tai/core"
	"github.com/cicsdev/go-jwt-tai/keystore"
	"github.com/cicsdev/go-jwt-tai/trust"
	"github.com/cicsdev/go-jwt-tai/validator"
)

// Option configures the Interceptor.
// Returns error for validation failures.
type Option func(*Interceptor) error

// WithValidator sets the validator used to check tokens.
//
// Default: validator.New() (issuer "idg", every asymmetric algorithm).
//
// Example:
//
//	v, err := validator.New(
//	    validator.WithIssuer("idg"),
//	    validator.WithAllowedClockSkew(30*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	interceptor, err := jwttai.New(jwttai.WithValidator(v))
func WithValidator(v *validator.Validator) Option {
	return func(i *Interceptor) error {
		if v == nil {
			return ErrValidatorNil
		}
		i.coreOpts = append(i.coreOpts, core.WithValidator(v))
		return nil
	}
}

// WithKeystoreOptions passes options to the key source loader on every
// Initialize, such as keystore.WithBaseDir.
func WithKeystoreOptions(opts ...keystore.Option) Option {
	return func(i *Interceptor) error {
		i.coreOpts = append(i.coreOpts, core.WithKeystoreOptions(opts...))
		return nil
	}
}

// WithResolver sets the registry delegated consumer sources are resolved in.
func WithResolver(resolver trust.Resolver) Option {
	return func(i *Interceptor) error {
		if resolver == nil {
			return ErrResolverNil
		}
		i.coreOpts = append(i.coreOpts, core.WithKeystoreOptions(keystore.WithResolver(resolver)))
		return nil
	}
}

// WithLoader replaces keystore.Load as the key source loader.
func WithLoader(loader core.Loader) Option {
	return func(i *Interceptor) error {
		if loader == nil {
			return ErrLoaderNil
		}
		i.coreOpts = append(i.coreOpts, core.WithLoader(loader))
		return nil
	}
}

// WithErrorHandler sets the handler called when a request is Rejected.
//
// Default: DefaultErrorHandler
func WithErrorHandler(h ErrorHandler) Option {
	return func(i *Interceptor) error {
		if h == nil {
			return ErrErrorHandlerNil
		}
		i.errorHandler = h
		return nil
	}
}

// WithExclusionURLs configures URLs that are never intercepted.
// URLs can be full URLs or just paths.
func WithExclusionURLs(exclusions []string) Option {
	return func(i *Interceptor) error {
		if len(exclusions) == 0 {
			return ErrExclusionURLsEmpty
		}
		i.exclusionURLHandler = func(r *http.Request) bool {
			requestFullURL := r.URL.String()
			requestPath := r.URL.Path

			for _, exclusion := range exclusions {
				if requestFullURL == exclusion || requestPath == exclusion {
					return true
				}
			}
			return false
		}
		return nil
	}
}

// WithLogger sets an optional logger for the interceptor.
// The logger will be used throughout the flow in both the interceptor and core.
//
// The logger interface is compatible with log/slog.Logger and similar loggers.
//
// Example:
//
//	interceptor, err := jwttai.New(
//	    jwttai.WithLogger(slog.Default()),
//	)
func WithLogger(logger Logger) Option {
	return func(i *Interceptor) error {
		if logger == nil {
			return ErrLoggerNil
		}
		i.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics sink.
//
// Default: NoopMetrics
func WithMetrics(metrics Metrics) Option {
	return func(i *Interceptor) error {
		if metrics == nil {
			return ErrMetricsNil
		}
		i.metrics = metrics
		return nil
	}
}

// WithTracer sets the tracer.
//
// Default: NoopTracer
func WithTracer(tracer Tracer) Option {
	return func(i *Interceptor) error {
		if tracer == nil {
			return ErrTracerNil
		}
		i.tracer = tracer
		return nil
	}
}

// Sentinel errors for configuration validation
var (
	ErrValidatorNil       = errors.New("validator cannot be nil")
	ErrResolverNil        = errors.New("resolver cannot be nil")
	ErrLoaderNil          = errors.New("loader cannot be nil")
	ErrErrorHandlerNil    = errors.New("errorHandler cannot be nil")
	ErrExclusionURLsEmpty = errors.New("exclusion URLs list cannot be empty")
	ErrLoggerNil          = errors.New("logger cannot be nil")
	ErrMetricsNil         = errors.New("metrics cannot be nil")
	ErrTracerNil          = errors.New("tracer cannot be nil")
)
