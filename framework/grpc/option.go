package jwtgrpc

import (
	"context"
	"errors"

	jwttai "github.com/cicsdev/go-jwt-tai"
)

// Option configures the JWT interceptor.
type Option func(*JWTInterceptor) error

// WithErrorHandler sets a custom error handler function.
// Default is DefaultErrorHandler which maps verdicts to gRPC status codes.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(i *JWTInterceptor) error {
		if handler == nil {
			return errors.New("error handler cannot be nil")
		}
		i.errorHandler = handler
		return nil
	}
}

// WithExcludedMethods skips trust association for the given full method
// names, e.g. "/grpc.health.v1.Health/Check".
func WithExcludedMethods(methods ...string) Option {
	return func(i *JWTInterceptor) error {
		for _, method := range methods {
			i.excludedMethods[method] = true
		}
		return nil
	}
}

// WithTransportSecurity replaces PeerTLS as the check for a secure
// transport, for servers behind a TLS terminating mesh sidecar.
func WithTransportSecurity(isSecure func(ctx context.Context) bool) Option {
	return func(i *JWTInterceptor) error {
		if isSecure == nil {
			return errors.New("transport security check cannot be nil")
		}
		i.isSecure = isSecure
		return nil
	}
}

// WithLogger sets an optional logger for the adapter.
func WithLogger(logger jwttai.Logger) Option {
	return func(i *JWTInterceptor) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		i.logger = logger
		return nil
	}
}
