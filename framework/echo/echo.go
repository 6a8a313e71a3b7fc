// Package jwtecho adapts a jwttai.Interceptor to Echo.
package jwtecho

import (
	"github.com/labstack/echo/v4"

	jwttai "github.com/cicsdev/go-jwt-tai"
	"github.com/cicsdev/go-jwt-tai/core"
	"github.com/cicsdev/go-jwt-tai/validator"
)

// Echo context keys the identity and claims are stored under by default.
var (
	DefaultIdentityKey = "identity"
	DefaultClaimsKey   = "jwt"
)

// echoMiddlewareConfig holds all configuration for the middleware
type echoMiddlewareConfig struct {
	errorHandler func(echo.Context, error) error
	identityKey  string
	claimsKey    string
}

// Option is a function that configures the middleware
type Option func(*echoMiddlewareConfig)

// WithErrorHandler sets the handler for rejected requests. err is always a
// *jwttai.RejectedError; the returned error goes to Echo's HTTPErrorHandler.
func WithErrorHandler(handler func(echo.Context, error) error) Option {
	return func(config *echoMiddlewareConfig) {
		if handler != nil {
			config.errorHandler = handler
		}
	}
}

// WithIdentityKey sets a custom context key to store the identity
func WithIdentityKey(key string) Option {
	return func(config *echoMiddlewareConfig) {
		config.identityKey = key
	}
}

// WithClaimsKey sets a custom context key to store claims
func WithClaimsKey(key string) Option {
	return func(config *echoMiddlewareConfig) {
		config.claimsKey = key
	}
}

// New returns Echo middleware that establishes trust with interceptor.
func New(interceptor *jwttai.Interceptor, opts ...Option) echo.MiddlewareFunc {
	config := &echoMiddlewareConfig{
		errorHandler: DefaultErrorHandler,
		identityKey:  DefaultIdentityKey,
		claimsKey:    DefaultClaimsKey,
	}
	for _, opt := range opts {
		opt(config)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			verdict := interceptor.EstablishTrust(r)

			switch verdict.Outcome {
			case core.OutcomeAuthenticated:
				c.SetRequest(r.WithContext(core.WithVerdict(r.Context(), verdict)))
				c.Set(config.identityKey, verdict.Identity)
				c.Set(config.claimsKey, verdict.Claims)
				return next(c)
			case core.OutcomeRejected:
				return config.errorHandler(c, &jwttai.RejectedError{Verdict: verdict})
			default:
				return next(c)
			}
		}
	}
}

// DefaultErrorHandler responds with the same status, challenge and JSON
// body as jwttai.DefaultErrorHandler.
func DefaultErrorHandler(c echo.Context, err error) error {
	status, response := jwttai.NewErrorResponse(err)
	if challenge := jwttai.Challenge(status, response); challenge != "" {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, challenge)
	}
	return c.JSON(status, response)
}

// GetIdentity extracts the identity from the Echo context
func GetIdentity(c echo.Context, contextKey string) (string, bool) {
	identity, ok := c.Get(contextKey).(string)
	return identity, ok && identity != ""
}

// GetClaims extracts the JWT claims from the Echo context
func GetClaims(c echo.Context, contextKey string) (*validator.Claims, bool) {
	claims := c.Get(contextKey)
	if claims == nil {
		return nil, false
	}

	validatedClaims, ok := claims.(*validator.Claims)
	return validatedClaims, ok
}
