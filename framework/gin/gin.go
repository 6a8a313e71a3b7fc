// Package jwtgin adapts a jwttai.Interceptor to Gin.
package jwtgin

import (
	"errors"

	"github.com/gin-gonic/gin"

	jwttai "github.com/cicsdev/go-jwt-tai"
	"github.com/cicsdev/go-jwt-tai/core"
	"github.com/cicsdev/go-jwt-tai/validator"
)

// Gin context keys the identity and claims are stored under by default.
const (
	DefaultIdentityKey = "identity"
	DefaultClaimsKey   = "jwt"
)

var (
	ErrMissingIdentity = errors.New("no identity found in context")
	ErrMissingClaims   = errors.New("no JWT claims found in context")
	ErrInvalidClaims   = errors.New("invalid JWT claims type")
)

type config struct {
	errorHandler func(*gin.Context, error)
	identityKey  string
	claimsKey    string
}

// Option defines a functional option for configuring the middleware.
type Option func(*config)

// WithErrorHandler sets the handler for rejected requests. It must abort
// the context. err is always a *jwttai.RejectedError.
func WithErrorHandler(handler func(*gin.Context, error)) Option {
	return func(c *config) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithIdentityKey sets the Gin context key for the identity.
func WithIdentityKey(key string) Option {
	return func(c *config) { c.identityKey = key }
}

// WithClaimsKey sets the Gin context key for the validated claims.
func WithClaimsKey(key string) Option {
	return func(c *config) { c.claimsKey = key }
}

// New returns Gin middleware that establishes trust with interceptor.
// Requests the interceptor does not handle continue unchanged.
func New(interceptor *jwttai.Interceptor, opts ...Option) gin.HandlerFunc {
	cfg := &config{
		errorHandler: DefaultErrorHandler,
		identityKey:  DefaultIdentityKey,
		claimsKey:    DefaultClaimsKey,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		verdict := interceptor.EstablishTrust(c.Request)

		switch verdict.Outcome {
		case core.OutcomeAuthenticated:
			c.Request = c.Request.WithContext(core.WithVerdict(c.Request.Context(), verdict))
			c.Set(cfg.identityKey, verdict.Identity)
			c.Set(cfg.claimsKey, verdict.Claims)
			c.Next()
		case core.OutcomeRejected:
			cfg.errorHandler(c, &jwttai.RejectedError{Verdict: verdict})
			c.Abort()
		default:
			c.Next()
		}
	}
}

// DefaultErrorHandler aborts with the same status, challenge and JSON body
// as jwttai.DefaultErrorHandler.
func DefaultErrorHandler(c *gin.Context, err error) {
	status, response := jwttai.NewErrorResponse(err)
	if challenge := jwttai.Challenge(status, response); challenge != "" {
		c.Header("WWW-Authenticate", challenge)
	}
	c.AbortWithStatusJSON(status, response)
}

// GetIdentity returns the identity stored under DefaultIdentityKey, or
// under key when given.
func GetIdentity(c *gin.Context, key ...string) (string, error) {
	k := DefaultIdentityKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	identity := c.GetString(k)
	if identity == "" {
		return "", ErrMissingIdentity
	}
	return identity, nil
}

// GetClaims returns the claims stored under contextKey, or under
// DefaultClaimsKey when contextKey is empty.
func GetClaims(c *gin.Context, contextKey string) (*validator.Claims, error) {
	if contextKey == "" {
		contextKey = DefaultClaimsKey
	}
	claims, exists := c.Get(contextKey)
	if !exists {
		return nil, ErrMissingClaims
	}

	validatedClaims, ok := claims.(*validator.Claims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	return validatedClaims, nil
}
