// Package core provides the framework-agnostic trust association logic that
// transport adapters (net/http, gin, echo, gRPC) wrap.
//
// The Core decides whether a request is a bearer token request it should
// handle (IsTarget) and, if so, turns it into a Verdict (EstablishTrust).
package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cicsdev/go-jwt-tai/keystore"
	"github.com/cicsdev/go-jwt-tai/trust"
	"github.com/cicsdev/go-jwt-tai/validator"
)

// TokenValidator verifies a raw token against a trust anchor.
// *validator.Validator implements it.
type TokenValidator interface {
	Validate(ctx context.Context, token string, anchor *trust.Anchor) (*validator.Claims, error)
}

// Loader turns key source configuration into a trust anchor.
// keystore.Load is the default.
type Loader func(ctx context.Context, cfg keystore.Config, opts ...keystore.Option) (*trust.Anchor, error)

// Logger defines an optional logging interface for the core.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Request is the view of an inbound request the core needs.
type Request interface {
	// IsSecure reports whether the request arrived over a secure transport.
	IsSecure() bool
	// Header returns the first value of the named header, or "".
	Header(name string) string
}

// Core is the framework-agnostic interceptor engine.
//
// Request handling reads the published snapshot without locking.
// Initialize is serialized and replaces the snapshot wholesale.
type Core struct {
	validator    TokenValidator
	loader       Loader
	keystoreOpts []keystore.Option
	logger       Logger

	initMu   sync.Mutex
	snapshot atomic.Pointer[snapshot]
}

// EstablishTrust validates the bearer token on req and returns the verdict.
//
// An uninitialized core never validates and returns NotIntercepted. A
// header that passed IsTarget but does not split into exactly a scheme and
// a token is Rejected as Malformed. No error escapes: every failure is
// expressed in the returned Verdict.
func (c *Core) EstablishTrust(ctx context.Context, req Request) Verdict {
	snap := c.current()
	if snap.state != StateInitialized {
		c.debug("Interceptor not initialized, request not intercepted")
		return NotIntercepted()
	}

	token, err := BearerToken(req.Header(AuthorizationHeader))
	if err != nil {
		c.warn("Rejecting request with malformed authorization header", "error", err)
		return Rejected(validator.Malformed, err)
	}

	start := time.Now()
	claims, err := c.validator.Validate(ctx, token, snap.anchor)
	duration := time.Since(start)

	if err != nil {
		kind := validator.KindOf(err)
		if kind.Unauthenticated() {
			c.warn("Token validation failed", "failure", kind.String(), "error", err, "duration", duration)
		} else {
			c.error("Trust anchor could not verify token", "failure", kind.String(), "source", snap.anchor.Source(), "error", err, "duration", duration)
		}
		return Rejected(kind, err)
	}

	if claims == nil || claims.Subject == "" {
		c.warn("Validated token carries no identity")
		return Rejected(validator.Malformed, ErrIdentityEmpty)
	}

	c.debug("Token validated successfully", "identity", claims.Subject, "duration", duration)
	return Authenticated(claims)
}

func (c *Core) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Core) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Core) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Core) error(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
