package core

import (
	"errors"

	"github.com/cicsdev/go-jwt-tai/keystore"
	"github.com/cicsdev/go-jwt-tai/validator"
)

// Option is a function that configures the Core.
// Options return errors to enable validation during construction.
type Option func(*Core) error

// New creates an uninitialized Core.
//
// Without WithValidator the core validates with validator.New() defaults
// (issuer "idg", every supported asymmetric algorithm).
//
// Example:
//
//	c, err := core.New(
//	    core.WithLogger(slog.Default()),
//	    core.WithKeystoreOptions(keystore.WithBaseDir("/etc/security")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Initialize(ctx, keystore.DefaultConfig()); err != nil {
//	    log.Print(err) // c stays uninitialized and intercepts nothing
//	}
func New(opts ...Option) (*Core, error) {
	c := &Core{
		loader: keystore.Load,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.validator == nil {
		v, err := validator.New()
		if err != nil {
			return nil, err
		}
		c.validator = v
	}

	return c, nil
}

// WithValidator sets the token validator.
func WithValidator(v TokenValidator) Option {
	return func(c *Core) error {
		if v == nil {
			return errors.New("validator cannot be nil")
		}
		c.validator = v
		return nil
	}
}

// WithLoader replaces keystore.Load, for hosts with their own key sources.
func WithLoader(loader Loader) Option {
	return func(c *Core) error {
		if loader == nil {
			return errors.New("loader cannot be nil")
		}
		c.loader = loader
		return nil
	}
}

// WithKeystoreOptions passes options to every Loader call, such as
// keystore.WithBaseDir or keystore.WithResolver.
func WithKeystoreOptions(opts ...keystore.Option) Option {
	return func(c *Core) error {
		c.keystoreOpts = append(c.keystoreOpts, opts...)
		return nil
	}
}

// WithLogger sets an optional logger for the Core.
//
// The logger receives lifecycle events at info/error level and per-request
// outcomes at debug/warn level. Tokens and passwords are never logged;
// Authorization headers are redacted.
func WithLogger(logger Logger) Option {
	return func(c *Core) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}
