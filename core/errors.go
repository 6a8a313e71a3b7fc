package core

import "errors"

var (
	// ErrMalformedHeader is returned when the Authorization header is not
	// exactly "Bearer <token>".
	ErrMalformedHeader = errors.New("authorization header format must be Bearer {token}")

	// ErrIdentityEmpty is returned when a validated token yields no subject.
	ErrIdentityEmpty = errors.New("validated token carries no identity")

	// ErrAnchorNil is returned when a nil trust anchor is published.
	ErrAnchorNil = errors.New("trust anchor cannot be nil")

	// ErrIdentityNotFound is returned when no identity is stored in the context.
	ErrIdentityNotFound = errors.New("identity not found in context")

	// ErrClaimsNotFound is returned when claims cannot be retrieved from context.
	ErrClaimsNotFound = errors.New("claims not found in context")
)
