package validator

import (
	"errors"
	"fmt"
)

// ErrTokenInvalid matches every validation failure caused by the token
// itself, as opposed to a broken verification setup.
var ErrTokenInvalid = errors.New("token invalid")

// FailureKind classifies why a token was not accepted.
type FailureKind int

const (
	// Malformed tokens cannot be decoded or lack a subject.
	Malformed FailureKind = iota + 1
	// BadSignature tokens do not verify against the trust anchor.
	BadSignature
	// IssuerMismatch tokens carry an unexpected "iss" claim.
	IssuerMismatch
	// Expired tokens are outside their exp/nbf/iat window.
	Expired
	// ConsumerError means the verification capability itself failed:
	// the delegated consumer is missing, unavailable or timed out.
	ConsumerError
)

// String returns the machine-readable failure code.
func (k FailureKind) String() string {
	switch k {
	case Malformed:
		return "token_malformed"
	case BadSignature:
		return "invalid_signature"
	case IssuerMismatch:
		return "invalid_issuer"
	case Expired:
		return "token_expired"
	case ConsumerError:
		return "consumer_error"
	default:
		return "unknown"
	}
}

// Unauthenticated reports whether the failure is the caller's fault
// rather than a deployment defect.
func (k FailureKind) Unauthenticated() bool {
	return k != ConsumerError
}

// Error is returned by Validate for every rejected token.
type Error struct {
	Kind FailureKind
	Err  error
}

func newError(kind FailureKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrTokenInvalid for every kind except ConsumerError.
func (e *Error) Is(target error) bool {
	return target == ErrTokenInvalid && e.Kind.Unauthenticated()
}

// KindOf extracts the FailureKind of err. Errors that did not come from
// this package count as Malformed.
func KindOf(err error) FailureKind {
	var validationErr *Error
	if errors.As(err, &validationErr) {
		return validationErr.Kind
	}
	return Malformed
}
