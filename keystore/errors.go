package keystore

import "errors"

var (
	// ErrAliasNotFound is returned when the keystore has no entry under the alias.
	ErrAliasNotFound = errors.New("alias not found in keystore")

	// ErrNoPublicKey is returned when an entry carries no usable public key.
	ErrNoPublicKey = errors.New("entry has no public key")

	// ErrUnsupportedFormat is returned for an unknown keystore format.
	ErrUnsupportedFormat = errors.New("unsupported keystore format")

	// ErrUnknownSourceKind is returned for an unknown key source kind.
	ErrUnknownSourceKind = errors.New("unknown key source kind")

	// ErrLocationEmpty is returned when a file keystore has no location.
	ErrLocationEmpty = errors.New("keystore location cannot be empty")

	// ErrConsumerNameEmpty is returned when a delegated source has no consumer name.
	ErrConsumerNameEmpty = errors.New("consumer name cannot be empty")

	// ErrResolverMissing is returned when a delegated source is loaded
	// without a consumer resolver.
	ErrResolverMissing = errors.New("consumer resolver is required for delegated sources")
)

// LoadError reports a key source that could not be turned into a trust
// anchor. It is a configuration error: the interceptor stays uninitialized.
type LoadError struct {
	Source string
	Err    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return "keystore: could not load " + e.Source + ": " + e.Err.Error()
}

// Unwrap returns the cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}
