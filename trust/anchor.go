// Package trust holds the trust anchor that bearer token signatures are
// checked against, and the named verification consumers a host can
// delegate signature checks to.
//
// An Anchor is immutable once built. Hosts that rotate keys build a new
// Anchor and publish it wholesale; nothing in this package mutates an
// Anchor after construction, so it is safe to share across goroutines.
package trust

import (
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
)

// DefaultConsumerTimeout bounds a single delegated verification call.
const DefaultConsumerTimeout = 5 * time.Second

// Kind identifies how an Anchor verifies signatures.
type Kind int

const (
	// KindPublicKey anchors verify locally with a public key.
	KindPublicKey Kind = iota + 1
	// KindDelegated anchors hand verification to a named Consumer.
	KindDelegated
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindPublicKey:
		return "public_key"
	case KindDelegated:
		return "delegated"
	default:
		return "unknown"
	}
}

// Anchor is the verification capability for one interceptor instance.
type Anchor struct {
	kind     Kind
	source   string
	key      jwk.Key
	consumer string
	resolver Resolver
	timeout  time.Duration
}

// NewKeyAnchor builds an anchor around a public key.
//
// raw may be a crypto.PublicKey (*rsa.PublicKey, *ecdsa.PublicKey,
// ed25519.PublicKey), a private key of those families, or a jwk.Key. Private
// material is reduced to its public half; symmetric keys are rejected.
func NewKeyAnchor(raw any, source string) (*Anchor, error) {
	if raw == nil {
		return nil, ErrNoKey
	}

	key, ok := raw.(jwk.Key)
	if !ok {
		imported, err := jwk.Import(raw)
		if err != nil {
			return nil, fmt.Errorf("could not import key material: %w", err)
		}
		key = imported
	}

	if _, symmetric := key.(jwk.SymmetricKey); symmetric {
		return nil, ErrSymmetricKey
	}

	public, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, fmt.Errorf("could not derive public key: %w", err)
	}

	return &Anchor{
		kind:   KindPublicKey,
		source: source,
		key:    public,
	}, nil
}

// NewDelegatedAnchor builds an anchor that resolves the named consumer
// through resolver on every verification. A zero timeout selects
// DefaultConsumerTimeout.
func NewDelegatedAnchor(name string, resolver Resolver, timeout time.Duration) (*Anchor, error) {
	if name == "" {
		return nil, errors.New("consumer name cannot be empty")
	}
	if resolver == nil {
		return nil, errors.New("consumer resolver cannot be nil")
	}
	if timeout < 0 {
		return nil, errors.New("consumer timeout cannot be negative")
	}
	if timeout == 0 {
		timeout = DefaultConsumerTimeout
	}

	return &Anchor{
		kind:     KindDelegated,
		source:   "consumer:" + name,
		consumer: name,
		resolver: resolver,
		timeout:  timeout,
	}, nil
}

// Kind reports how the anchor verifies signatures.
func (a *Anchor) Kind() Kind { return a.kind }

// Source describes where the anchor came from. It never contains secrets.
func (a *Anchor) Source() string { return a.source }

// ConsumerName is the delegated consumer name, empty for key anchors.
func (a *Anchor) ConsumerName() string { return a.consumer }

// KeyType reports the JWK key type ("RSA", "EC", "OKP") of a key anchor.
func (a *Anchor) KeyType() string {
	if a.key == nil {
		return ""
	}
	return a.key.KeyType().String()
}

// Thumbprint returns the base64url RFC 7638 SHA-256 thumbprint of a key
// anchor's public key.
func (a *Anchor) Thumbprint() (string, error) {
	if a.key == nil {
		return "", ErrNoKey
	}
	sum, err := a.key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}

// Verify checks the JWS compact token and returns its payload.
//
// Key anchors try the public key under each of algorithms. Delegated
// anchors resolve their consumer and call it under the anchor's timeout.
// Failures wrap ErrSignatureMismatch, ErrConsumerNotFound or
// ErrConsumerUnavailable.
func (a *Anchor) Verify(ctx context.Context, token []byte, algorithms []jwa.SignatureAlgorithm) ([]byte, error) {
	switch a.kind {
	case KindPublicKey:
		return a.verifyWithKey(token, algorithms)
	case KindDelegated:
		return a.verifyDelegated(ctx, token)
	default:
		return nil, fmt.Errorf("%w: anchor has no verification capability", ErrConsumerUnavailable)
	}
}

func (a *Anchor) verifyWithKey(token []byte, algorithms []jwa.SignatureAlgorithm) ([]byte, error) {
	if len(algorithms) == 0 {
		return nil, fmt.Errorf("%w: no signature algorithms allowed", ErrSignatureMismatch)
	}

	opts := make([]jws.VerifyOption, 0, len(algorithms))
	for _, alg := range algorithms {
		opts = append(opts, jws.WithKey(alg, a.key))
	}

	payload, err := jws.Verify(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureMismatch, err)
	}
	return payload, nil
}

func (a *Anchor) verifyDelegated(ctx context.Context, token []byte) ([]byte, error) {
	consumer, err := a.resolver.Resolve(a.consumer)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// Buffered so a consumer that ignores ctx can still finish after we
	// stop waiting.
	done := make(chan consumerResult, 1)
	go func() {
		payload, err := consumer.Verify(ctx, token)
		done <- consumerResult{payload: payload, err: err}
	}()

	var res consumerResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: consumer %q: %w", ErrConsumerUnavailable, a.consumer, ctx.Err())
	}

	if res.err == nil {
		// A result that lost the race with the deadline does not count.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: consumer %q: %w", ErrConsumerUnavailable, a.consumer, ctxErr)
		}
		return res.payload, nil
	}
	if errors.Is(res.err, ErrSignatureMismatch) || errors.Is(res.err, ErrConsumerUnavailable) {
		return nil, res.err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%w: consumer %q: %w", ErrConsumerUnavailable, a.consumer, ctxErr)
	}
	return nil, fmt.Errorf("%w: consumer %q: %w", ErrConsumerUnavailable, a.consumer, res.err)
}

type consumerResult struct {
	payload []byte
	err     error
}
