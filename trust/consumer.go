package trust

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
)

var (
	// ErrNoKey is returned when an anchor is built without key material.
	ErrNoKey = errors.New("no key material")

	// ErrSymmetricKey is returned when a shared secret is offered as a trust anchor.
	ErrSymmetricKey = errors.New("symmetric keys cannot be used as a trust anchor")

	// ErrSignatureMismatch is returned when a token signature does not verify.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrConsumerNotFound is returned when a delegated consumer name is not registered.
	ErrConsumerNotFound = errors.New("verification consumer not found")

	// ErrConsumerUnavailable is returned when a consumer cannot answer,
	// for example because its key source is unreachable or it timed out.
	ErrConsumerUnavailable = errors.New("verification consumer unavailable")
)

// Consumer is a host-managed verification capability.
//
// Verify checks the JWS compact token and returns the verified payload. It
// must return an error wrapping ErrSignatureMismatch when the signature is
// wrong, and must return promptly once ctx is done.
type Consumer interface {
	Verify(ctx context.Context, token []byte) ([]byte, error)
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(ctx context.Context, token []byte) ([]byte, error)

// Verify calls f(ctx, token).
func (f ConsumerFunc) Verify(ctx context.Context, token []byte) ([]byte, error) {
	return f(ctx, token)
}

// Resolver looks up consumers by name.
type Resolver interface {
	Resolve(name string) (Consumer, error)
}

// Registry is a concurrency-safe Resolver hosts register consumers into.
type Registry struct {
	mu        sync.RWMutex
	consumers map[string]Consumer
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{consumers: make(map[string]Consumer)}
}

// Register adds or replaces the consumer stored under name.
func (r *Registry) Register(name string, consumer Consumer) error {
	if name == "" {
		return errors.New("consumer name cannot be empty")
	}
	if consumer == nil {
		return errors.New("consumer cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumers[name] = consumer
	return nil
}

// Unregister removes the consumer stored under name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.consumers, name)
}

// Resolve returns the consumer registered under name.
func (r *Registry) Resolve(name string) (Consumer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	consumer, ok := r.consumers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrConsumerNotFound, name)
	}
	return consumer, nil
}

// Names lists the registered consumer names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.consumers))
	for name := range r.consumers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeySetConsumer verifies tokens against a fixed JWK set.
type KeySetConsumer struct {
	set jwk.Set
}

// NewKeySetConsumer returns a consumer for set.
func NewKeySetConsumer(set jwk.Set) (*KeySetConsumer, error) {
	if set == nil || set.Len() == 0 {
		return nil, errors.New("key set cannot be empty")
	}
	return &KeySetConsumer{set: set}, nil
}

// Verify implements Consumer.
func (c *KeySetConsumer) Verify(_ context.Context, token []byte) ([]byte, error) {
	return VerifyWithKeySet(token, c.set)
}

// VerifyWithKeySet verifies token with any matching key of set. The key is
// chosen by "kid" when the token carries one; keys without an "alg" field
// are tried with the algorithms their type allows.
func VerifyWithKeySet(token []byte, set jwk.Set) ([]byte, error) {
	payload, err := jws.Verify(token, jws.WithKeySet(set,
		jws.WithRequireKid(false),
		jws.WithInferAlgorithmFromKey(true),
	))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureMismatch, err)
	}
	return payload, nil
}
