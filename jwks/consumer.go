package jwks

import (
	"context"
	"errors"
	"fmt"

	"github.com/cicsdev/go-jwt-tai/trust"
)

// Consumer verifies tokens against the key set of a KeySetSource. It is
// registered with a trust.Registry so a delegated trust anchor can name it.
//
//	provider, _ := jwks.NewCachingProvider(jwks.WithIssuerURL(issuerURL))
//	consumer, _ := jwks.NewConsumer(provider)
//	_ = registry.Register("idp", consumer)
type Consumer struct {
	source KeySetSource
}

var _ trust.Consumer = (*Consumer)(nil)

// NewConsumer returns a Consumer reading keys from source.
func NewConsumer(source KeySetSource) (*Consumer, error) {
	if source == nil {
		return nil, errors.New("key set source cannot be nil")
	}
	return &Consumer{source: source}, nil
}

// Verify implements trust.Consumer. A key set that cannot be fetched is
// reported as trust.ErrConsumerUnavailable.
func (c *Consumer) Verify(ctx context.Context, token []byte) ([]byte, error) {
	set, err := c.source.KeySet(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", trust.ErrConsumerUnavailable, err)
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("%w: key set is empty", trust.ErrConsumerUnavailable)
	}
	return trust.VerifyWithKeySet(token, set)
}
