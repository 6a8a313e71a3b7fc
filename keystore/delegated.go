package keystore

import (
	"context"

	"github.com/cicsdev/go-jwt-tai/trust"
)

// loadDelegated records the consumer reference only. Whether the consumer
// exists is checked when a token is verified, so a host may register it
// after the interceptor starts.
func loadDelegated(_ context.Context, l *loader, cfg Config) (*trust.Anchor, error) {
	if cfg.ConsumerName == "" {
		return nil, ErrConsumerNameEmpty
	}
	if l.resolver == nil {
		return nil, ErrResolverMissing
	}
	return trust.NewDelegatedAnchor(cfg.ConsumerName, l.resolver, cfg.ConsumerTimeout)
}
