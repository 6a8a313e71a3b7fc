package core

import "context"

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	identityKey contextKey = iota
	claimsKey
)

// SetIdentity stores the authenticated identity in the context.
func SetIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity returns the authenticated identity stored by an adapter.
func GetIdentity(ctx context.Context) (string, error) {
	identity, ok := ctx.Value(identityKey).(string)
	if !ok || identity == "" {
		return "", ErrIdentityNotFound
	}
	return identity, nil
}

// HasIdentity reports whether an identity is stored in the context.
func HasIdentity(ctx context.Context) bool {
	_, err := GetIdentity(ctx)
	return err == nil
}

// SetClaims stores claims in the context.
func SetClaims(ctx context.Context, claims any) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims retrieves claims from the context with type safety.
//
//	claims, err := core.GetClaims[*validator.Claims](ctx)
func GetClaims[T any](ctx context.Context) (T, error) {
	var zero T

	claims, ok := ctx.Value(claimsKey).(T)
	if !ok {
		return zero, ErrClaimsNotFound
	}
	return claims, nil
}

// WithVerdict stores the identity and claims of an authenticated verdict.
// Other verdicts leave ctx unchanged.
func WithVerdict(ctx context.Context, v Verdict) context.Context {
	if v.Outcome != OutcomeAuthenticated {
		return ctx
	}
	ctx = SetIdentity(ctx, v.Identity)
	if v.Claims != nil {
		ctx = SetClaims(ctx, v.Claims)
	}
	return ctx
}
