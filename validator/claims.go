package validator

import (
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

// Claims is the verified payload of a bearer token.
// Time values are Unix seconds and zero when the claim is absent.
type Claims struct {
	Issuer    string   `json:"iss,omitempty"`
	Subject   string   `json:"sub,omitempty"`
	Audience  []string `json:"aud,omitempty"`
	Expiry    int64    `json:"exp,omitempty"`
	NotBefore int64    `json:"nbf,omitempty"`
	IssuedAt  int64    `json:"iat,omitempty"`
	ID        string   `json:"jti,omitempty"`
}

func claimsFromToken(token jwt.Token) *Claims {
	claims := &Claims{}
	claims.Issuer, _ = token.Issuer()
	claims.Subject, _ = token.Subject()
	claims.Audience, _ = token.Audience()
	claims.ID, _ = token.JwtID()

	if exp, ok := token.Expiration(); ok {
		claims.Expiry = unixOrZero(exp)
	}
	if nbf, ok := token.NotBefore(); ok {
		claims.NotBefore = unixOrZero(nbf)
	}
	if iat, ok := token.IssuedAt(); ok {
		claims.IssuedAt = unixOrZero(iat)
	}
	return claims
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
