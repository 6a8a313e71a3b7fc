// Package tokentest provides keys and signed bearer tokens for tests.
package tokentest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/require"

	"github.com/cicsdev/go-jwt-tai/trust"
)

// Issuer and Subject are the claims carried by Valid tokens.
const (
	Issuer  = "idg"
	Subject = "alice"
)

// Claims is a claim set passed to Sign.
type Claims map[string]any

// ValidClaims returns issuer "idg", subject "alice" and a one hour expiry.
func ValidClaims() Claims {
	return Claims{
		jwt.IssuerKey:     Issuer,
		jwt.SubjectKey:    Subject,
		jwt.IssuedAtKey:   time.Now().Add(-time.Minute),
		jwt.ExpirationKey: time.Now().Add(time.Hour),
	}
}

// With returns a copy of c with key set to value, or removed when value is nil.
func (c Claims) With(key string, value any) Claims {
	out := make(Claims, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	if value == nil {
		delete(out, key)
	} else {
		out[key] = value
	}
	return out
}

// RSAKey generates a 2048 bit RSA key.
func RSAKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// Anchor builds a key anchor for the public half of key.
func Anchor(t testing.TB, key *rsa.PrivateKey) *trust.Anchor {
	t.Helper()
	anchor, err := trust.NewKeyAnchor(&key.PublicKey, "test")
	require.NoError(t, err)
	return anchor
}

// PublicKeySet returns a JWK set holding the public halves of keys. Each
// key gets the kid "key-<index>".
func PublicKeySet(t testing.TB, keys ...*rsa.PrivateKey) jwk.Set {
	t.Helper()
	set := jwk.NewSet()
	for i, key := range keys {
		public, err := jwk.Import(&key.PublicKey)
		require.NoError(t, err)
		require.NoError(t, public.Set(jwk.KeyIDKey, "key-"+strconv.Itoa(i)))
		require.NoError(t, set.AddKey(public))
	}
	return set
}

// Sign produces an RS256 JWS compact token carrying claims.
func Sign(t testing.TB, key *rsa.PrivateKey, claims Claims) string {
	t.Helper()
	return SignWith(t, jwa.RS256(), key, claims)
}

// SignWith produces a JWS compact token with the given algorithm and key.
func SignWith(t testing.TB, alg jwa.SignatureAlgorithm, key any, claims Claims) string {
	t.Helper()
	token := jwt.New()
	for k, v := range claims {
		require.NoError(t, token.Set(k, v))
	}
	signed, err := jwt.Sign(token, jwt.WithKey(alg, key))
	require.NoError(t, err)
	return string(signed)
}

// Valid returns an RS256 token with ValidClaims.
func Valid(t testing.TB, key *rsa.PrivateKey) string {
	t.Helper()
	return Sign(t, key, ValidClaims())
}

// FlipSignatureByte returns token with the first signature byte inverted.
// The segment stays valid base64url so only the signature check can fail.
func FlipSignatureByte(t testing.TB, token string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	signature[0] ^= 0xff
	parts[2] = base64.RawURLEncoding.EncodeToString(signature)

	return strings.Join(parts, ".")
}

// SelfSignedCertificate issues a self-signed certificate for key.
func SelfSignedCertificate(t testing.TB, key *rsa.PrivateKey, commonName string) *x509.Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}
