package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/cicsdev/go-jwt-tai/trust"
)

// DefaultIssuer is the issuer expected when WithIssuer is not used.
const DefaultIssuer = "idg"

// Signature algorithms
const (
	EdDSA = SignatureAlgorithm("EdDSA")
	RS256 = SignatureAlgorithm("RS256") // RSASSA-PKCS-v1.5 using SHA-256
	RS384 = SignatureAlgorithm("RS384") // RSASSA-PKCS-v1.5 using SHA-384
	RS512 = SignatureAlgorithm("RS512") // RSASSA-PKCS-v1.5 using SHA-512
	ES256 = SignatureAlgorithm("ES256") // ECDSA using P-256 and SHA-256
	ES384 = SignatureAlgorithm("ES384") // ECDSA using P-384 and SHA-384
	ES512 = SignatureAlgorithm("ES512") // ECDSA using P-521 and SHA-512
	PS256 = SignatureAlgorithm("PS256") // RSASSA-PSS using SHA256 and MGF1-SHA256
	PS384 = SignatureAlgorithm("PS384") // RSASSA-PSS using SHA384 and MGF1-SHA384
	PS512 = SignatureAlgorithm("PS512") // RSASSA-PSS using SHA512 and MGF1-SHA512
)

// SignatureAlgorithm is a signature algorithm.
type SignatureAlgorithm string

var allowedSigningAlgorithms = map[SignatureAlgorithm]func() jwa.SignatureAlgorithm{
	EdDSA: jwa.EdDSA,
	RS256: jwa.RS256,
	RS384: jwa.RS384,
	RS512: jwa.RS512,
	ES256: jwa.ES256,
	ES384: jwa.ES384,
	ES512: jwa.ES512,
	PS256: jwa.PS256,
	PS384: jwa.PS384,
	PS512: jwa.PS512,
}

// defaultAlgorithms is ordered so the common RSA case is tried first.
var defaultAlgorithms = []SignatureAlgorithm{
	RS256, RS384, RS512,
	PS256, PS384, PS512,
	ES256, ES384, ES512,
	EdDSA,
}

// Validator verifies bearer tokens against a trust anchor. It holds no
// per-call state and is safe for concurrent use.
type Validator struct {
	issuer           string
	algorithms       []SignatureAlgorithm
	allowedClockSkew time.Duration
	requireExpiry    bool
}

// New sets up a new Validator.
//
// Example:
//
//	v, err := validator.New(
//	    validator.WithIssuer("idg"),
//	    validator.WithAlgorithms(validator.RS256),
//	    validator.WithAllowedClockSkew(30*time.Second),
//	)
func New(opts ...Option) (*Validator, error) {
	v := &Validator{
		issuer:     DefaultIssuer,
		algorithms: defaultAlgorithms,
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	return v, nil
}

// Issuer returns the expected issuer.
func (v *Validator) Issuer() string {
	return v.issuer
}

// Validate checks tokenString against anchor and returns its claims.
//
// The steps run in order and stop at the first failure: shape and decoding
// (Malformed), signature (BadSignature, or ConsumerError when a delegated
// consumer cannot answer), issuer (IssuerMismatch), time window (Expired),
// subject (Malformed). Every failure is an *Error.
func (v *Validator) Validate(ctx context.Context, tokenString string, anchor *trust.Anchor) (*Claims, error) {
	if anchor == nil {
		return nil, newError(ConsumerError, "no trust anchor configured")
	}

	if err := validateTokenFormat(tokenString); err != nil {
		return nil, &Error{Kind: Malformed, Err: err}
	}

	token, err := jwt.ParseInsecure([]byte(tokenString))
	if err != nil {
		return nil, newError(Malformed, "could not parse the token: %w", err)
	}

	if _, err := anchor.Verify(ctx, []byte(tokenString), v.jwxAlgorithms()); err != nil {
		if errors.Is(err, trust.ErrSignatureMismatch) {
			return nil, newError(BadSignature, "signature could not be verified: %w", err)
		}
		return nil, newError(ConsumerError, "verification consumer failed: %w", err)
	}

	claims := claimsFromToken(token)

	if claims.Issuer != v.issuer {
		return nil, newError(IssuerMismatch, "expected issuer %q but token specified %q", v.issuer, claims.Issuer)
	}

	if err := v.validateTimes(claims, time.Now()); err != nil {
		return nil, &Error{Kind: Expired, Err: err}
	}

	if claims.Subject == "" {
		return nil, newError(Malformed, "token has no subject")
	}

	return claims, nil
}

// Identity validates tokenString and returns its subject.
func (v *Validator) Identity(ctx context.Context, tokenString string, anchor *trust.Anchor) (string, error) {
	claims, err := v.Validate(ctx, tokenString, anchor)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

var (
	errExpired           = errors.New("token is expired")
	errNotValidYet       = errors.New("token is not valid yet")
	errIssuedInTheFuture = errors.New("token issued in the future")
	errExpiryMissing     = errors.New("token has no expiry")
)

func (v *Validator) validateTimes(claims *Claims, now time.Time) error {
	leeway := v.allowedClockSkew

	if claims.Expiry == 0 && v.requireExpiry {
		return errExpiryMissing
	}

	if claims.NotBefore != 0 && now.Add(leeway).Before(time.Unix(claims.NotBefore, 0)) {
		return errNotValidYet
	}

	if claims.Expiry != 0 && now.Add(-leeway).After(time.Unix(claims.Expiry, 0)) {
		return errExpired
	}

	if claims.IssuedAt != 0 && now.Add(leeway).Before(time.Unix(claims.IssuedAt, 0)) {
		return errIssuedInTheFuture
	}

	return nil
}

func (v *Validator) jwxAlgorithms() []jwa.SignatureAlgorithm {
	algorithms := make([]jwa.SignatureAlgorithm, 0, len(v.algorithms))
	for _, alg := range v.algorithms {
		algorithms = append(algorithms, allowedSigningAlgorithms[alg]())
	}
	return algorithms
}
