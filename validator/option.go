package validator

import (
	"errors"
	"fmt"
	"time"
)

// Option is how options for the Validator are set up.
// Options return errors to enable validation during construction.
type Option func(*Validator) error

// WithIssuer sets the single expected issuer claim (iss).
//
// Default: DefaultIssuer ("idg").
func WithIssuer(issuer string) Option {
	return func(v *Validator) error {
		if issuer == "" {
			return errors.New("issuer cannot be empty")
		}
		v.issuer = issuer
		return nil
	}
}

// WithAlgorithms restricts the signature algorithms accepted when the trust
// anchor is a public key. Only asymmetric algorithms are supported.
//
// Default: every supported algorithm.
func WithAlgorithms(algorithms ...SignatureAlgorithm) Option {
	return func(v *Validator) error {
		if len(algorithms) == 0 {
			return errors.New("algorithms cannot be empty")
		}
		for _, alg := range algorithms {
			if _, ok := allowedSigningAlgorithms[alg]; !ok {
				return fmt.Errorf("unsupported signature algorithm: %s", alg)
			}
		}
		v.algorithms = append([]SignatureAlgorithm(nil), algorithms...)
		return nil
	}
}

// WithAllowedClockSkew sets the tolerance applied to exp, nbf and iat.
//
// Default: 0 (no clock skew allowed).
func WithAllowedClockSkew(skew time.Duration) Option {
	return func(v *Validator) error {
		if skew < 0 {
			return errors.New("clock skew cannot be negative")
		}
		v.allowedClockSkew = skew
		return nil
	}
}

// WithRequireExpiry rejects tokens that carry no exp claim.
//
// Default: false (exp is enforced only when present).
func WithRequireExpiry(required bool) Option {
	return func(v *Validator) error {
		v.requireExpiry = required
		return nil
	}
}
