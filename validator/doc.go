/*
Package validator verifies bearer tokens with the lestrrat-go/jwx v3 library
and extracts the caller identity.

A token is accepted only when it is a JWS compact token whose signature
verifies against the configured trust anchor, whose "iss" claim equals the
single expected issuer, whose exp/nbf/iat window contains the current time,
and which names a subject.

	v, err := validator.New(validator.WithIssuer("idg"))
	if err != nil {
	    log.Fatal(err)
	}

	claims, err := v.Validate(ctx, rawToken, anchor)
	if err != nil {
	    switch validator.KindOf(err) {
	    case validator.ConsumerError:
	        // deployment defect, answer 500
	    default:
	        // bad credential, answer 401
	    }
	}
	fmt.Println(claims.Subject)

Every failure is an *Error carrying a FailureKind; errors.Is(err,
ErrTokenInvalid) holds for all kinds except ConsumerError.

The Validator is immutable after creation and safe for concurrent use.
*/
package validator
