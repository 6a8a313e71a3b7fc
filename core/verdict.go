package core

import (
	"net/http"

	"github.com/cicsdev/go-jwt-tai/validator"
)

// Outcome is the top-level result of EstablishTrust.
type Outcome int

const (
	// OutcomeNotIntercepted leaves the request to the host's other
	// authentication mechanisms.
	OutcomeNotIntercepted Outcome = iota
	// OutcomeAuthenticated carries a verified identity.
	OutcomeAuthenticated
	// OutcomeRejected carries a FailureKind.
	OutcomeRejected
)

// String returns the outcome name used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeRejected:
		return "rejected"
	default:
		return "not_intercepted"
	}
}

// Verdict is the result of establishing trust for one request.
type Verdict struct {
	Outcome  Outcome
	Identity string
	Claims   *validator.Claims
	Failure  validator.FailureKind
	Err      error
}

// NotIntercepted returns the verdict for requests the core does not handle.
func NotIntercepted() Verdict {
	return Verdict{Outcome: OutcomeNotIntercepted}
}

// Authenticated returns a successful verdict for claims.Subject.
func Authenticated(claims *validator.Claims) Verdict {
	return Verdict{
		Outcome:  OutcomeAuthenticated,
		Identity: claims.Subject,
		Claims:   claims,
	}
}

// Rejected returns a failed verdict.
func Rejected(kind validator.FailureKind, err error) Verdict {
	return Verdict{
		Outcome: OutcomeRejected,
		Failure: kind,
		Err:     err,
	}
}

// Status maps the verdict to an HTTP status: 0 when not intercepted, 200
// when authenticated, 401 for token failures and 500 when the verification
// capability itself failed.
func (v Verdict) Status() int {
	switch v.Outcome {
	case OutcomeAuthenticated:
		return http.StatusOK
	case OutcomeRejected:
		if v.Failure.Unauthenticated() {
			return http.StatusUnauthorized
		}
		return http.StatusInternalServerError
	default:
		return 0
	}
}
