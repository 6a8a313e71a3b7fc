package jwttai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cicsdev/go-jwt-tai/core"
	"github.com/cicsdev/go-jwt-tai/validator"
)

// ErrRejected matches every *RejectedError.
var ErrRejected = errors.New("bearer token rejected")

// RejectedError carries a Rejected verdict to the ErrorHandler.
type RejectedError struct {
	Verdict core.Verdict
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	if e.Verdict.Err == nil {
		return fmt.Sprintf("%s: %s", ErrRejected, e.Verdict.Failure)
	}
	return fmt.Sprintf("%s: %s: %s", ErrRejected, e.Verdict.Failure, e.Verdict.Err)
}

// Is allows the error to support equality to ErrRejected.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Unwrap returns the validation error behind the verdict.
func (e *RejectedError) Unwrap() error {
	return e.Verdict.Err
}

// Status is the HTTP status of the verdict, 401 or 500.
func (e *RejectedError) Status() int {
	return e.Verdict.Status()
}

// ErrorHandler is called by Handler when a request is Rejected. err is
// always a *RejectedError.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// ErrorResponse is the JSON body written by DefaultErrorHandler.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code,omitempty"`
}

// DefaultErrorHandler writes 401 with a WWW-Authenticate challenge for token
// failures and 500 when the verification capability failed. Validation
// details stay in the logs; the body only carries the failure code.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status, response := NewErrorResponse(err)
	if challenge := Challenge(status, response); challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// NewErrorResponse maps an error passed to an ErrorHandler to the status
// and body DefaultErrorHandler writes. Framework adapters use it to answer
// the same way.
func NewErrorResponse(err error) (int, ErrorResponse) {
	var rejected *RejectedError
	if errors.As(err, &rejected) && rejected.Status() == http.StatusUnauthorized {
		return http.StatusUnauthorized, ErrorResponse{
			Error:            "invalid_token",
			ErrorDescription: "The bearer token could not be verified",
			ErrorCode:        rejected.Verdict.Failure.String(),
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error:            "server_error",
		ErrorDescription: "The bearer token could not be checked",
		ErrorCode:        validator.ConsumerError.String(),
	}
}

// Challenge returns the RFC 6750 WWW-Authenticate value for a 401
// response, and "" for any other status.
func Challenge(status int, response ErrorResponse) string {
	if status != http.StatusUnauthorized {
		return ""
	}
	return fmt.Sprintf(`Bearer error=%q, error_description=%q`, response.Error, response.ErrorDescription)
}
