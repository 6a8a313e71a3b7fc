package jwttai

import (
	"net/http"

	"github.com/cicsdev/go-jwt-tai/core"
)

// AuthHeaderTokenExtractor returns the token of a "Bearer <token>"
// Authorization header, split the same way EstablishTrust splits it, for
// hosts that need the raw token. A missing header is ("", nil).
func AuthHeaderTokenExtractor(r *http.Request) (string, error) {
	header := r.Header.Get(core.AuthorizationHeader)
	if header == "" {
		return "", nil
	}
	return core.BearerToken(header)
}
