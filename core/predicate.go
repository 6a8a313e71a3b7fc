package core

import (
	"fmt"
	"regexp"
	"strings"
)

// AuthorizationHeader is the header bearer tokens are read from.
const AuthorizationHeader = "Authorization"

// bearerPattern matches "Bearer " followed by three base64url segments.
// The signature segment may carry "=" padding.
var bearerPattern = regexp.MustCompile(`^Bearer [A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_=-]+$`)

// IsBearerHeader reports whether value has the shape of a bearer JWT.
func IsBearerHeader(value string) bool {
	return bearerPattern.MatchString(value)
}

// IsTarget reports whether req should be handled by EstablishTrust: the
// core is initialized, the transport is secure and the Authorization header
// has the shape of a bearer JWT. It performs no cryptographic work.
func (c *Core) IsTarget(req Request) bool {
	if req == nil || c.current().state != StateInitialized {
		return false
	}
	if !req.IsSecure() {
		return false
	}

	header := req.Header(AuthorizationHeader)
	if !IsBearerHeader(header) {
		if header != "" {
			c.debug("Authorization header is not a bearer JWT", "authorization", Redact(header))
		}
		return false
	}
	return true
}

// BearerToken splits an Authorization header into scheme and token. The
// header must hold exactly two whitespace-separated fields and the scheme
// must be Bearer.
func BearerToken(header string) (string, error) {
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return "", fmt.Errorf("%w: expected 2 fields, got %d", ErrMalformedHeader, len(fields))
	}
	if !strings.EqualFold(fields[0], "Bearer") {
		return "", fmt.Errorf("%w: scheme is not Bearer", ErrMalformedHeader)
	}
	return fields[1], nil
}

// Redact returns a log-safe rendering of an Authorization header value.
func Redact(header string) string {
	scheme, rest, found := strings.Cut(header, " ")
	if !found {
		return fmt.Sprintf("<redacted len=%d>", len(header))
	}
	return fmt.Sprintf("%s <redacted len=%d>", scheme, len(rest))
}
