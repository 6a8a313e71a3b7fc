package validator

import (
	"errors"
	"strings"
)

var (
	// ErrTokenEmpty is returned for an empty token string.
	ErrTokenEmpty = errors.New("token is empty")

	// ErrTokenTooLarge is returned for tokens over maxTokenSize.
	ErrTokenTooLarge = errors.New("token exceeds maximum size (1MB)")

	// ErrTokenSegments is returned when the token is not exactly
	// header.payload.signature.
	ErrTokenSegments = errors.New("token must have exactly three dot-separated segments")
)

// maxTokenSize rejects inputs that no legitimate bearer token reaches.
const maxTokenSize = 1024 * 1024

// validateTokenFormat rejects obviously malformed input before any
// decoding or cryptographic work happens.
func validateTokenFormat(tokenString string) error {
	if len(tokenString) == 0 {
		return ErrTokenEmpty
	}
	if len(tokenString) > maxTokenSize {
		return ErrTokenTooLarge
	}
	if strings.Count(tokenString, ".") != 2 {
		return ErrTokenSegments
	}
	for _, segment := range strings.Split(tokenString, ".") {
		if segment == "" {
			return ErrTokenSegments
		}
	}
	return nil
}
