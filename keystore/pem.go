package keystore

import (
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// readPEM reads the first PEM block. Certificates yield their public key,
// key blocks are parsed by jwk. A PEM file holds one key, so the alias is
// not consulted.
func readPEM(data []byte, _ string, _ []byte) (any, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	if block.Type == "CERTIFICATE" {
		return publicKeyFromDER(block.Bytes)
	}

	key, err := jwk.ParseKey(pem.EncodeToMemory(block), jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("could not parse PEM %s: %w", block.Type, err)
	}
	return key, nil
}
