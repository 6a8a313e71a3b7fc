package keystore

import (
	"bytes"
	"fmt"
	"strings"

	jks "github.com/pavlo-v-chernykh/keystore-go/v4"
)

// readJKS returns the public key stored under alias. Private key entries
// use the leaf of their certificate chain and are unlocked with the store
// password. Java lowercases aliases, so lookup does too.
func readJKS(data []byte, alias string, password []byte) (any, error) {
	ks := jks.New()
	if err := ks.Load(bytes.NewReader(data), password); err != nil {
		return nil, fmt.Errorf("could not open JKS keystore: %w", err)
	}

	alias = strings.ToLower(alias)

	switch {
	case ks.IsPrivateKeyEntry(alias):
		entry, err := ks.GetPrivateKeyEntry(alias, password)
		if err != nil {
			return nil, fmt.Errorf("could not read entry %q: %w", alias, err)
		}
		zero(entry.PrivateKey)
		if len(entry.CertificateChain) == 0 {
			return nil, fmt.Errorf("%w: entry %q has no certificate chain", ErrNoPublicKey, alias)
		}
		return publicKeyFromDER(entry.CertificateChain[0].Content)

	case ks.IsTrustedCertificateEntry(alias):
		entry, err := ks.GetTrustedCertificateEntry(alias)
		if err != nil {
			return nil, fmt.Errorf("could not read entry %q: %w", alias, err)
		}
		return publicKeyFromDER(entry.Certificate.Content)

	default:
		return nil, fmt.Errorf("%w: %q", ErrAliasNotFound, alias)
	}
}
