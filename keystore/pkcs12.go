package keystore

import (
	"crypto/x509"
	"fmt"
	"strings"

	"software.sslmate.com/src/go-pkcs12"
)

// readPKCS12 reads a key bundle or a Java-style trust store. PKCS#12 friendly
// names are not exposed by the decoder, so the alias is matched against the
// certificate subject common name, case-insensitively.
func readPKCS12(data []byte, alias string, password []byte) (any, error) {
	pw := string(password)

	_, leaf, _, chainErr := pkcs12.DecodeChain(data, pw)
	if chainErr == nil {
		if !aliasMatches(leaf, alias) {
			return nil, fmt.Errorf("%w: %q", ErrAliasNotFound, alias)
		}
		return publicKeyOf(leaf)
	}

	certs, err := pkcs12.DecodeTrustStore(data, pw)
	if err != nil {
		return nil, fmt.Errorf("could not open PKCS12 keystore: %w", chainErr)
	}
	for _, cert := range certs {
		if aliasMatches(cert, alias) {
			return publicKeyOf(cert)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrAliasNotFound, alias)
}

func aliasMatches(cert *x509.Certificate, alias string) bool {
	return cert != nil && strings.EqualFold(cert.Subject.CommonName, alias)
}

func publicKeyOf(cert *x509.Certificate) (any, error) {
	if cert.PublicKey == nil {
		return nil, ErrNoPublicKey
	}
	return cert.PublicKey, nil
}
