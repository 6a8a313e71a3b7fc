package keystore

import (
	"context"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cicsdev/go-jwt-tai/trust"
)

type formatReader func(data []byte, alias string, password []byte) (any, error)

var formatReaders = map[Format]formatReader{
	FormatJKS:    readJKS,
	FormatPKCS12: readPKCS12,
	FormatPEM:    readPEM,
}

func loadFileKeystore(_ context.Context, l *loader, cfg Config) (*trust.Anchor, error) {
	if cfg.Location == "" {
		return nil, ErrLocationEmpty
	}

	read, ok := formatReaders[cfg.Format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.Format)
	}

	path := l.resolve(cfg.Location)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read keystore: %w", err)
	}

	password := cfg.Credential.clone()
	defer zero(password)

	public, err := read(data, cfg.Alias, password)
	if err != nil {
		return nil, err
	}

	return trust.NewKeyAnchor(public, cfg.Describe())
}

func (l *loader) resolve(location string) string {
	return ResolveLocation(l.baseDir, location)
}

// ResolveLocation returns the path Load reads for location when configured
// with WithBaseDir(baseDir). Absolute locations are returned unchanged.
func ResolveLocation(baseDir, location string) string {
	if baseDir == "" || filepath.IsAbs(location) {
		return location
	}
	return filepath.Join(baseDir, location)
}

func publicKeyFromDER(der []byte) (any, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("could not parse certificate: %w", err)
	}
	if cert.PublicKey == nil {
		return nil, ErrNoPublicKey
	}
	return cert.PublicKey, nil
}
