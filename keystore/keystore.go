// Package keystore turns key source configuration into a trust.Anchor.
//
// Two source kinds exist. A file keystore (JKS, PKCS#12 or PEM) yields a
// public key anchor taken from the entry under the configured alias. A
// delegated consumer yields an anchor that hands verification to a consumer
// the host registered by name, without any local key material.
//
//	anchor, err := keystore.Load(ctx, keystore.Config{
//	    Kind:       keystore.SourceFileKeystore,
//	    Format:     keystore.FormatJKS,
//	    Location:   "key.jks",
//	    Alias:      "idg",
//	    Credential: keystore.Secret("changeit"),
//	}, keystore.WithBaseDir("/etc/security"))
package keystore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cicsdev/go-jwt-tai/trust"
)

// Defaults applied by DefaultConfig.
const (
	DefaultLocation = "key.jks"
	DefaultAlias    = "default"
)

// SourceKind selects how the trust anchor is obtained.
type SourceKind int

const (
	// SourceFileKeystore reads a public key from a keystore file.
	SourceFileKeystore SourceKind = iota + 1
	// SourceDelegatedConsumer defers verification to a named consumer.
	SourceDelegatedConsumer
)

// String returns the configuration spelling of the kind.
func (k SourceKind) String() string {
	switch k {
	case SourceFileKeystore:
		return "file"
	case SourceDelegatedConsumer:
		return "consumer"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// ParseSourceKind parses a configured source kind. Matching is exact after
// case folding and trimming.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file", "keystore", "file_keystore":
		return SourceFileKeystore, nil
	case "consumer", "delegated", "delegated_consumer":
		return SourceDelegatedConsumer, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSourceKind, s)
	}
}

// Format is the on-disk encoding of a file keystore.
type Format int

const (
	// FormatJKS is a Java KeyStore.
	FormatJKS Format = iota + 1
	// FormatPKCS12 is a PKCS#12 (.p12/.pfx) bundle.
	FormatPKCS12
	// FormatPEM is a PEM encoded public key, certificate or private key.
	FormatPEM
)

// String returns the configuration spelling of the format.
func (f Format) String() string {
	switch f {
	case FormatJKS:
		return "JKS"
	case FormatPKCS12:
		return "PKCS12"
	case FormatPEM:
		return "PEM"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses a configured keystore format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JKS":
		return FormatJKS, nil
	case "PKCS12", "P12", "PFX":
		return FormatPKCS12, nil
	case "PEM":
		return FormatPEM, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Secret holds a keystore password. It formats as a placeholder so it
// never reaches logs.
type Secret []byte

const redacted = "[REDACTED]"

// String implements fmt.Stringer.
func (s Secret) String() string { return redacted }

// GoString implements fmt.GoStringer.
func (s Secret) GoString() string { return redacted }

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

// MarshalText implements encoding.TextMarshaler.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

func (s Secret) clone() []byte {
	return append([]byte(nil), s...)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Config describes one key source.
type Config struct {
	Kind SourceKind

	// File keystore settings.
	Format     Format
	Location   string
	Alias      string
	Credential Secret

	// Delegated consumer settings. A zero timeout selects
	// trust.DefaultConsumerTimeout.
	ConsumerName    string
	ConsumerTimeout time.Duration
}

// DefaultConfig returns a JKS file keystore at key.jks with alias "default".
func DefaultConfig() Config {
	return Config{
		Kind:     SourceFileKeystore,
		Format:   FormatJKS,
		Location: DefaultLocation,
		Alias:    DefaultAlias,
	}
}

// Describe returns a log-safe description of the source.
func (c Config) Describe() string {
	switch c.Kind {
	case SourceFileKeystore:
		return fmt.Sprintf("%s:%s#%s", c.Format, c.Location, c.Alias)
	case SourceDelegatedConsumer:
		return "consumer:" + c.ConsumerName
	default:
		return c.Kind.String()
	}
}

type loader struct {
	baseDir  string
	resolver trust.Resolver
}

// Option configures Load.
type Option func(*loader) error

// WithBaseDir resolves relative keystore locations against dir, the host
// server's security resource directory.
func WithBaseDir(dir string) Option {
	return func(l *loader) error {
		if dir == "" {
			return fmt.Errorf("base directory cannot be empty")
		}
		l.baseDir = dir
		return nil
	}
}

// WithResolver supplies the registry delegated consumers are looked up in.
func WithResolver(resolver trust.Resolver) Option {
	return func(l *loader) error {
		if resolver == nil {
			return ErrResolverMissing
		}
		l.resolver = resolver
		return nil
	}
}

type handler func(ctx context.Context, l *loader, cfg Config) (*trust.Anchor, error)

var handlers = map[SourceKind]handler{
	SourceFileKeystore:      loadFileKeystore,
	SourceDelegatedConsumer: loadDelegated,
}

// Load builds the trust anchor described by cfg. Every failure is a
// *LoadError.
func Load(ctx context.Context, cfg Config, opts ...Option) (*trust.Anchor, error) {
	l := &loader{}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, &LoadError{Source: cfg.Describe(), Err: fmt.Errorf("invalid option: %w", err)}
		}
	}

	h, ok := handlers[cfg.Kind]
	if !ok {
		return nil, &LoadError{Source: cfg.Describe(), Err: fmt.Errorf("%w: %s", ErrUnknownSourceKind, cfg.Kind)}
	}

	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Source: cfg.Describe(), Err: err}
	}

	anchor, err := h(ctx, l, cfg)
	if err != nil {
		return nil, &LoadError{Source: cfg.Describe(), Err: err}
	}
	return anchor, nil
}
