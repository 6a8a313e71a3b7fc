// Package config loads the settings of a jwttai host from a config file,
// a .env file and JWTTAI_ environment variables, in increasing priority.
//
//	cfg, err := config.Load(config.WithConfigFile("/etc/jwttai/jwttai.yaml"))
//	if err != nil {
//	    return err
//	}
//	ks, err := cfg.KeySource.ToKeystore()
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/cicsdev/go-jwt-tai/keystore"
	"github.com/cicsdev/go-jwt-tai/validator"
)

// EnvPrefix prefixes every environment override, e.g.
// JWTTAI_KEY_SOURCE_LOCATION for key_source.location.
const EnvPrefix = "JWTTAI"

// Config is the full host configuration.
type Config struct {
	Interceptor InterceptorConfig `mapstructure:"interceptor"`
	KeySource   KeySourceConfig   `mapstructure:"key_source"`
	JWKS        JWKSConfig        `mapstructure:"jwks"`
	Log         LogConfig         `mapstructure:"log"`
	Server      ServerConfig      `mapstructure:"server"`
}

// InterceptorConfig configures token validation and request handling.
type InterceptorConfig struct {
	Issuer        string        `mapstructure:"issuer"`
	Algorithms    []string      `mapstructure:"algorithms"`
	ClockSkew     time.Duration `mapstructure:"clock_skew"`
	ExclusionURLs []string      `mapstructure:"exclusion_urls"`

	// BaseDir resolves a relative key_source.location.
	BaseDir string `mapstructure:"base_dir"`
	// WatchKeySource reloads a file key source when it changes.
	WatchKeySource bool `mapstructure:"watch_key_source"`

	TrustXForwardedProto bool `mapstructure:"trust_x_forwarded_proto"`
	TrustForwarded       bool `mapstructure:"trust_forwarded"`
}

// KeySourceConfig is the configuration spelling of keystore.Config.
type KeySourceConfig struct {
	Kind            string        `mapstructure:"kind"`
	Format          string        `mapstructure:"format"`
	Location        string        `mapstructure:"location"`
	Alias           string        `mapstructure:"alias"`
	Password        string        `mapstructure:"password"`
	Consumer        string        `mapstructure:"consumer"`
	ConsumerTimeout time.Duration `mapstructure:"consumer_timeout"`
}

// JWKSConfig registers a JWKS backed verification consumer. It is
// disabled while both IssuerURL and URI are empty.
type JWKSConfig struct {
	IssuerURL string        `mapstructure:"issuer_url"`
	URI       string        `mapstructure:"uri"`
	Consumer  string        `mapstructure:"consumer"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	// Redis shares the key set cache through Redis configured by the
	// JWTTAI_REDIS_* variables.
	Redis bool `mapstructure:"redis"`
}

// Enabled reports whether a JWKS consumer is configured.
func (c JWKSConfig) Enabled() bool {
	return c.IssuerURL != "" || c.URI != ""
}

// LogConfig selects the CLI log output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	// Insecure serves plain HTTP. Requests then only authenticate through
	// a trusted proxy header.
	Insecure        bool          `mapstructure:"insecure"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	return map[string]any{
		"interceptor.issuer":                  validator.DefaultIssuer,
		"interceptor.algorithms":              []string{},
		"interceptor.clock_skew":              time.Duration(0),
		"interceptor.exclusion_urls":          []string{},
		"interceptor.base_dir":                "",
		"interceptor.watch_key_source":        false,
		"interceptor.trust_x_forwarded_proto": false,
		"interceptor.trust_forwarded":         false,

		"key_source.kind":             keystore.SourceFileKeystore.String(),
		"key_source.format":           keystore.FormatJKS.String(),
		"key_source.location":         keystore.DefaultLocation,
		"key_source.alias":            keystore.DefaultAlias,
		"key_source.password":         "",
		"key_source.consumer":         "",
		"key_source.consumer_timeout": time.Duration(0),

		"jwks.issuer_url": "",
		"jwks.uri":        "",
		"jwks.consumer":   "jwks",
		"jwks.cache_ttl":  15 * time.Minute,
		"jwks.redis":      false,

		"log.level":  "info",
		"log.format": "console",

		"server.addr":             ":8443",
		"server.cert_file":        "",
		"server.key_file":         "",
		"server.insecure":         false,
		"server.shutdown_timeout": 10 * time.Second,
	}
}

type loaderConfig struct {
	configFile string
	envFile    string
	searchDirs []string
}

// Option configures Load.
type Option func(*loaderConfig)

// WithConfigFile reads path instead of searching for jwttai.{yaml,json,toml}.
// A missing explicit file is an error.
func WithConfigFile(path string) Option {
	return func(lc *loaderConfig) { lc.configFile = path }
}

// WithEnvFile loads path instead of ./.env. Variables already set in the
// environment win over the file.
func WithEnvFile(path string) Option {
	return func(lc *loaderConfig) { lc.envFile = path }
}

// WithSearchDirs sets the directories searched for jwttai.* and .env.
// Default: the working directory.
func WithSearchDirs(dirs ...string) Option {
	return func(lc *loaderConfig) { lc.searchDirs = dirs }
}

// Load reads the configuration and validates it.
func Load(opts ...Option) (*Config, error) {
	lc := loaderConfig{searchDirs: []string{"."}}
	for _, opt := range opts {
		opt(&lc)
	}

	if err := loadEnvFile(lc); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	if lc.configFile != "" {
		v.SetConfigFile(lc.configFile)
	} else {
		for _, dir := range lc.searchDirs {
			v.AddConfigPath(dir)
		}
		v.SetConfigName("jwttai")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if lc.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile(lc loaderConfig) error {
	if lc.envFile != "" {
		if err := godotenv.Load(lc.envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", lc.envFile, err)
		}
		return nil
	}

	for _, dir := range lc.searchDirs {
		path := dir + string(os.PathSeparator) + ".env"
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// Validate reports every setting that cannot be used, joined.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.KeySource.ToKeystore(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Interceptor.ValidatorOptions(); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	if !c.Server.Insecure && (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		errs = append(errs, errors.New("server: cert_file and key_file must be set together"))
	}

	if c.JWKS.Enabled() && c.JWKS.Consumer == "" {
		errs = append(errs, errors.New("jwks.consumer cannot be empty"))
	}

	return errors.Join(errs...)
}

// ToKeystore parses the kind and format into a keystore.Config.
func (c KeySourceConfig) ToKeystore() (keystore.Config, error) {
	kind, err := keystore.ParseSourceKind(c.Kind)
	if err != nil {
		return keystore.Config{}, fmt.Errorf("key_source.kind: %w", err)
	}

	switch kind {
	case keystore.SourceDelegatedConsumer:
		if c.Consumer == "" {
			return keystore.Config{}, fmt.Errorf("key_source.consumer: %w", keystore.ErrConsumerNameEmpty)
		}
		if c.ConsumerTimeout < 0 {
			return keystore.Config{}, errors.New("key_source.consumer_timeout cannot be negative")
		}
		return keystore.Config{
			Kind:            kind,
			ConsumerName:    c.Consumer,
			ConsumerTimeout: c.ConsumerTimeout,
		}, nil
	default:
		format, err := keystore.ParseFormat(c.Format)
		if err != nil {
			return keystore.Config{}, fmt.Errorf("key_source.format: %w", err)
		}
		if c.Location == "" {
			return keystore.Config{}, fmt.Errorf("key_source.location: %w", keystore.ErrLocationEmpty)
		}
		ks := keystore.Config{
			Kind:     kind,
			Format:   format,
			Location: c.Location,
			Alias:    c.Alias,
		}
		if c.Password != "" {
			ks.Credential = keystore.Secret(c.Password)
		}
		return ks, nil
	}
}

// ValidatorOptions maps the settings onto validator options.
func (c InterceptorConfig) ValidatorOptions() ([]validator.Option, error) {
	opts := []validator.Option{
		validator.WithIssuer(c.Issuer),
		validator.WithAllowedClockSkew(c.ClockSkew),
	}

	if len(c.Algorithms) > 0 {
		algorithms := make([]validator.SignatureAlgorithm, 0, len(c.Algorithms))
		for _, alg := range c.Algorithms {
			algorithms = append(algorithms, validator.SignatureAlgorithm(strings.TrimSpace(alg)))
		}
		opts = append(opts, validator.WithAlgorithms(algorithms...))
	}

	// Build once so bad values surface at load time.
	if _, err := validator.New(opts...); err != nil {
		return nil, fmt.Errorf("interceptor: %w", err)
	}
	return opts, nil
}
