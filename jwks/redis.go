package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisCache. NewRedisCacheFromEnv fills it from
// the environment; defaults come from the struct tags.
type RedisConfig struct {
	// Addr like "localhost:6379". ENV: JWTTAI_REDIS_ADDR
	Addr string `env:"JWTTAI_REDIS_ADDR,default=localhost:6379"`
	// ENV: JWTTAI_REDIS_PASSWORD
	Password string `env:"JWTTAI_REDIS_PASSWORD"`
	// ENV: JWTTAI_REDIS_DB
	DB int `env:"JWTTAI_REDIS_DB,default=0"`
	// KeyPrefix for all keys. ENV: JWTTAI_REDIS_KEY_PREFIX
	KeyPrefix string `env:"JWTTAI_REDIS_KEY_PREFIX,default=jwttai:jwks:"`
	// TTL of a cached key set. ENV: JWTTAI_REDIS_TTL
	TTL time.Duration `env:"JWTTAI_REDIS_TTL,default=15m"`
}

// RedisCache is a Cache shared through Redis, so several server instances
// fetch a key set once per TTL between them. A Redis outage degrades to
// fetching on every call.
type RedisCache struct {
	client     *redis.Client
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to Redis and checks it answers.
func NewRedisCache(ctx context.Context, cfg RedisConfig, httpClient *http.Client) (*RedisCache, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if httpClient == nil {
		httpClient = newHTTPClient()
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "jwttai:jwks:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &RedisCache{
		client:     client,
		httpClient: httpClient,
		keyPrefix:  prefix,
		ttl:        ttl,
	}, nil
}

// NewRedisCacheFromEnv builds a RedisCache from JWTTAI_REDIS_* variables.
func NewRedisCacheFromEnv(ctx context.Context, httpClient *http.Client) (*RedisCache, error) {
	var cfg RedisConfig
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode redis config: %w", err)
	}
	return NewRedisCache(ctx, cfg, httpClient)
}

// Get returns the key set stored under jwksURI, fetching and storing it
// on a miss.
func (r *RedisCache) Get(ctx context.Context, jwksURI string) (jwk.Set, error) {
	key := r.keyPrefix + jwksURI

	data, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		if set, err := jwk.Parse(data); err == nil {
			return set, nil
		}
	}

	set, cacheTTL, err := fetchKeySet(ctx, r.httpClient, jwksURI)
	if err != nil {
		return nil, fmt.Errorf("could not fetch JWKS: %w", err)
	}

	if data, err := json.Marshal(set); err == nil {
		_ = r.client.Set(ctx, key, data, effectiveTTL(r.ttl, cacheTTL)).Err()
	}

	return set, nil
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
