/*
Package jwks fetches the JSON Web Key Set of an OpenID Connect issuer and
exposes it as a verification consumer for delegated trust anchors.

# Providers

Provider fetches the key set on every call. CachingProvider keeps it for a
TTL (15 minutes by default, extended by a longer Cache-Control max-age) and
refreshes it in the background once 80% of the TTL has passed:

	issuerURL, _ := url.Parse("https://idp.example.com/")

	provider, err := jwks.NewCachingProvider(
	    jwks.WithIssuerURL(issuerURL),
	    jwks.WithCacheTTL(5*time.Minute),
	)

The JWKS URI is discovered from the issuer's
.well-known/openid-configuration document unless WithCustomJWKSURI names
it. Discovery fails when the document's issuer differs from the configured
one.

# Sharing the Cache Through Redis

RedisCache stores key sets in Redis so a fleet of servers fetches once per
TTL:

	cache, err := jwks.NewRedisCacheFromEnv(ctx, nil) // JWTTAI_REDIS_ADDR, ...
	if err != nil {
	    return err
	}
	defer cache.Close()

	provider, err := jwks.NewCachingProvider(
	    jwks.WithIssuerURL(issuerURL),
	    jwks.WithCache(cache),
	)

# Delegated Verification

Consumer adapts any provider to trust.Consumer. Register it under the name
a delegated key source refers to:

	consumer, _ := jwks.NewConsumer(provider)

	registry := trust.NewRegistry()
	_ = registry.Register("idp", consumer)

	interceptor, err := jwttai.New(jwttai.WithResolver(registry))

A key set that cannot be fetched fails verification with
trust.ErrConsumerUnavailable, which the interceptor reports as a server
error rather than a bad token.
*/
package jwks
