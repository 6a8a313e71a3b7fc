/*
Package jwttai provides a bearer-JWT trust association interceptor for
net/http servers.

A trust association interceptor sits in front of a server's own
authentication. For every request it decides whether the request is one it
handles, a request over a secure transport carrying an
"Authorization: Bearer <jwt>" header, and if so turns the token into an
authenticated identity. Everything else passes through untouched so the
host's other mechanisms (basic auth, sessions, client certificates) still
apply.

The package follows a Core-Adapter layout. The core package holds the
transport-agnostic lifecycle and decision logic, and this package is the
net/http adapter. The framework/gin, framework/echo and framework/grpc
packages adapt the same Interceptor to those stacks.

# Quick Start

	import (
	    jwttai "github.com/cicsdev/go-jwt-tai"
	    "github.com/cicsdev/go-jwt-tai/keystore"
	)

	func main() {
	    interceptor, err := jwttai.New(
	        jwttai.WithLogger(slog.Default()),
	        jwttai.WithKeystoreOptions(keystore.WithBaseDir("/etc/security")),
	    )
	    if err != nil {
	        log.Fatal(err)
	    }
	    defer interceptor.Close()

	    err = interceptor.Initialize(ctx, keystore.Config{
	        Kind:       keystore.SourceFileKeystore,
	        Format:     keystore.FormatJKS,
	        Location:   "key.jks",
	        Alias:      "idg",
	        Credential: keystore.Secret(os.Getenv("KEYSTORE_PASSWORD")),
	    })
	    if err != nil {
	        // The interceptor stays uninitialized and intercepts nothing.
	        log.Printf("trust association disabled: %v", err)
	    }

	    http.Handle("/api/", interceptor.Handler(apiHandler))
	    http.Handle("/healthz", interceptor.HealthHandler())
	    http.ListenAndServeTLS(":8443", "cert.pem", "key.pem", nil)
	}

# Accessing the Identity

Authenticated requests carry the token subject and the validated claims:

	func apiHandler(w http.ResponseWriter, r *http.Request) {
	    user, err := jwttai.GetIdentity(r.Context())
	    if err != nil {
	        // Not intercepted: the request was authenticated some other way, or not at all.
	        http.Error(w, "Unauthorized", http.StatusUnauthorized)
	        return
	    }

	    claims, _ := core.GetClaims[*validator.Claims](r.Context())
	    fmt.Fprintf(w, "Hello, %s (token issued %d)", user, claims.IssuedAt)
	}

# Verdicts

Each request ends in one of three verdicts:

	NotIntercepted  plain HTTP, no header, or a non-bearer scheme  next handler runs
	Authenticated   token verified, subject present                next handler runs with identity
	Rejected        token failed a check                           ErrorHandler responds

Rejections are 401 with a WWW-Authenticate challenge, except when the
verification capability itself failed (a delegated consumer that is missing
or timed out), which is a 500. Use WithErrorHandler to change the response.

# Key Sources

A key source is either a file keystore (JKS, PKCS#12 or PEM) holding the
public key or certificate the token issuer signs with, or a delegated
consumer the host registered by name in a trust.Registry:

	registry := trust.NewRegistry()
	registry.Register("keyring", jwksConsumer)

	interceptor, _ := jwttai.New(jwttai.WithResolver(registry))
	interceptor.Initialize(ctx, keystore.Config{
	    Kind:         keystore.SourceDelegatedConsumer,
	    ConsumerName: "keyring",
	})

Initialize may be called again at any time, for example from
WatchKeySource when the keystore file changes. A failed reload keeps the
previous anchor and is reported by Health.

# Validation

Tokens are validated by a validator.Validator. The default expects the
issuer "idg", accepts every asymmetric signature algorithm and enforces
exp, nbf and iat with no clock skew:

	v, _ := validator.New(
	    validator.WithIssuer("https://issuer.example.com"),
	    validator.WithAlgorithms(validator.RS256, validator.ES256),
	    validator.WithAllowedClockSkew(30*time.Second),
	)
	interceptor, _ := jwttai.New(jwttai.WithValidator(v))

# Transport Security

Only requests received over TLS are intercepted. Behind a TLS terminating
proxy, opt in to forwarded headers:

	jwttai.New(jwttai.WithStandardProxy())   // X-Forwarded-Proto
	jwttai.New(jwttai.WithRFC7239Proxy())    // Forwarded: proto=https

Never enable these when the server is reachable without the proxy.

# Observability

Logging is optional and slog compatible; adapters exist for zap, zerolog and
logrus. Metrics and tracing default to no-ops:

	interceptor, _ := jwttai.New(
	    jwttai.WithLogger(jwttai.NewZapLogger(zapLogger.Sugar())),
	    jwttai.WithMetrics(jwttai.NewPrometheusMetrics(prometheus.DefaultRegisterer)),
	    jwttai.WithTracer(jwttai.NewOpenTelemetryTracer(otel.Tracer("jwttai"))),
	)

Authorization header values never reach the logs in clear text, and keystore
passwords are held as keystore.Secret, which formats as a placeholder.
*/
package jwttai
