package jwttai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/cicsdev/go-jwt-tai/core"
	"github.com/cicsdev/go-jwt-tai/keystore"
	"github.com/cicsdev/go-jwt-tai/trust"
)

const version = "JWTTAI-1.0"

// Interceptor is a bearer-JWT trust association interceptor for net/http.
//
// Requests that are not secure bearer JWT requests pass through untouched so
// the host's other authentication can handle them. Requests carrying a valid
// token continue with the identity in their context; invalid ones are
// answered by the ErrorHandler.
type Interceptor struct {
	core                *core.Core
	errorHandler        ErrorHandler
	exclusionURLHandler ExclusionURLHandler
	trustedProxies      *TrustedProxyConfig
	logger              Logger
	metrics             Metrics
	tracer              Tracer

	// Temporary fields used during construction
	coreOpts []core.Option

	mu        sync.Mutex
	keySource *keystore.Config
	closers   []func() error
	closed    bool
}

// ExclusionURLHandler is a function that takes in a http.Request and returns
// true if the request should never be intercepted.
type ExclusionURLHandler func(r *http.Request) bool

// New constructs an uninitialized Interceptor with the supplied options.
//
// Example:
//
//	interceptor, err := jwttai.New(
//	    jwttai.WithLogger(slog.Default()),
//	    jwttai.WithKeystoreOptions(keystore.WithBaseDir("/etc/security")),
//	)
//	if err != nil {
//	    log.Fatalf("failed to create interceptor: %v", err)
//	}
//	if err := interceptor.Initialize(ctx, keystore.DefaultConfig()); err != nil {
//	    log.Printf("bearer tokens will not be intercepted: %v", err)
//	}
//	http.Handle("/api/", interceptor.Handler(apiHandler))
func New(opts ...Option) (*Interceptor, error) {
	i := &Interceptor{}

	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	i.applyDefaults()

	if err := i.createCore(); err != nil {
		return nil, fmt.Errorf("failed to create core: %w", err)
	}

	i.metrics.SetGauge(MetricInitialized, 0, nil)
	return i, nil
}

func (i *Interceptor) applyDefaults() {
	if i.errorHandler == nil {
		i.errorHandler = DefaultErrorHandler
	}
	if i.metrics == nil {
		i.metrics = &NoopMetrics{}
	}
	if i.tracer == nil {
		i.tracer = &NoopTracer{}
	}
}

func (i *Interceptor) createCore() error {
	coreOpts := i.coreOpts
	if i.logger != nil {
		coreOpts = append(coreOpts, core.WithLogger(i.logger))
	}

	c, err := core.New(coreOpts...)
	if err != nil {
		return err
	}
	i.core = c
	i.coreOpts = nil
	return nil
}

// Initialize loads the key source and publishes its trust anchor. On
// failure the interceptor intercepts nothing (or, when re-initializing,
// keeps its previous anchor) and the error is returned and reported by
// Health.
func (i *Interceptor) Initialize(ctx context.Context, cfg keystore.Config) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return ErrClosed
	}
	i.keySource = &cfg
	i.mu.Unlock()

	err := i.core.Initialize(ctx, cfg)
	i.recordState()
	return err
}

// InitializeWithAnchor publishes an anchor the host built itself, such as
// a delegated anchor over a jwks.Consumer.
func (i *Interceptor) InitializeWithAnchor(anchor *trust.Anchor) error {
	err := i.core.InitializeWithAnchor(anchor)
	i.recordState()
	return err
}

func (i *Interceptor) recordState() {
	value := 0.0
	if i.core.State() == core.StateInitialized {
		value = 1
	}
	i.metrics.SetGauge(MetricInitialized, value, nil)
}

// Health returns the lifecycle state and the last initialization error.
func (i *Interceptor) Health() core.Health {
	return i.core.Health()
}

// IsTarget reports whether r is a secure bearer JWT request this
// interceptor handles.
func (i *Interceptor) IsTarget(r *http.Request) bool {
	if i.exclusionURLHandler != nil && i.exclusionURLHandler(r) {
		return false
	}
	return i.core.IsTarget(NewRequest(r, i.trustedProxies))
}

// Evaluate runs the predicate and, for targeted requests, establishes trust.
// Framework adapters call it with their own core.Request. Every call is
// traced and counted.
func (i *Interceptor) Evaluate(ctx context.Context, req core.Request) core.Verdict {
	if !i.core.IsTarget(req) {
		i.metrics.IncCounter(MetricVerdicts, verdictTags(core.NotIntercepted()))
		return core.NotIntercepted()
	}

	ctx, span := i.tracer.StartSpan(ctx, "jwttai.EstablishTrust")
	defer span.Finish()

	start := time.Now()
	verdict := i.core.EstablishTrust(ctx, req)
	elapsed := time.Since(start)

	tags := verdictTags(verdict)
	i.metrics.IncCounter(MetricVerdicts, tags)
	i.metrics.ObserveHistogram(MetricValidationSeconds, elapsed.Seconds(), map[string]string{"outcome": tags["outcome"]})

	span.SetTag("jwttai.outcome", verdict.Outcome.String())
	span.SetTag("http.status_code", verdict.Status())
	if verdict.Outcome == core.OutcomeRejected {
		span.SetTag("jwttai.failure", verdict.Failure.String())
		span.RecordError(verdict.Err)
	}

	return verdict
}

func verdictTags(v core.Verdict) map[string]string {
	failure := ""
	if v.Outcome == core.OutcomeRejected {
		failure = v.Failure.String()
	}
	return map[string]string{"outcome": v.Outcome.String(), "failure": failure}
}

// EstablishTrust evaluates r. Requests IsTarget rejects are NotIntercepted.
func (i *Interceptor) EstablishTrust(r *http.Request) core.Verdict {
	if i.exclusionURLHandler != nil && i.exclusionURLHandler(r) {
		return core.NotIntercepted()
	}
	return i.Evaluate(r.Context(), NewRequest(r, i.trustedProxies))
}

// Handler wraps next with trust association.
func (i *Interceptor) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verdict := i.EstablishTrust(r)

		switch verdict.Outcome {
		case core.OutcomeAuthenticated:
			if i.logger != nil {
				i.logger.Debug("trust established, setting identity in context",
					"identity", verdict.Identity,
					"method", r.Method,
					"path", r.URL.Path)
			}
			next.ServeHTTP(w, r.WithContext(core.WithVerdict(r.Context(), verdict)))

		case core.OutcomeRejected:
			if i.logger != nil {
				i.logger.Warn("bearer token rejected",
					"failure", verdict.Failure.String(),
					"status", verdict.Status(),
					"method", r.Method,
					"path", r.URL.Path)
			}
			i.errorHandler(w, r, &RejectedError{Verdict: verdict})

		default:
			next.ServeHTTP(w, r)
		}
	})
}

// GetIdentity returns the identity Handler stored in the request context.
func GetIdentity(ctx context.Context) (string, error) {
	return core.GetIdentity(ctx)
}

// HasIdentity reports whether Handler authenticated the request.
func HasIdentity(ctx context.Context) bool {
	return core.HasIdentity(ctx)
}

// Version returns the interceptor version string.
func (i *Interceptor) Version() string {
	return version
}

// Type returns the fully qualified type name of the interceptor.
func (i *Interceptor) Type() string {
	t := reflect.TypeOf(*i)
	return t.PkgPath() + "." + t.Name()
}

// ErrClosed is returned by Initialize and WatchKeySource after Close.
var ErrClosed = errors.New("interceptor is closed")

// Close stops background work started for the interceptor, such as key
// source watchers. Requests are still answered with the last anchor.
func (i *Interceptor) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	closers := i.closers
	i.closers = nil
	i.mu.Unlock()

	var errs []error
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (i *Interceptor) addCloser(fn func() error) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrClosed
	}
	i.closers = append(i.closers, fn)
	return nil
}
