package jwttai

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicsdev/go-jwt-tai/core"
	"github.com/cicsdev/go-jwt-tai/internal/tokentest"
	"github.com/cicsdev/go-jwt-tai/keystore"
	"github.com/cicsdev/go-jwt-tai/trust"
	"github.com/cicsdev/go-jwt-tai/validator"
)

// mockLogger is a mock implementation of Logger for testing.
type mockLogger struct {
	mu    sync.Mutex
	calls []logCall
}

type logCall struct {
	level string
	msg   string
	args  []any
}

func (m *mockLogger) record(level, msg string, args []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, logCall{level, msg, args})
}

func (m *mockLogger) Debug(msg string, args ...any) { m.record("debug", msg, args) }
func (m *mockLogger) Info(msg string, args ...any)  { m.record("info", msg, args) }
func (m *mockLogger) Warn(msg string, args ...any)  { m.record("warn", msg, args) }
func (m *mockLogger) Error(msg string, args ...any) { m.record("error", msg, args) }

func (m *mockLogger) messages(level string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c.level == level {
			out = append(out, c.msg)
		}
	}
	return out
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := GetIdentity(r.Context())
		if err != nil {
			identity = "anonymous"
		}
		_, _ = io.WriteString(w, identity)
	})
}

func initializedInterceptor(t *testing.T, key *rsa.PrivateKey, opts ...Option) *Interceptor {
	t.Helper()
	i, err := New(opts...)
	require.NoError(t, err)
	require.NoError(t, i.InitializeWithAnchor(tokentest.Anchor(t, key)))
	return i
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		i, err := New()
		require.NoError(t, err)

		assert.NotNil(t, i.core)
		assert.NotNil(t, i.errorHandler)
		assert.IsType(t, &NoopMetrics{}, i.metrics)
		assert.IsType(t, &NoopTracer{}, i.tracer)
		assert.Nil(t, i.trustedProxies)
		assert.Equal(t, core.StateUninitialized, i.Health().State)
	})

	t.Run("invalid option", func(t *testing.T) {
		_, err := New(WithLogger(nil))
		assert.ErrorIs(t, err, ErrLoggerNil)
		assert.EqualError(t, err, "invalid option: logger cannot be nil")
	})

	t.Run("version and type", func(t *testing.T) {
		i, err := New()
		require.NoError(t, err)

		assert.Equal(t, "JWTTAI-1.0", i.Version())
		assert.Equal(t, "github.com/cicsdev/go-jwt-tai.Interceptor", i.Type())
	})
}

func TestInterceptor_Handler(t *testing.T) {
	key := tokentest.RSAKey(t)
	valid := tokentest.Valid(t, key)

	testCases := []struct {
		name           string
		uninitialized  bool
		anchor         func(t *testing.T) *trust.Anchor
		opts           []Option
		target         string
		headers        map[string]string
		wantStatus     int
		wantBody       string
		wantChallenge  bool
		wantFailureKey string
	}{
		{
			name:       "valid token over TLS",
			target:     "https://example.com/api",
			headers:    map[string]string{"Authorization": "Bearer " + valid},
			wantStatus: http.StatusOK,
			wantBody:   tokentest.Subject,
		},
		{
			name:       "lowercase scheme passes through",
			target:     "https://example.com/api",
			headers:    map[string]string{"Authorization": "bearer " + valid},
			wantStatus: http.StatusOK,
			wantBody:   "anonymous",
		},
		{
			name:          "uninitialized passes through",
			uninitialized: true,
			target:        "https://example.com/api",
			headers:       map[string]string{"Authorization": "Bearer " + valid},
			wantStatus:    http.StatusOK,
			wantBody:      "anonymous",
		},
		{
			name:       "plain HTTP passes through",
			target:     "http://example.com/api",
			headers:    map[string]string{"Authorization": "Bearer " + valid},
			wantStatus: http.StatusOK,
			wantBody:   "anonymous",
		},
		{
			name:       "no authorization header passes through",
			target:     "https://example.com/api",
			wantStatus: http.StatusOK,
			wantBody:   "anonymous",
		},
		{
			name:       "basic auth passes through",
			target:     "https://example.com/api",
			headers:    map[string]string{"Authorization": "Basic YWxpY2U6c2VjcmV0"},
			wantStatus: http.StatusOK,
			wantBody:   "anonymous",
		},
		{
			name:       "opaque bearer token passes through",
			target:     "https://example.com/api",
			headers:    map[string]string{"Authorization": "Bearer opaque-token"},
			wantStatus: http.StatusOK,
			wantBody:   "anonymous",
		},
		{
			name:           "tampered signature is rejected",
			target:         "https://example.com/api",
			headers:        map[string]string{"Authorization": "Bearer " + tokentest.FlipSignatureByte(t, valid)},
			wantStatus:     http.StatusUnauthorized,
			wantChallenge:  true,
			wantFailureKey: "invalid_signature",
		},
		{
			name:   "expired token is rejected",
			target: "https://example.com/api",
			headers: map[string]string{"Authorization": "Bearer " + tokentest.Sign(t, key,
				tokentest.ValidClaims().With("exp", time.Now().Add(-time.Hour)))},
			wantStatus:     http.StatusUnauthorized,
			wantChallenge:  true,
			wantFailureKey: "token_expired",
		},
		{
			name:   "wrong issuer is rejected",
			target: "https://example.com/api",
			headers: map[string]string{"Authorization": "Bearer " + tokentest.Sign(t, key,
				tokentest.ValidClaims().With("iss", "someone-else"))},
			wantStatus:     http.StatusUnauthorized,
			wantChallenge:  true,
			wantFailureKey: "invalid_issuer",
		},
		{
			name: "missing delegated consumer is a server error",
			anchor: func(t *testing.T) *trust.Anchor {
				anchor, err := trust.NewDelegatedAnchor("missing", trust.NewRegistry(), time.Second)
				require.NoError(t, err)
				return anchor
			},
			target:         "https://example.com/api",
			headers:        map[string]string{"Authorization": "Bearer " + valid},
			wantStatus:     http.StatusInternalServerError,
			wantFailureKey: "consumer_error",
		},
		{
			name:       "excluded path is never intercepted",
			opts:       []Option{WithExclusionURLs([]string{"/public"})},
			target:     "https://example.com/public",
			headers:    map[string]string{"Authorization": "Bearer " + tokentest.FlipSignatureByte(t, valid)},
			wantStatus: http.StatusOK,
			wantBody:   "anonymous",
		},
		{
			name:       "trusted proxy reports TLS",
			opts:       []Option{WithStandardProxy()},
			target:     "http://backend:8080/api",
			headers:    map[string]string{"Authorization": "Bearer " + valid, "X-Forwarded-Proto": "https"},
			wantStatus: http.StatusOK,
			wantBody:   tokentest.Subject,
		},
		{
			name:       "untrusted proxy header is ignored",
			target:     "http://backend:8080/api",
			headers:    map[string]string{"Authorization": "Bearer " + valid, "X-Forwarded-Proto": "https"},
			wantStatus: http.StatusOK,
			wantBody:   "anonymous",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			i, err := New(tc.opts...)
			require.NoError(t, err)

			if !tc.uninitialized {
				anchor := tokentest.Anchor(t, key)
				if tc.anchor != nil {
					anchor = tc.anchor(t)
				}
				require.NoError(t, i.InitializeWithAnchor(anchor))
			}

			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			i.Handler(echoIdentity()).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, rec.Body.String())
			}
			if tc.wantChallenge {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `Bearer error="invalid_token"`)
			} else {
				assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
			}
			if tc.wantFailureKey != "" {
				var body ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tc.wantFailureKey, body.ErrorCode)
				assert.NotContains(t, rec.Body.String(), valid)
			}
		})
	}
}

func TestInterceptor_HandlerSetsClaims(t *testing.T) {
	key := tokentest.RSAKey(t)
	i := initializedInterceptor(t, key)

	var got *validator.Claims
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		claims, err := core.GetClaims[*validator.Claims](r.Context())
		require.NoError(t, err)
		got = claims
		assert.True(t, HasIdentity(r.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	req.Header.Set("Authorization", "Bearer "+tokentest.Valid(t, key))
	i.Handler(next).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, tokentest.Subject, got.Subject)
	assert.Equal(t, tokentest.Issuer, got.Issuer)
}

func TestInterceptor_CustomErrorHandler(t *testing.T) {
	key := tokentest.RSAKey(t)

	var handled error
	i := initializedInterceptor(t, key, WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		handled = err
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	req.Header.Set("Authorization", "Bearer "+tokentest.FlipSignatureByte(t, tokentest.Valid(t, key)))
	rec := httptest.NewRecorder()
	i.Handler(echoIdentity()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.ErrorIs(t, handled, ErrRejected)
	assert.ErrorIs(t, handled, validator.ErrTokenInvalid)

	var rejected *RejectedError
	require.ErrorAs(t, handled, &rejected)
	assert.Equal(t, validator.BadSignature, rejected.Verdict.Failure)
}

func TestInterceptor_IsTarget(t *testing.T) {
	key := tokentest.RSAKey(t)
	i := initializedInterceptor(t, key, WithExclusionURLs([]string{"/health"}))

	req := httptest.NewRequest(http.MethodGet, "https://example.com/api", nil)
	req.Header.Set("Authorization", "Bearer "+tokentest.Valid(t, key))
	assert.True(t, i.IsTarget(req))

	excluded := httptest.NewRequest(http.MethodGet, "https://example.com/health", nil)
	excluded.Header.Set("Authorization", "Bearer "+tokentest.Valid(t, key))
	assert.False(t, i.IsTarget(excluded))

	plain := httptest.NewRequest(http.MethodGet, "http://example.com/api", nil)
	plain.Header.Set("Authorization", "Bearer "+tokentest.Valid(t, key))
	assert.False(t, i.IsTarget(plain))
}

func TestInterceptor_Initialize(t *testing.T) {
	key := tokentest.RSAKey(t)
	loadErr := errors.New("keystore unreadable")

	var mu sync.Mutex
	fail := true
	loader := func(_ context.Context, _ keystore.Config, _ ...keystore.Option) (*trust.Anchor, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return nil, loadErr
		}
		return tokentest.Anchor(t, key), nil
	}

	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)
	logger := &mockLogger{}

	i, err := New(WithLoader(loader), WithMetrics(metrics), WithLogger(logger))
	require.NoError(t, err)

	err = i.Initialize(context.Background(), keystore.DefaultConfig())
	assert.ErrorIs(t, err, loadErr)
	assert.Equal(t, core.StateUninitialized, i.Health().State)
	assert.Equal(t, loadErr.Error(), i.Health().LastError)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.gauges[MetricInitialized].With(nil)))
	assert.NotEmpty(t, logger.messages("error"))

	mu.Lock()
	fail = false
	mu.Unlock()

	require.NoError(t, i.Initialize(context.Background(), keystore.DefaultConfig()))
	health := i.Health()
	assert.Equal(t, core.StateInitialized, health.State)
	assert.Empty(t, health.LastError)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.gauges[MetricInitialized].With(nil)))
}

func TestInterceptor_Metrics(t *testing.T) {
	key := tokentest.RSAKey(t)
	metrics := NewPrometheusMetrics(prometheus.NewRegistry())
	i := initializedInterceptor(t, key, WithMetrics(metrics))

	send := func(target, authorization string) {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		i.Handler(echoIdentity()).ServeHTTP(httptest.NewRecorder(), req)
	}

	send("https://example.com/", "Bearer "+tokentest.Valid(t, key))
	send("https://example.com/", "Bearer "+tokentest.Valid(t, key))
	send("https://example.com/", "Bearer "+tokentest.FlipSignatureByte(t, tokentest.Valid(t, key)))
	send("http://example.com/", "")

	verdicts := metrics.counters[MetricVerdicts]
	require.NotNil(t, verdicts)
	assert.Equal(t, 2.0, testutil.ToFloat64(verdicts.With(prometheus.Labels{"outcome": "authenticated", "failure": ""})))
	assert.Equal(t, 1.0, testutil.ToFloat64(verdicts.With(prometheus.Labels{"outcome": "rejected", "failure": "invalid_signature"})))
	assert.Equal(t, 1.0, testutil.ToFloat64(verdicts.With(prometheus.Labels{"outcome": "not_intercepted", "failure": ""})))

	histograms := metrics.histograms[MetricValidationSeconds]
	require.NotNil(t, histograms)
	assert.Equal(t, 2, testutil.CollectAndCount(histograms))
}

func TestInterceptor_Tracing(t *testing.T) {
	key := tokentest.RSAKey(t)
	tracer := &recordingTracer{}
	i := initializedInterceptor(t, key, WithTracer(tracer))

	req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	req.Header.Set("Authorization", "Bearer "+tokentest.FlipSignatureByte(t, tokentest.Valid(t, key)))
	i.Handler(echoIdentity()).ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, tracer.spans, 1)
	span := tracer.spans[0]
	assert.Equal(t, "jwttai.EstablishTrust", span.name)
	assert.True(t, span.finished)
	assert.Equal(t, "rejected", span.tags["jwttai.outcome"])
	assert.Equal(t, "invalid_signature", span.tags["jwttai.failure"])
	assert.Equal(t, http.StatusUnauthorized, span.tags["http.status_code"])
	assert.Error(t, span.err)
}

type recordingTracer struct {
	spans []*recordingSpan
}

func (r *recordingTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	span := &recordingSpan{name: name, tags: map[string]any{}}
	r.spans = append(r.spans, span)
	return ctx, span
}

type recordingSpan struct {
	name     string
	tags     map[string]any
	err      error
	finished bool
}

func (s *recordingSpan) Finish()                      { s.finished = true }
func (s *recordingSpan) SetTag(key string, value any) { s.tags[key] = value }
func (s *recordingSpan) RecordError(err error)        { s.err = err }

func TestInterceptor_HealthHandler(t *testing.T) {
	t.Run("uninitialized is unavailable", func(t *testing.T) {
		i, err := New()
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		i.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "uninitialized", body["state"])
		assert.Equal(t, false, body["healthy"])
		assert.Equal(t, "JWTTAI-1.0", body["version"])
		assert.NotContains(t, body, "initialized_at")
	})

	t.Run("initialized is healthy", func(t *testing.T) {
		i := initializedInterceptor(t, tokentest.RSAKey(t))

		rec := httptest.NewRecorder()
		i.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "initialized", body["state"])
		assert.Equal(t, true, body["healthy"])
		assert.Equal(t, "test", body["source"])
		assert.Equal(t, "public_key", body["anchor_kind"])
		assert.Contains(t, body, "initialized_at")
	})
}

func TestInterceptor_Close(t *testing.T) {
	i, err := New()
	require.NoError(t, err)

	var closed int
	require.NoError(t, i.addCloser(func() error {
		closed++
		return nil
	}))

	require.NoError(t, i.Close())
	require.NoError(t, i.Close())
	assert.Equal(t, 1, closed)

	err = i.Initialize(context.Background(), keystore.DefaultConfig())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, i.addCloser(func() error { return nil }), ErrClosed)
}

func TestInterceptor_ConcurrentRequests(t *testing.T) {
	key := tokentest.RSAKey(t)
	i := initializedInterceptor(t, key)
	handler := i.Handler(echoIdentity())
	token := tokentest.Valid(t, key)

	var wg sync.WaitGroup
	for n := 0; n < 20; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, strings.EqualFold(tokentest.Subject, rec.Body.String()))
		}()
	}
	wg.Wait()
}
