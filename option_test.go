package jwttai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicsdev/go-jwt-tai/internal/tokentest"
	"github.com/cicsdev/go-jwt-tai/keystore"
	"github.com/cicsdev/go-jwt-tai/trust"
	"github.com/cicsdev/go-jwt-tai/validator"
)

func Test_New_OptionsValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{
			name: "no options",
			opts: []Option{},
		},
		{
			name:    "nil validator",
			opts:    []Option{WithValidator(nil)},
			wantErr: ErrValidatorNil,
		},
		{
			name:    "nil resolver",
			opts:    []Option{WithResolver(nil)},
			wantErr: ErrResolverNil,
		},
		{
			name:    "nil loader",
			opts:    []Option{WithLoader(nil)},
			wantErr: ErrLoaderNil,
		},
		{
			name:    "nil error handler",
			opts:    []Option{WithErrorHandler(nil)},
			wantErr: ErrErrorHandlerNil,
		},
		{
			name:    "empty exclusion URLs",
			opts:    []Option{WithExclusionURLs([]string{})},
			wantErr: ErrExclusionURLsEmpty,
		},
		{
			name: "valid exclusion URLs",
			opts: []Option{WithExclusionURLs([]string{"/health", "/metrics"})},
		},
		{
			name:    "nil logger",
			opts:    []Option{WithLogger(nil)},
			wantErr: ErrLoggerNil,
		},
		{
			name:    "nil metrics",
			opts:    []Option{WithMetrics(nil)},
			wantErr: ErrMetricsNil,
		},
		{
			name:    "nil tracer",
			opts:    []Option{WithTracer(nil)},
			wantErr: ErrTracerNil,
		},
		{
			name: "nil trusted proxies is ignored",
			opts: []Option{WithTrustedProxies(nil)},
		},
		{
			name: "all options",
			opts: []Option{
				WithValidator(mustValidator(t)),
				WithResolver(trust.NewRegistry()),
				WithKeystoreOptions(keystore.WithBaseDir(t.TempDir())),
				WithErrorHandler(DefaultErrorHandler),
				WithExclusionURLs([]string{"/health"}),
				WithLogger(&mockLogger{}),
				WithMetrics(&NoopMetrics{}),
				WithTracer(&NoopTracer{}),
				WithRFC7239Proxy(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, err := New(tt.opts...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, i)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, i)
		})
	}
}

func mustValidator(t *testing.T, opts ...validator.Option) *validator.Validator {
	t.Helper()
	v, err := validator.New(opts...)
	require.NoError(t, err)
	return v
}

func TestWithValidator(t *testing.T) {
	key := tokentest.RSAKey(t)
	i := initializedInterceptor(t, key, WithValidator(mustValidator(t, validator.WithIssuer("partner"))))

	token := tokentest.Sign(t, key, tokentest.ValidClaims().With("iss", "partner"))
	req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	i.Handler(echoIdentity()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tokentest.Subject, rec.Body.String())
}

func TestWithResolver(t *testing.T) {
	key := tokentest.RSAKey(t)
	local := tokentest.Anchor(t, key)

	registry := trust.NewRegistry()
	require.NoError(t, registry.Register("keyring", trust.ConsumerFunc(func(ctx context.Context, token []byte) ([]byte, error) {
		return local.Verify(ctx, token, []jwa.SignatureAlgorithm{jwa.RS256()})
	})))

	i, err := New(WithResolver(registry))
	require.NoError(t, err)
	require.NoError(t, i.Initialize(context.Background(), keystore.Config{
		Kind:         keystore.SourceDelegatedConsumer,
		ConsumerName: "keyring",
	}))

	health := i.Health()
	assert.Equal(t, "delegated", health.AnchorKind)
	assert.Equal(t, "consumer:keyring", health.Source)

	req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	req.Header.Set("Authorization", "Bearer "+tokentest.Valid(t, key))
	rec := httptest.NewRecorder()
	i.Handler(echoIdentity()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tokentest.Subject, rec.Body.String())
}

func TestWithExclusionURLs(t *testing.T) {
	i, err := New(WithExclusionURLs([]string{"/health", "https://example.com/metrics"}))
	require.NoError(t, err)

	tests := []struct {
		target string
		want   bool
	}{
		{"https://example.com/health", true},
		{"https://other.example.com/health", true},
		{"https://example.com/metrics", true},
		{"https://other.example.com/metrics", false},
		{"https://example.com/api", false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.want, i.exclusionURLHandler(req))
		})
	}
}
