package trust

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signRS256(t *testing.T, key *rsa.PrivateKey, payload string) []byte {
	t.Helper()
	signed, err := jws.Sign([]byte(payload), jws.WithKey(jwa.RS256(), key))
	require.NoError(t, err)
	return signed
}

func TestNewKeyAnchor(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	t.Run("accepts a public key", func(t *testing.T) {
		anchor, err := NewKeyAnchor(&rsaKey.PublicKey, "test")
		require.NoError(t, err)
		assert.Equal(t, KindPublicKey, anchor.Kind())
		assert.Equal(t, "RSA", anchor.KeyType())
		assert.Equal(t, "test", anchor.Source())
	})

	t.Run("reduces a private key to its public half", func(t *testing.T) {
		anchor, err := NewKeyAnchor(rsaKey, "test")
		require.NoError(t, err)

		fromPublic, err := NewKeyAnchor(&rsaKey.PublicKey, "test")
		require.NoError(t, err)

		a, err := anchor.Thumbprint()
		require.NoError(t, err)
		b, err := fromPublic.Thumbprint()
		require.NoError(t, err)
		assert.Equal(t, b, a)
	})

	t.Run("accepts a jwk key", func(t *testing.T) {
		ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		key, err := jwk.Import(&ecKey.PublicKey)
		require.NoError(t, err)

		anchor, err := NewKeyAnchor(key, "test")
		require.NoError(t, err)
		assert.Equal(t, "EC", anchor.KeyType())
	})

	t.Run("rejects symmetric keys", func(t *testing.T) {
		_, err := NewKeyAnchor([]byte("shared-secret-shared-secret-32by"), "test")
		assert.ErrorIs(t, err, ErrSymmetricKey)
	})

	t.Run("rejects nil", func(t *testing.T) {
		_, err := NewKeyAnchor(nil, "test")
		assert.ErrorIs(t, err, ErrNoKey)
	})
}

func TestAnchor_VerifyWithKey(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	anchor, err := NewKeyAnchor(&rsaKey.PublicKey, "test")
	require.NoError(t, err)

	algorithms := []jwa.SignatureAlgorithm{jwa.ES256(), jwa.RS256()}

	t.Run("verifies a token signed by the anchor key", func(t *testing.T) {
		payload, err := anchor.Verify(context.Background(), signRS256(t, rsaKey, `{"sub":"alice"}`), algorithms)
		require.NoError(t, err)
		assert.JSONEq(t, `{"sub":"alice"}`, string(payload))
	})

	t.Run("rejects a token signed by another key", func(t *testing.T) {
		_, err := anchor.Verify(context.Background(), signRS256(t, otherKey, `{"sub":"alice"}`), algorithms)
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})

	t.Run("rejects a token whose algorithm is not allowed", func(t *testing.T) {
		_, err := anchor.Verify(context.Background(), signRS256(t, rsaKey, `{}`), []jwa.SignatureAlgorithm{jwa.PS256()})
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})

	t.Run("rejects when no algorithm is allowed", func(t *testing.T) {
		_, err := anchor.Verify(context.Background(), signRS256(t, rsaKey, `{}`), nil)
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})
}

func TestAnchor_VerifyDelegated(t *testing.T) {
	token := []byte("a.b.c")

	t.Run("returns the consumer payload", func(t *testing.T) {
		registry := NewRegistry()
		require.NoError(t, registry.Register("racf", ConsumerFunc(func(context.Context, []byte) ([]byte, error) {
			return []byte(`{"sub":"alice"}`), nil
		})))

		anchor, err := NewDelegatedAnchor("racf", registry, 0)
		require.NoError(t, err)
		assert.Equal(t, KindDelegated, anchor.Kind())
		assert.Equal(t, "racf", anchor.ConsumerName())
		assert.Equal(t, DefaultConsumerTimeout, anchor.timeout)

		payload, err := anchor.Verify(context.Background(), token, nil)
		require.NoError(t, err)
		assert.Equal(t, `{"sub":"alice"}`, string(payload))
	})

	t.Run("unknown consumer", func(t *testing.T) {
		anchor, err := NewDelegatedAnchor("missing", NewRegistry(), time.Second)
		require.NoError(t, err)

		_, err = anchor.Verify(context.Background(), token, nil)
		assert.ErrorIs(t, err, ErrConsumerNotFound)
	})

	t.Run("signature mismatch is passed through", func(t *testing.T) {
		registry := NewRegistry()
		require.NoError(t, registry.Register("racf", ConsumerFunc(func(context.Context, []byte) ([]byte, error) {
			return nil, ErrSignatureMismatch
		})))
		anchor, err := NewDelegatedAnchor("racf", registry, time.Second)
		require.NoError(t, err)

		_, err = anchor.Verify(context.Background(), token, nil)
		assert.ErrorIs(t, err, ErrSignatureMismatch)
		assert.NotErrorIs(t, err, ErrConsumerUnavailable)
	})

	t.Run("other failures become unavailable", func(t *testing.T) {
		registry := NewRegistry()
		require.NoError(t, registry.Register("racf", ConsumerFunc(func(context.Context, []byte) ([]byte, error) {
			return nil, errors.New("connection refused")
		})))
		anchor, err := NewDelegatedAnchor("racf", registry, time.Second)
		require.NoError(t, err)

		_, err = anchor.Verify(context.Background(), token, nil)
		assert.ErrorIs(t, err, ErrConsumerUnavailable)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("slow consumers are cut off by the timeout", func(t *testing.T) {
		registry := NewRegistry()
		require.NoError(t, registry.Register("slow", ConsumerFunc(func(ctx context.Context, _ []byte) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})))
		anchor, err := NewDelegatedAnchor("slow", registry, 20*time.Millisecond)
		require.NoError(t, err)

		start := time.Now()
		_, err = anchor.Verify(context.Background(), token, nil)
		assert.ErrorIs(t, err, ErrConsumerUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("consumers ignoring the context are cut off by the timeout", func(t *testing.T) {
		release := make(chan struct{})
		t.Cleanup(func() { close(release) })

		registry := NewRegistry()
		require.NoError(t, registry.Register("stuck", ConsumerFunc(func(context.Context, []byte) ([]byte, error) {
			<-release
			return []byte(`{"sub":"alice"}`), nil
		})))
		anchor, err := NewDelegatedAnchor("stuck", registry, 50*time.Millisecond)
		require.NoError(t, err)

		start := time.Now()
		payload, err := anchor.Verify(context.Background(), token, nil)
		assert.Nil(t, payload)
		assert.ErrorIs(t, err, ErrConsumerUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("invalid construction", func(t *testing.T) {
		_, err := NewDelegatedAnchor("", NewRegistry(), 0)
		assert.Error(t, err)
		_, err = NewDelegatedAnchor("racf", nil, 0)
		assert.Error(t, err)
		_, err = NewDelegatedAnchor("racf", NewRegistry(), -time.Second)
		assert.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	consumer := ConsumerFunc(func(context.Context, []byte) ([]byte, error) { return nil, nil })

	require.NoError(t, registry.Register("b", consumer))
	require.NoError(t, registry.Register("a", consumer))
	assert.Equal(t, []string{"a", "b"}, registry.Names())

	assert.Error(t, registry.Register("", consumer))
	assert.Error(t, registry.Register("c", nil))

	registry.Unregister("a")
	_, err := registry.Resolve("a")
	assert.ErrorIs(t, err, ErrConsumerNotFound)

	got, err := registry.Resolve("b")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestKeySetConsumer(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	private, err := jwk.Import(rsaKey)
	require.NoError(t, err)
	require.NoError(t, private.Set(jwk.KeyIDKey, "kid-1"))
	require.NoError(t, private.Set(jwk.AlgorithmKey, jwa.RS256()))

	public, err := jwk.PublicKeyOf(private)
	require.NoError(t, err)

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))

	consumer, err := NewKeySetConsumer(set)
	require.NoError(t, err)

	signed, err := jws.Sign([]byte(`{"sub":"alice"}`), jws.WithKey(jwa.RS256(), private))
	require.NoError(t, err)

	payload, err := consumer.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sub":"alice"}`, string(payload))

	tampered := append([]byte{}, signed...)
	tampered[len(tampered)-2] ^= 0x01
	_, err = consumer.Verify(context.Background(), tampered)
	assert.ErrorIs(t, err, ErrSignatureMismatch)

	_, err = NewKeySetConsumer(jwk.NewSet())
	assert.Error(t, err)
}
