package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/memberkeys/internal/keys"
	"github.com/dropDatabas3/memberkeys/internal/keystore"
	"github.com/dropDatabas3/memberkeys/internal/metrics"
)

type envelope struct {
	Action string `json:"action"`
	Amount int64  `json:"amount"`
	Target string `json:"target"`
}

func newEngine(t *testing.T, opts ...Option) (*Engine, keystore.KeyStore) {
	t.Helper()
	store := keystore.NewMemoryStore()
	f, err := NewFactory(store, append([]Option{WithLogger(zap.NewNop())}, opts...)...)
	require.NoError(t, err)
	return f.ForMember("m:test"), store
}

func TestEngine_SignVerifyRoundTrip(t *testing.T) {
	t.Parallel()
	for _, alg := range []keys.Algorithm{keys.AlgorithmEd25519, keys.AlgorithmRS256} {
		t.Run(string(alg), func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			e, _ := newEngine(t, WithAlgorithm(alg))

			key, err := e.GenerateKey(ctx, keys.LevelStandard)
			require.NoError(t, err)
			require.Equal(t, alg, key.Algorithm)
			require.Equal(t, keys.LevelStandard, key.Level)

			s, err := e.CreateSigner(ctx, keys.LevelStandard)
			require.NoError(t, err)
			require.Equal(t, key.ID, s.KeyID())

			msg := envelope{Action: "transfer", Amount: 10, Target: "acct-1"}
			sig, err := s.SignMessage(msg)
			require.NoError(t, err)

			v, err := e.CreateVerifier(ctx, key.ID)
			require.NoError(t, err)
			require.NoError(t, v.VerifyMessage(msg, sig))

			msg.Amount = 11
			require.ErrorIs(t, v.VerifyMessage(msg, sig), keys.ErrSignatureVerificationFailed)
		})
	}
}

func TestEngine_NewKeyDoesNotInvalidateOld(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newEngine(t)

	oldKey, err := e.GenerateKey(ctx, keys.LevelLow)
	require.NoError(t, err)
	oldSigner, err := e.CreateSigner(ctx, keys.LevelLow)
	require.NoError(t, err)
	sig, err := oldSigner.Sign([]byte("hello"))
	require.NoError(t, err)

	newKey, err := e.GenerateKey(ctx, keys.LevelLow)
	require.NoError(t, err)

	current, err := e.CreateSigner(ctx, keys.LevelLow)
	require.NoError(t, err)
	require.Equal(t, newKey.ID, current.KeyID())

	byID, err := e.CreateSignerByID(ctx, oldKey.ID)
	require.NoError(t, err)
	require.Equal(t, oldKey.ID, byID.KeyID())

	v, err := e.CreateVerifier(ctx, oldKey.ID)
	require.NoError(t, err)
	require.NoError(t, v.Verify([]byte("hello"), sig))

	pub, err := e.PublicKeys(ctx)
	require.NoError(t, err)
	require.Len(t, pub, 2)
	require.Equal(t, oldKey.ID, pub[0].ID)
	require.Equal(t, newKey.ID, pub[1].ID)
}

func TestEngine_LevelAtLeast(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newEngine(t)

	_, err := e.CreateSignerForLevelAtLeast(ctx, keys.LevelLow)
	require.ErrorIs(t, err, keys.ErrKeyNotFound)
	var nf *keys.KeyNotFoundError
	require.True(t, errors.As(err, &nf))
	require.Equal(t, keys.LevelPrivileged, nf.Level)

	kp, err := e.GenerateKey(ctx, keys.LevelPrivileged)
	require.NoError(t, err)
	kl, err := e.GenerateKey(ctx, keys.LevelLow)
	require.NoError(t, err)

	s, err := e.CreateSignerForLevelAtLeast(ctx, keys.LevelPrivileged)
	require.NoError(t, err)
	require.Equal(t, kp.ID, s.KeyID(), "never falls back below the requested level")

	s, err = e.CreateSignerForLevelAtLeast(ctx, keys.LevelStandard)
	require.NoError(t, err)
	require.Equal(t, kp.ID, s.KeyID())

	s, err = e.CreateSignerForLevelAtLeast(ctx, keys.LevelLow)
	require.NoError(t, err)
	require.Equal(t, kl.ID, s.KeyID(), "lowest satisfying level wins")
}

func TestEngine_LevelAtLeastOnlyLowerExists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newEngine(t)

	_, err := e.GenerateKey(ctx, keys.LevelStandard)
	require.NoError(t, err)

	_, err = e.CreateSignerForLevelAtLeast(ctx, keys.LevelPrivileged)
	require.ErrorIs(t, err, keys.ErrKeyNotFound)
}

// brokenStore falla con un error de infraestructura en GetByLevel.
type brokenStore struct {
	keystore.KeyStore
	err error
}

func (b brokenStore) GetByLevel(context.Context, string, keys.Level) (keys.KeyPair, error) {
	return keys.KeyPair{}, b.err
}

func TestEngine_LevelAtLeastPropagatesStoreErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("disk on fire")
	f, err := NewFactory(brokenStore{KeyStore: keystore.NewMemoryStore(), err: boom}, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	_, err = f.ForMember("m").CreateSignerForLevelAtLeast(context.Background(), keys.LevelLow)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, keys.ErrKeyNotFound)
}

func TestEngine_InvalidAlgorithm(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newEngine(t, WithAlgorithm(keys.AlgorithmInvalid))

	key, err := e.GenerateKey(ctx, keys.LevelLow)
	require.NoError(t, err, "generation is allowed for negative testing")
	require.Equal(t, keys.AlgorithmInvalid, key.Algorithm)

	_, err = e.CreateSigner(ctx, keys.LevelLow)
	require.ErrorIs(t, err, keys.ErrUnsupportedAlgorithm)
	_, err = e.CreateSignerByID(ctx, key.ID)
	require.ErrorIs(t, err, keys.ErrUnsupportedAlgorithm)
	_, err = e.CreateSignerForLevelAtLeast(ctx, keys.LevelLow)
	require.ErrorIs(t, err, keys.ErrUnsupportedAlgorithm)
	_, err = e.CreateVerifier(ctx, key.ID)
	require.ErrorIs(t, err, keys.ErrUnsupportedAlgorithm)
}

func TestEngine_InvalidStoredKeyRefusedByValidEngine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := keystore.NewMemoryStore()

	bad, err := NewFactory(store, WithAlgorithm(keys.AlgorithmInvalid), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	key, err := bad.ForMember("m").GenerateKey(ctx, keys.LevelLow)
	require.NoError(t, err)

	good, err := NewFactory(store, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	_, err = good.ForMember("m").CreateVerifier(ctx, key.ID)
	require.ErrorIs(t, err, keys.ErrUnsupportedAlgorithm)
}

func TestEngine_UnknownAlgorithm(t *testing.T) {
	t.Parallel()
	_, err := NewFactory(keystore.NewMemoryStore(), WithAlgorithm("ES256"))
	require.ErrorIs(t, err, keys.ErrUnsupportedAlgorithm)
}

func TestEngine_Expiration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var mu sync.Mutex
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	store := keystore.NewMemoryStore(keystore.WithClock(clock))
	f, err := NewFactory(store, WithClock(clock), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	e := f.ForMember("m")

	_, err = e.GenerateKeyWithExpiration(ctx, keys.LevelLow, now.Add(-time.Minute).UnixMilli())
	require.ErrorIs(t, err, keys.ErrKeyExpired)

	durable, err := e.GenerateKey(ctx, keys.LevelStandard)
	require.NoError(t, err)
	short, err := e.GenerateKeyTTL(ctx, keys.LevelLow, time.Minute)
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Minute).UnixMilli(), short.ExpiresAtMs)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	_, err = e.CreateSigner(ctx, keys.LevelLow)
	require.ErrorIs(t, err, keys.ErrKeyNotFound)
	_, err = e.CreateVerifier(ctx, short.ID)
	require.ErrorIs(t, err, keys.ErrKeyNotFound)

	pub, err := e.PublicKeys(ctx)
	require.NoError(t, err)
	require.Len(t, pub, 1)
	require.Equal(t, durable.ID, pub[0].ID)

	_, err = e.GenerateKeyTTL(ctx, keys.LevelLow, 0)
	require.Error(t, err)
}

func TestEngine_SignerUsesPreviousKeyWhenNewestExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var mu sync.Mutex
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	store := keystore.NewMemoryStore(keystore.WithClock(clock))
	f, err := NewFactory(store, WithClock(clock), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	e := f.ForMember("m")

	durable, err := e.GenerateKey(ctx, keys.LevelPrivileged)
	require.NoError(t, err)
	_, err = e.GenerateKeyTTL(ctx, keys.LevelPrivileged, time.Second)
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(time.Minute)
	mu.Unlock()

	s, err := e.CreateSigner(ctx, keys.LevelPrivileged)
	require.NoError(t, err)
	require.Equal(t, durable.ID, s.KeyID())

	s, err = e.CreateSignerForLevelAtLeast(ctx, keys.LevelStandard)
	require.NoError(t, err)
	require.Equal(t, durable.ID, s.KeyID())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestEngine_GenerateUsesFactoryRandom(t *testing.T) {
	t.Parallel()
	e, store := newEngine(t, WithRandom(failingReader{}))
	_, err := e.GenerateKey(context.Background(), keys.LevelLow)
	require.ErrorContains(t, err, "entropy exhausted")

	list, err := store.KeyList(context.Background(), e.MemberID())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestEngine_Metrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := metrics.NewKeys()
	e, _ := newEngine(t, WithMetrics(m))

	key, err := e.GenerateKey(ctx, keys.LevelLow)
	require.NoError(t, err)
	s, err := e.CreateSigner(ctx, keys.LevelLow)
	require.NoError(t, err)
	sig, err := s.Sign([]byte("x"))
	require.NoError(t, err)
	v, err := e.CreateVerifier(ctx, key.ID)
	require.NoError(t, err)
	require.Error(t, v.Verify([]byte("y"), sig))
	_, err = e.CreateSigner(ctx, keys.LevelPrivileged)
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Generated.WithLabelValues("ED25519", "LOW")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Signatures.WithLabelValues("ED25519")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.VerifyFailures.WithLabelValues("ED25519")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LookupMisses.WithLabelValues(metrics.LookupLevel)))
}

func TestEngine_ConcurrentMembersAndSigners(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f, err := NewFactory(keystore.NewMemoryStore(), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := f.ForMember("m-" + string(rune('a'+i)))
			key, err := e.GenerateKey(ctx, keys.LevelStandard)
			if err != nil {
				errs <- err
				return
			}
			s, err := e.CreateSigner(ctx, keys.LevelStandard)
			if err != nil {
				errs <- err
				return
			}
			v, err := e.CreateVerifier(ctx, key.ID)
			if err != nil {
				errs <- err
				return
			}
			for j := 0; j < 4; j++ {
				sig, err := s.Sign([]byte{byte(j)})
				if err == nil {
					err = v.Verify([]byte{byte(j)}, sig)
				}
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
