package keystore

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/memberkeys/internal/keys"
)

type countingStore struct {
	KeyStore
	byID atomic.Int32
}

func (c *countingStore) GetByID(ctx context.Context, memberID, keyID string) (keys.KeyPair, error) {
	c.byID.Add(1)
	return c.KeyStore.GetByID(ctx, memberID, keyID)
}

func TestCachedStore_HitsAndExpiry(t *testing.T) {
	t.Parallel()
	ctx, clock := context.Background(), newFakeClock()
	inner := &countingStore{KeyStore: NewMemoryStore(WithClock(clock.Now))}
	s := NewCachedStore(inner, time.Minute, WithClock(clock.Now))

	kp := newPair(t, keys.LevelStandard, clock.In(time.Second))
	require.NoError(t, s.Put(ctx, "m", kp))

	for i := 0; i < 3; i++ {
		got, err := s.GetByID(ctx, "m", kp.ID)
		require.NoError(t, err)
		require.Equal(t, kp.ID, got.ID)
	}
	require.EqualValues(t, 1, inner.byID.Load())

	clock.Advance(2 * time.Second)
	_, err := s.GetByID(ctx, "m", kp.ID)
	require.ErrorIs(t, err, keys.ErrKeyNotFound)
}

func TestCachedStore_MissesAreNotCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	inner := &countingStore{KeyStore: NewMemoryStore()}
	s := NewCachedStore(inner, time.Minute)

	_, err := s.GetByID(ctx, "m", "missing")
	require.ErrorIs(t, err, keys.ErrKeyNotFound)
	_, err = s.GetByID(ctx, "m", "missing")
	require.ErrorIs(t, err, keys.ErrKeyNotFound)
	require.EqualValues(t, 2, inner.byID.Load())
}

func TestOpen_Drivers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, closer, err := Open(ctx, Config{Driver: "memory"})
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)
	require.NoError(t, closer())

	s, closer, err = Open(ctx, Config{Driver: "fs", FSRoot: t.TempDir(), CacheTTL: time.Minute,
		MasterKey: "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="})
	require.NoError(t, err)
	require.IsType(t, &CachedStore{}, s)
	require.NoError(t, closer())

	_, _, err = Open(ctx, Config{Driver: "etcd"})
	require.Error(t, err)

	_, _, err = Open(ctx, Config{Driver: "memory", MasterKey: "short"})
	require.Error(t, err)
}
