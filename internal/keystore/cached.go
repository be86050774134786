package keystore

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/memberkeys/internal/keys"
)

// CachedStore pone un cache en proceso delante de GetByID, que es la búsqueda
// caliente al verificar firmas. GetByLevel y KeyList van siempre al store interno:
// la current puede cambiar en otro proceso.
type CachedStore struct {
	KeyStore
	c   *gocache.Cache
	now func() time.Time
}

func NewCachedStore(inner KeyStore, ttl time.Duration, opts ...Option) *CachedStore {
	o := buildOptions(opts)
	return &CachedStore{KeyStore: inner, c: gocache.New(ttl, time.Minute), now: o.now}
}

func cacheKey(memberID, keyID string) string { return memberID + "\x00" + keyID }

func (s *CachedStore) Put(ctx context.Context, memberID string, kp keys.KeyPair) error {
	if err := s.KeyStore.Put(ctx, memberID, kp); err != nil {
		return err
	}
	s.c.Delete(cacheKey(memberID, kp.ID))
	return nil
}

func (s *CachedStore) GetByID(ctx context.Context, memberID, keyID string) (keys.KeyPair, error) {
	k := cacheKey(memberID, keyID)
	if v, ok := s.c.Get(k); ok {
		kp := v.(keys.KeyPair)
		// La entrada pudo expirar mientras estaba en cache.
		if kp.IsExpiredAt(s.now()) {
			s.c.Delete(k)
			return keys.KeyPair{}, keys.NotFoundByID(memberID, keyID)
		}
		return kp, nil
	}
	kp, err := s.KeyStore.GetByID(ctx, memberID, keyID)
	if err != nil {
		return keys.KeyPair{}, err
	}
	s.c.SetDefault(k, kp)
	return kp, nil
}
