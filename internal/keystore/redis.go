package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/memberkeys/internal/keys"
	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
)

// DefaultRedisPrefix se usa cuando no se configura prefijo.
const DefaultRedisPrefix = "memberkeys"

// RedisStore guarda cada member en varias claves con el mismo hash tag,
// así funciona también en cluster:
//
//	<prefix>:{member}:keys          HASH id -> record JSON
//	<prefix>:{member}:order         LIST ids en orden de primer Put
//	<prefix>:{member}:level:<LVL>   LIST ids del nivel en orden de Put (el último es el más nuevo)
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	opts   options
	codec  codec
}

// putScript registra el par y lo deja como el más nuevo de su nivel en un solo paso.
// KEYS: keys, order, lista del nivel destino, listas de los otros niveles.
// El log de orden solo guarda la primera aparición de cada id.
var putScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  redis.call('RPUSH', KEYS[2], ARGV[1])
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
for i = 3, #KEYS do
  redis.call('LREM', KEYS[i], 0, ARGV[1])
end
redis.call('RPUSH', KEYS[3], ARGV[1])
return 1
`)

func NewRedisStore(rdb redis.UniversalClient, prefix string, opts ...Option) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	o := buildOptions(opts)
	return &RedisStore{rdb: rdb, prefix: prefix, opts: o, codec: codec{box: o.box}}
}

func (s *RedisStore) key(memberID, suffix string) string {
	return s.prefix + ":{" + memberID + "}:" + suffix
}

func (s *RedisStore) levelKey(memberID string, level keys.Level) string {
	return s.key(memberID, "level:"+level.String())
}

func (s *RedisStore) Put(ctx context.Context, memberID string, kp keys.KeyPair) error {
	if err := checkPut(memberID, kp, s.opts.now()); err != nil {
		return err
	}
	rec, err := s.codec.encode(kp)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode key %s: %w", kp.ID, err)
	}

	ks := []string{s.key(memberID, "keys"), s.key(memberID, "order"), s.levelKey(memberID, kp.Level)}
	for _, lvl := range keys.Levels() {
		if lvl != kp.Level {
			ks = append(ks, s.levelKey(memberID, lvl))
		}
	}
	err = putScript.Run(ctx, s.rdb, ks, kp.ID, data).Err()
	if err != nil {
		s.opts.log.Error("redis keystore put failed", logger.MemberID(memberID), logger.KeyID(kp.ID), logger.Err(err))
		return fmt.Errorf("redis put member %q: %w", memberID, err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, memberID, keyID string) (keys.KeyPair, bool, error) {
	data, err := s.rdb.HGet(ctx, s.key(memberID, "keys"), keyID).Bytes()
	if errors.Is(err, redis.Nil) {
		return keys.KeyPair{}, false, nil
	}
	if err != nil {
		return keys.KeyPair{}, false, fmt.Errorf("redis get key %s: %w", keyID, err)
	}
	kp, err := s.decode(data)
	return kp, err == nil, err
}

func (s *RedisStore) decode(data []byte) (keys.KeyPair, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return keys.KeyPair{}, fmt.Errorf("%w: %v", keys.ErrMalformedPersistedState, err)
	}
	return s.codec.decode(rec)
}

// GetByLevel recorre la lista del nivel del más nuevo al más viejo y devuelve el primero no expirado.
func (s *RedisStore) GetByLevel(ctx context.Context, memberID string, level keys.Level) (keys.KeyPair, error) {
	ids, err := s.rdb.LRange(ctx, s.levelKey(memberID, level), 0, -1).Result()
	if err != nil {
		return keys.KeyPair{}, fmt.Errorf("redis list level %s: %w", level, err)
	}
	if len(ids) == 0 {
		return keys.KeyPair{}, keys.NotFoundByLevel(memberID, level)
	}
	vals, err := s.rdb.HMGet(ctx, s.key(memberID, "keys"), ids...).Result()
	if err != nil {
		return keys.KeyPair{}, fmt.Errorf("redis get level %s: %w", level, err)
	}

	now := s.opts.now()
	for i := len(vals) - 1; i >= 0; i-- {
		str, ok := vals[i].(string)
		if !ok {
			return keys.KeyPair{}, fmt.Errorf("%w: key %s listed in level %s but missing", keys.ErrMalformedPersistedState, ids[i], level)
		}
		kp, err := s.decode([]byte(str))
		if err != nil {
			return keys.KeyPair{}, err
		}
		if kp, err := usableByLevel(memberID, level, kp, now); err == nil {
			return kp, nil
		}
	}
	return keys.KeyPair{}, keys.NotFoundByLevel(memberID, level)
}

func (s *RedisStore) GetByID(ctx context.Context, memberID, keyID string) (keys.KeyPair, error) {
	kp, ok, err := s.load(ctx, memberID, keyID)
	if err != nil {
		return keys.KeyPair{}, err
	}
	if !ok {
		return keys.KeyPair{}, keys.NotFoundByID(memberID, keyID)
	}
	return usableByID(memberID, keyID, kp, s.opts.now())
}

func (s *RedisStore) KeyList(ctx context.Context, memberID string) ([]keys.KeyPair, error) {
	ids, err := s.rdb.LRange(ctx, s.key(memberID, "order"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list order: %w", err)
	}
	out := make([]keys.KeyPair, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	vals, err := s.rdb.HMGet(ctx, s.key(memberID, "keys"), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list keys: %w", err)
	}

	now := s.opts.now()
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: key %s listed in order but missing", keys.ErrMalformedPersistedState, ids[i])
		}
		kp, err := s.decode([]byte(str))
		if err != nil {
			return nil, err
		}
		if !kp.IsExpiredAt(now) {
			out = append(out, kp)
		}
	}
	return out, nil
}
