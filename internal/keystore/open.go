package keystore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
	"github.com/dropDatabas3/memberkeys/internal/security/secretbox"
	"github.com/dropDatabas3/memberkeys/internal/util"
)

const (
	DriverMemory   = "memory"
	DriverFS       = "fs"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config elige y configura el backend.
type Config struct {
	Driver    string
	FSRoot    string
	MasterKey string        // vacío: privadas sin sellar
	CacheTTL  time.Duration // 0: sin cache delante de GetByID

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	PostgresDSN string
}

// Closer libera las conexiones del backend.
type Closer func() error

// Open construye el store según cfg.Driver. El Closer devuelto nunca es nil.
func Open(ctx context.Context, cfg Config, opts ...Option) (KeyStore, Closer, error) {
	noop := func() error { return nil }

	if cfg.MasterKey != "" {
		box, err := secretbox.NewFromString(cfg.MasterKey)
		if err != nil {
			return nil, noop, fmt.Errorf("keystore master key: %w", err)
		}
		opts = append(opts, WithSecretBox(box))
	}
	log := buildOptions(opts).log.With(logger.Driver(cfg.Driver))

	var (
		store  KeyStore
		closer Closer = noop
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		store = NewMemoryStore(opts...)
	case DriverFS:
		fs, err := NewFileStore(cfg.FSRoot, opts...)
		if err != nil {
			return nil, noop, err
		}
		store = fs
	case DriverRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, noop, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		store = NewRedisStore(rdb, cfg.RedisPrefix, opts...)
		closer = rdb.Close
	case DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("postgres connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("postgres ping %s: %w", util.MaskDSN(cfg.PostgresDSN), err)
		}
		pg := NewPostgresStore(pool, opts...)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		store = pg
		closer = func() error { pool.Close(); return nil }
	default:
		return nil, noop, fmt.Errorf("keystore: unknown driver %q", cfg.Driver)
	}

	if cfg.CacheTTL > 0 {
		store = NewCachedStore(store, cfg.CacheTTL, opts...)
	}
	log.Info("keystore opened",
		logger.String("target", target(cfg)),
		logger.String("cache_ttl", cfg.CacheTTL.String()),
		zap.Bool("sealed", cfg.MasterKey != ""))
	return store, closer, nil
}

// target describe el backend para logs, sin credenciales.
func target(cfg Config) string {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverFS:
		return cfg.FSRoot
	case DriverRedis:
		return cfg.RedisAddr
	case DriverPostgres:
		return util.MaskDSN(cfg.PostgresDSN)
	}
	return DriverMemory
}
