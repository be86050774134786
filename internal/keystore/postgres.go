package keystore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/memberkeys/internal/keys"
	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
	migrations "github.com/dropDatabas3/memberkeys/migrations/postgres"
)

// PostgresStore guarda los pares en la tabla member_keys.
// seq (secuencia global) ordena los Put de cada nivel; first_seq conserva el orden de inserción.
type PostgresStore struct {
	pool  *pgxpool.Pool
	opts  options
	codec codec
}

func NewPostgresStore(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	o := buildOptions(opts)
	return &PostgresStore{pool: pool, opts: o, codec: codec{box: o.box}}
}

// Migrate aplica el esquema embebido. Las sentencias son idempotentes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		s.opts.log.Debug("migration applied", logger.String("migration", name))
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, memberID string, kp keys.KeyPair) error {
	if err := checkPut(memberID, kp, s.opts.now()); err != nil {
		return err
	}
	rec, err := s.codec.encode(kp)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO member_keys (member_id, key_id, level, algorithm, private_key, private_key_enc, public_key, expires_at_ms, first_seq, seq)
SELECT $1, $2, $3, $4, $5, $6, $7, $8, n, n FROM (SELECT nextval('member_keys_seq') AS n) s
ON CONFLICT (member_id, key_id) DO UPDATE SET
  level = EXCLUDED.level,
  algorithm = EXCLUDED.algorithm,
  private_key = EXCLUDED.private_key,
  private_key_enc = EXCLUDED.private_key_enc,
  public_key = EXCLUDED.public_key,
  expires_at_ms = EXCLUDED.expires_at_ms,
  seq = EXCLUDED.seq`
	_, err = s.pool.Exec(ctx, q, memberID, rec.ID, rec.Level.String(), string(rec.Algorithm),
		rec.PrivateKey, rec.PrivateKeyEnc, rec.PublicKey, rec.ExpiresAtMs)
	if err != nil {
		s.opts.log.Error("postgres keystore put failed", logger.MemberID(memberID), logger.KeyID(kp.ID), logger.Err(err))
		return fmt.Errorf("postgres put member %q: %w", memberID, err)
	}
	return nil
}

const selectCols = `key_id, level, algorithm, private_key, private_key_enc, public_key, expires_at_ms`

func (s *PostgresStore) scan(row pgx.Row) (keys.KeyPair, error) {
	var (
		rec   record
		level string
		alg   string
	)
	if err := row.Scan(&rec.ID, &level, &alg, &rec.PrivateKey, &rec.PrivateKeyEnc, &rec.PublicKey, &rec.ExpiresAtMs); err != nil {
		return keys.KeyPair{}, err
	}
	lvl, err := keys.ParseLevel(level)
	if err != nil {
		return keys.KeyPair{}, fmt.Errorf("%w: key %q: %v", keys.ErrMalformedPersistedState, rec.ID, err)
	}
	rec.Level = lvl
	rec.Algorithm = keys.Algorithm(alg)
	return s.codec.decode(rec)
}

func (s *PostgresStore) GetByLevel(ctx context.Context, memberID string, level keys.Level) (keys.KeyPair, error) {
	// la current es el Put más nuevo del nivel que no expiró
	q := `SELECT ` + selectCols + ` FROM member_keys
WHERE member_id = $1 AND level = $2 AND (expires_at_ms = 0 OR expires_at_ms >= $3)
ORDER BY seq DESC LIMIT 1`
	now := s.opts.now()
	kp, err := s.scan(s.pool.QueryRow(ctx, q, memberID, level.String(), now.UnixMilli()))
	if errors.Is(err, pgx.ErrNoRows) {
		return keys.KeyPair{}, keys.NotFoundByLevel(memberID, level)
	}
	if err != nil {
		return keys.KeyPair{}, err
	}
	return usableByLevel(memberID, level, kp, now)
}

func (s *PostgresStore) GetByID(ctx context.Context, memberID, keyID string) (keys.KeyPair, error) {
	q := `SELECT ` + selectCols + ` FROM member_keys WHERE member_id = $1 AND key_id = $2`
	kp, err := s.scan(s.pool.QueryRow(ctx, q, memberID, keyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return keys.KeyPair{}, keys.NotFoundByID(memberID, keyID)
	}
	if err != nil {
		return keys.KeyPair{}, err
	}
	return usableByID(memberID, keyID, kp, s.opts.now())
}

func (s *PostgresStore) KeyList(ctx context.Context, memberID string) ([]keys.KeyPair, error) {
	q := `SELECT ` + selectCols + ` FROM member_keys WHERE member_id = $1 ORDER BY first_seq ASC`
	rows, err := s.pool.Query(ctx, q, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := s.opts.now()
	out := []keys.KeyPair{}
	for rows.Next() {
		kp, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		if !kp.IsExpiredAt(now) {
			out = append(out, kp)
		}
	}
	return out, rows.Err()
}
