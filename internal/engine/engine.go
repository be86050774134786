package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/memberkeys/internal/audit"
	"github.com/dropDatabas3/memberkeys/internal/keys"
	"github.com/dropDatabas3/memberkeys/internal/metrics"
	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
	"github.com/dropDatabas3/memberkeys/internal/signing"
)

// Engine opera las claves de un solo member.
type Engine struct {
	f        *Factory
	memberID string
	log      *zap.Logger
}

func (e *Engine) MemberID() string { return e.memberID }

// GenerateKey genera un par sin expiración y lo persiste.
func (e *Engine) GenerateKey(ctx context.Context, level keys.Level) (keys.Key, error) {
	return e.GenerateKeyWithExpiration(ctx, level, 0)
}

// GenerateKeyTTL es GenerateKeyWithExpiration con una duración relativa al reloj del engine.
func (e *Engine) GenerateKeyTTL(ctx context.Context, level keys.Level, ttl time.Duration) (keys.Key, error) {
	if ttl <= 0 {
		return keys.Key{}, fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	return e.GenerateKeyWithExpiration(ctx, level, e.f.now().Add(ttl).UnixMilli())
}

// GenerateKeyWithExpiration genera un par con el algoritmo del engine y lo agrega al store.
// Las claves anteriores del nivel siguen verificables. Devuelve solo la vista pública.
func (e *Engine) GenerateKeyWithExpiration(ctx context.Context, level keys.Level, expiresAtMs int64) (keys.Key, error) {
	if !level.Valid() {
		return keys.Key{}, fmt.Errorf("invalid level %d", int(level))
	}
	kp, err := e.f.registry.Generate(e.f.alg, level, expiresAtMs)
	if err != nil {
		return keys.Key{}, fmt.Errorf("generate %s key: %w", e.f.alg, err)
	}
	if err := e.f.store.Put(ctx, e.memberID, kp); err != nil {
		return keys.Key{}, fmt.Errorf("store key %s: %w", kp.ID, err)
	}

	e.f.metrics.KeyGenerated(string(kp.Algorithm), level.String())
	fields := []zap.Field{logger.MemberID(e.memberID), logger.KeyID(kp.ID),
		logger.Level(level.String()), logger.Algorithm(string(kp.Algorithm))}
	if expiresAtMs > 0 {
		fields = append(fields, zap.Int64("expires_at_ms", expiresAtMs))
	}
	audit.Log(ctx, audit.EventKeyGenerated, fields...)
	return kp.Key(), nil
}

// CreateSigner firma con la clave current del nivel.
func (e *Engine) CreateSigner(ctx context.Context, level keys.Level) (signing.Signer, error) {
	if err := e.checkAlgorithm(); err != nil {
		return nil, err
	}
	kp, err := e.f.store.GetByLevel(ctx, e.memberID, level)
	if err != nil {
		e.miss(metrics.LookupLevel, err)
		return nil, err
	}
	return e.signerFor(kp)
}

// CreateSignerByID firma con una clave concreta, aunque ya no sea la current.
func (e *Engine) CreateSignerByID(ctx context.Context, keyID string) (signing.Signer, error) {
	if err := e.checkAlgorithm(); err != nil {
		return nil, err
	}
	kp, err := e.f.store.GetByID(ctx, e.memberID, keyID)
	if err != nil {
		e.miss(metrics.LookupID, err)
		return nil, err
	}
	return e.signerFor(kp)
}

// CreateSignerForLevelAtLeast busca desde minLevel hacia arriba y usa la primera clave disponible.
// Nunca baja de minLevel. Los fallos intermedios no son errores; solo se devuelve el último
// KeyNotFound si ningún nivel tiene clave.
func (e *Engine) CreateSignerForLevelAtLeast(ctx context.Context, minLevel keys.Level) (signing.Signer, error) {
	if err := e.checkAlgorithm(); err != nil {
		return nil, err
	}
	if !minLevel.Valid() {
		return nil, fmt.Errorf("invalid level %d", int(minLevel))
	}

	var lastErr error
	for _, lvl := range minLevel.AndAbove() {
		kp, err := e.f.store.GetByLevel(ctx, e.memberID, lvl)
		if err == nil {
			if lvl != minLevel {
				e.log.Debug("signer escalated", logger.Level(minLevel.String()), zap.String("used_level", lvl.String()))
			}
			return e.signerFor(kp)
		}
		if !errors.Is(err, keys.ErrKeyNotFound) {
			return nil, err
		}
		lastErr = err
	}
	e.miss(metrics.LookupLevelAtLeast, lastErr)
	return nil, lastErr
}

// CreateVerifier verifica con la clave pública del id, sea o no la current.
func (e *Engine) CreateVerifier(ctx context.Context, keyID string) (signing.Verifier, error) {
	if err := e.checkAlgorithm(); err != nil {
		return nil, err
	}
	kp, err := e.f.store.GetByID(ctx, e.memberID, keyID)
	if err != nil {
		e.miss(metrics.LookupID, err)
		return nil, err
	}
	v, err := e.f.registry.NewVerifier(kp)
	if err != nil {
		return nil, err
	}
	return &instrumentedVerifier{Verifier: v, metrics: e.f.metrics, log: e.log}, nil
}

// PublicKeys devuelve la vista pública de todas las claves no expiradas, en orden de alta.
func (e *Engine) PublicKeys(ctx context.Context) ([]keys.Key, error) {
	list, err := e.f.store.KeyList(ctx, e.memberID)
	if err != nil {
		return nil, err
	}
	out := make([]keys.Key, len(list))
	for i, kp := range list {
		out[i] = kp.Key()
	}
	return out, nil
}

// checkAlgorithm: un engine con INVALID_ALGORITHM puede generar pero nunca firmar ni verificar.
func (e *Engine) checkAlgorithm() error {
	if e.f.alg == keys.AlgorithmInvalid {
		return fmt.Errorf("%w: engine configured with %s", keys.ErrUnsupportedAlgorithm, e.f.alg)
	}
	return nil
}

func (e *Engine) signerFor(kp keys.KeyPair) (signing.Signer, error) {
	s, err := e.f.registry.NewSigner(kp)
	if err != nil {
		return nil, err
	}
	return &instrumentedSigner{Signer: s, metrics: e.f.metrics}, nil
}

func (e *Engine) miss(lookup string, err error) {
	if errors.Is(err, keys.ErrKeyNotFound) {
		e.f.metrics.LookupMissed(lookup)
		e.log.Debug("key lookup miss", logger.Op(lookup), logger.Err(err))
	}
}
