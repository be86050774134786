// Package keystore persiste los pares de claves de cada member.
//
// Todas las implementaciones comparten la misma semántica:
//
//   - Put rechaza pares expirados (keys.ErrKeyExpired) sin persistir nada.
//   - El par recién puesto pasa a ser la clave "current" de su nivel; los
//     anteriores siguen accesibles por id (para verificar firmas viejas).
//   - GetByLevel devuelve la current del nivel: el par más recientemente puesto
//     que no expiró. Si el más nuevo expiró, vale el anterior no expirado.
//   - GetByID y KeyList nunca devuelven pares expirados.
//
// Las operaciones sobre el mismo member se serializan; members distintos no compiten.
package keystore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/memberkeys/internal/keys"
	"github.com/dropDatabas3/memberkeys/internal/security/secretbox"
)

// KeyStore es el contrato que consume el engine.
type KeyStore interface {
	Put(ctx context.Context, memberID string, kp keys.KeyPair) error
	GetByLevel(ctx context.Context, memberID string, level keys.Level) (keys.KeyPair, error)
	GetByID(ctx context.Context, memberID, keyID string) (keys.KeyPair, error)
	KeyList(ctx context.Context, memberID string) ([]keys.KeyPair, error)
}

// ErrMemberIDRequired se devuelve cuando el member id está vacío.
var ErrMemberIDRequired = errors.New("keystore: member id required")

// Option configura un store.
type Option func(*options)

type options struct {
	now func() time.Time
	box *secretbox.Box
	log *zap.Logger
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithClock reemplaza time.Now para evaluar expiración.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSecretBox sella las claves privadas en reposo (file, redis, postgres).
func WithSecretBox(b *secretbox.Box) Option {
	return func(o *options) { o.box = b }
}

// WithLogger asigna el logger del store.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// checkPut valida los argumentos comunes de Put.
func checkPut(memberID string, kp keys.KeyPair, now time.Time) error {
	if memberID == "" {
		return ErrMemberIDRequired
	}
	if kp.IsExpiredAt(now) {
		return keys.ErrKeyExpired
	}
	return kp.Validate()
}

// usable aplica las reglas de lectura a un par ya encontrado por id.
func usableByID(memberID, keyID string, kp keys.KeyPair, now time.Time) (keys.KeyPair, error) {
	if kp.IsExpiredAt(now) {
		return keys.KeyPair{}, keys.NotFoundByID(memberID, keyID)
	}
	return kp, nil
}

// usableByLevel aplica las reglas de lectura a un candidato del nivel.
func usableByLevel(memberID string, level keys.Level, kp keys.KeyPair, now time.Time) (keys.KeyPair, error) {
	if kp.Level != level || kp.IsExpiredAt(now) {
		return keys.KeyPair{}, keys.NotFoundByLevel(memberID, level)
	}
	return kp, nil
}
