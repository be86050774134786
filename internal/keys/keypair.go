package keys

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"time"

	sha256 "github.com/minio/sha256-simd"
)

// idLength es la cantidad de caracteres base64url del hash que forman el id.
const idLength = 16

// DeriveID calcula el id de una clave a partir de la clave pública:
// primeros 16 caracteres de base64url(SHA-256(publicKey)).
func DeriveID(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return base64.RawURLEncoding.EncodeToString(sum[:])[:idLength]
}

// KeyPair es un valor inmutable: nadie lo modifica después de generarlo.
// ExpiresAtMs == 0 significa que la clave no expira.
type KeyPair struct {
	ID          string
	Level       Level
	Algorithm   Algorithm
	PrivateKey  []byte
	PublicKey   []byte
	ExpiresAtMs int64
}

// NewKeyPair arma un KeyPair derivando el id de la clave pública.
// Copia los slices para que el llamador no pueda mutar el valor.
func NewKeyPair(level Level, alg Algorithm, privateKey, publicKey []byte, expiresAtMs int64) KeyPair {
	return KeyPair{
		ID:          DeriveID(publicKey),
		Level:       level,
		Algorithm:   alg,
		PrivateKey:  bytes.Clone(privateKey),
		PublicKey:   bytes.Clone(publicKey),
		ExpiresAtMs: expiresAtMs,
	}
}

// IsExpired usa el reloj del sistema.
func (k KeyPair) IsExpired() bool {
	return k.IsExpiredAt(time.Now())
}

// IsExpiredAt reporta si la clave estaba expirada en el instante now.
func (k KeyPair) IsExpiredAt(now time.Time) bool {
	return k.ExpiresAtMs != 0 && k.ExpiresAtMs < now.UnixMilli()
}

// Equal compara id, nivel, algoritmo y ambas claves. ExpiresAtMs no participa.
func (k KeyPair) Equal(o KeyPair) bool {
	return k.ID == o.ID &&
		k.Level == o.Level &&
		k.Algorithm == o.Algorithm &&
		bytes.Equal(k.PrivateKey, o.PrivateKey) &&
		bytes.Equal(k.PublicKey, o.PublicKey)
}

// Validate chequea la forma mínima de un par cargado desde afuera (disco, redis, db).
func (k KeyPair) Validate() error {
	if !k.Level.Valid() {
		return fmt.Errorf("key %q: invalid level %d", k.ID, int(k.Level))
	}
	if len(k.PublicKey) == 0 {
		return fmt.Errorf("key %q: empty public key", k.ID)
	}
	if want := DeriveID(k.PublicKey); k.ID != want {
		return fmt.Errorf("key %q: id does not match public key (want %q)", k.ID, want)
	}
	return nil
}

// Key devuelve la vista pública del par (sin clave privada).
func (k KeyPair) Key() Key {
	return Key{
		ID:          k.ID,
		Level:       k.Level,
		Algorithm:   k.Algorithm,
		PublicKey:   base64.RawURLEncoding.EncodeToString(k.PublicKey),
		ExpiresAtMs: k.ExpiresAtMs,
	}
}

// Key es la vista pública exportable de una clave.
// PublicKey va en base64url sin padding.
type Key struct {
	ID          string    `json:"id"`
	Level       Level     `json:"level"`
	Algorithm   Algorithm `json:"algorithm"`
	PublicKey   string    `json:"publicKey"`
	ExpiresAtMs int64     `json:"expiresAtMs,omitempty"`
}

// PublicKeyBytes decodifica la clave pública exportada.
func (k Key) PublicKeyBytes() ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(k.PublicKey)
}
