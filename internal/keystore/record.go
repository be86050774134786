package keystore

import (
	"encoding/base64"
	"fmt"

	"github.com/dropDatabas3/memberkeys/internal/keys"
	"github.com/dropDatabas3/memberkeys/internal/security/secretbox"
)

// record es la forma persistida de un KeyPair (archivo, redis, postgres).
// La privada va en base64url (PrivateKey) o sellada con secretbox (PrivateKeyEnc).
type record struct {
	ID            string         `json:"id"`
	Level         keys.Level     `json:"level"`
	Algorithm     keys.Algorithm `json:"algorithm"`
	PrivateKey    string         `json:"privateKey,omitempty"`
	PrivateKeyEnc string         `json:"privateKeyEnc,omitempty"`
	PublicKey     string         `json:"publicKey"`
	ExpiresAtMs   int64          `json:"expiresAtMs"`
}

type codec struct {
	box *secretbox.Box
}

func (c codec) encode(kp keys.KeyPair) (record, error) {
	rec := record{
		ID:          kp.ID,
		Level:       kp.Level,
		Algorithm:   kp.Algorithm,
		PublicKey:   base64.RawURLEncoding.EncodeToString(kp.PublicKey),
		ExpiresAtMs: kp.ExpiresAtMs,
	}
	if c.box == nil {
		rec.PrivateKey = base64.RawURLEncoding.EncodeToString(kp.PrivateKey)
		return rec, nil
	}
	sealed, err := c.box.Seal(kp.PrivateKey)
	if err != nil {
		return record{}, fmt.Errorf("seal private key %s: %w", kp.ID, err)
	}
	rec.PrivateKeyEnc = sealed
	return rec, nil
}

// decode reconstruye el par. Cualquier inconsistencia es ErrMalformedPersistedState.
func (c codec) decode(rec record) (keys.KeyPair, error) {
	malformed := func(format string, args ...any) error {
		return fmt.Errorf("%w: key %q: %s", keys.ErrMalformedPersistedState, rec.ID, fmt.Sprintf(format, args...))
	}

	pub, err := base64.RawURLEncoding.DecodeString(rec.PublicKey)
	if err != nil {
		return keys.KeyPair{}, malformed("public key: %v", err)
	}

	var priv []byte
	switch {
	case rec.PrivateKeyEnc != "":
		if c.box == nil {
			return keys.KeyPair{}, malformed("private key is sealed and no master key is configured")
		}
		if priv, err = c.box.Open(rec.PrivateKeyEnc); err != nil {
			return keys.KeyPair{}, malformed("open private key: %v", err)
		}
	case rec.PrivateKey != "":
		if priv, err = base64.RawURLEncoding.DecodeString(rec.PrivateKey); err != nil {
			return keys.KeyPair{}, malformed("private key: %v", err)
		}
	default:
		return keys.KeyPair{}, malformed("missing private key")
	}

	kp := keys.KeyPair{
		ID:          rec.ID,
		Level:       rec.Level,
		Algorithm:   rec.Algorithm,
		PrivateKey:  priv,
		PublicKey:   pub,
		ExpiresAtMs: rec.ExpiresAtMs,
	}
	if err := kp.Validate(); err != nil {
		return keys.KeyPair{}, fmt.Errorf("%w: %v", keys.ErrMalformedPersistedState, err)
	}
	return kp, nil
}
