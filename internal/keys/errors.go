package keys

import (
	"errors"
	"fmt"
)

var (
	ErrKeyExpired                  = errors.New("key_expired")
	ErrKeyNotFound                 = errors.New("key_not_found")
	ErrSignatureVerificationFailed = errors.New("signature_verification_failed")
	ErrUnsupportedAlgorithm        = errors.New("unsupported_algorithm")
	ErrMalformedPersistedState     = errors.New("malformed_persisted_state")
)

// KeyNotFoundError indica qué búsqueda falló: por id (KeyID != "") o por nivel.
// errors.Is(err, ErrKeyNotFound) es true para cualquier *KeyNotFoundError.
type KeyNotFoundError struct {
	MemberID string
	KeyID    string
	Level    Level
}

// NotFoundByID construye el error para una búsqueda por id.
func NotFoundByID(memberID, keyID string) error {
	return &KeyNotFoundError{MemberID: memberID, KeyID: keyID}
}

// NotFoundByLevel construye el error para una búsqueda por nivel.
func NotFoundByLevel(memberID string, level Level) error {
	return &KeyNotFoundError{MemberID: memberID, Level: level}
}

// ByLevel reporta si la búsqueda fallida era por nivel.
func (e *KeyNotFoundError) ByLevel() bool { return e.KeyID == "" }

func (e *KeyNotFoundError) Error() string {
	if e.ByLevel() {
		return fmt.Sprintf("%s: member %q has no usable key at level %s", ErrKeyNotFound, e.MemberID, e.Level)
	}
	return fmt.Sprintf("%s: member %q has no usable key %q", ErrKeyNotFound, e.MemberID, e.KeyID)
}

func (e *KeyNotFoundError) Is(target error) bool { return target == ErrKeyNotFound }
