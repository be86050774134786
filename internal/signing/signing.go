// Package signing implementa las variantes de firma (Ed25519 y RS256) detrás de
// una sola interfaz Scheme, y los Signer/Verifier atados a una clave.
//
// Un Scheme se elige una sola vez (Registry.Scheme) y después todo se despacha
// por interfaz; no hay switch por algoritmo en los llamadores.
package signing

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/dropDatabas3/memberkeys/internal/canonical"
	"github.com/dropDatabas3/memberkeys/internal/keys"
)

// Signer firma payloads con una clave concreta. Es seguro para uso concurrente.
type Signer interface {
	KeyID() string
	Algorithm() keys.Algorithm
	// Sign devuelve la firma separada de payload en base64url sin padding.
	Sign(payload []byte) (string, error)
	// SignMessage canonicaliza msg y firma el resultado.
	SignMessage(msg any) (string, error)
}

// Verifier verifica firmas contra una clave pública concreta.
// Una firma inválida siempre es un error que envuelve keys.ErrSignatureVerificationFailed.
type Verifier interface {
	KeyID() string
	Algorithm() keys.Algorithm
	Verify(payload []byte, signature string) error
	VerifyMessage(msg any, signature string) error
}

// Scheme es una variante de algoritmo: genera material y construye Signer/Verifier.
type Scheme interface {
	Algorithm() keys.Algorithm
	// GenerateKey devuelve (privateKey, publicKey) en el formato que persiste el store.
	GenerateKey(rand io.Reader) (priv, pub []byte, err error)
	NewSigner(kp keys.KeyPair) (Signer, error)
	NewVerifier(kp keys.KeyPair) (Verifier, error)
}

// EncodeSignature codifica una firma cruda como base64url sin padding.
func EncodeSignature(sig []byte) string {
	return base64.RawURLEncoding.EncodeToString(sig)
}

// DecodeSignature acepta base64url con o sin padding.
func DecodeSignature(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed signature encoding: %v", keys.ErrSignatureVerificationFailed, err)
	}
	return b, nil
}

// signer adapta una función de firma cruda al contrato Signer.
type signer struct {
	keyID string
	alg   keys.Algorithm
	sign  func(payload []byte) ([]byte, error)
}

func (s *signer) KeyID() string             { return s.keyID }
func (s *signer) Algorithm() keys.Algorithm { return s.alg }

func (s *signer) Sign(payload []byte) (string, error) {
	sig, err := s.sign(payload)
	if err != nil {
		return "", fmt.Errorf("sign with key %s: %w", s.keyID, err)
	}
	return EncodeSignature(sig), nil
}

func (s *signer) SignMessage(msg any) (string, error) {
	payload, err := canonical.Canonicalize(msg)
	if err != nil {
		return "", err
	}
	return s.Sign(payload)
}

// verifier adapta una función de verificación cruda al contrato Verifier.
type verifier struct {
	keyID  string
	alg    keys.Algorithm
	verify func(payload, sig []byte) error
}

func (v *verifier) KeyID() string             { return v.keyID }
func (v *verifier) Algorithm() keys.Algorithm { return v.alg }

func (v *verifier) Verify(payload []byte, signature string) error {
	sig, err := DecodeSignature(signature)
	if err != nil {
		return err
	}
	if err := v.verify(payload, sig); err != nil {
		return fmt.Errorf("%w: key %s: %v", keys.ErrSignatureVerificationFailed, v.keyID, err)
	}
	return nil
}

func (v *verifier) VerifyMessage(msg any, signature string) error {
	payload, err := canonical.Canonicalize(msg)
	if err != nil {
		return err
	}
	return v.Verify(payload, signature)
}
