// Package secretbox sella claves privadas en reposo con AES-256-GCM.
//
// A diferencia de una clave maestra global leída de env, cada Box recibe su clave
// explícitamente: el keystore que la usa es el dueño de la inicialización.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	nonceSizeGCM      = 12  // AES-GCM nonce size recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)

	hkdfInfo = "memberkeys/private-key/v1"
)

// Box cifra y descifra con una clave derivada (HKDF-SHA256) de la master key.
type Box struct {
	aead cipher.AEAD
}

// New construye un Box a partir de una master key de 32 bytes.
func New(masterKey []byte) (*Box, error) {
	if len(masterKey) != requiredKeyLength {
		return nil, fmt.Errorf("secretbox: master key debe tener %d bytes, obtuvo %d", requiredKeyLength, len(masterKey))
	}
	derived := make([]byte, requiredKeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(hkdfInfo)), derived); err != nil {
		return nil, fmt.Errorf("secretbox: hkdf: %w", err)
	}
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Box{aead: aead}, nil
}

// ParseKey decodifica una master key en base64 (std o raw) o hex.
func ParseKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if len(key) == 2*requiredKeyLength {
		if h, err := hex.DecodeString(key); err == nil {
			return h, nil
		}
	}
	return nil, fmt.Errorf("secretbox: clave inválida (se espera base64 o hex de %d bytes); genere una con: openssl rand -base64 32", requiredKeyLength)
}

// GenerateKey devuelve una master key aleatoria en base64, lista para ParseKey.
func GenerateKey(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, requiredKeyLength)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// NewFromString es ParseKey + New.
func NewFromString(key string) (*Box, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	return New(k)
}

// Seal cifra plain y devuelve base64(nonce)|base64(ciphertext).
func (b *Box) Seal(plain []byte) (string, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := b.aead.Seal(nil, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Open recibe base64(nonce)|base64(ciphertext) y devuelve el texto plano.
func (b *Box) Open(sealed string) ([]byte, error) {
	parts := strings.Split(sealed, sep)
	if len(parts) != 2 {
		return nil, errors.New("formato inválido: esperado base64(nonce)|base64(ciphertext)")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSizeGCM {
		return nil, fmt.Errorf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))
	}
	pt, err := b.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return pt, nil
}
