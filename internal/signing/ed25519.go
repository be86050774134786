package signing

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"

	"github.com/dropDatabas3/memberkeys/internal/keys"
)

// ed25519Scheme: EdDSA puro sobre los bytes del mensaje.
// Privada = ed25519.PrivateKey (64 bytes), pública = 32 bytes crudos.
type ed25519Scheme struct{}

func (ed25519Scheme) Algorithm() keys.Algorithm { return keys.AlgorithmEd25519 }

func (ed25519Scheme) GenerateKey(rand io.Reader) ([]byte, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, nil, fmt.Errorf("generate ed25519: %w", err)
	}
	return priv, pub, nil
}

func (ed25519Scheme) NewSigner(kp keys.KeyPair) (Signer, error) {
	if len(kp.PrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key %s: ed25519 private key must be %d bytes, got %d", kp.ID, ed25519.PrivateKeySize, len(kp.PrivateKey))
	}
	priv := ed25519.PrivateKey(kp.PrivateKey)
	return &signer{
		keyID: kp.ID,
		alg:   keys.AlgorithmEd25519,
		sign: func(payload []byte) ([]byte, error) {
			return ed25519.Sign(priv, payload), nil
		},
	}, nil
}

func (ed25519Scheme) NewVerifier(kp keys.KeyPair) (Verifier, error) {
	if len(kp.PublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("key %s: ed25519 public key must be %d bytes, got %d", kp.ID, ed25519.PublicKeySize, len(kp.PublicKey))
	}
	pub := ed25519.PublicKey(kp.PublicKey)
	return &verifier{
		keyID: kp.ID,
		alg:   keys.AlgorithmEd25519,
		verify: func(payload, sig []byte) error {
			if !ed25519.Verify(pub, payload, sig) {
				return errors.New("ed25519 signature mismatch")
			}
			return nil
		},
	}, nil
}
