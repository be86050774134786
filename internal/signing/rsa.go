package signing

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/dropDatabas3/memberkeys/internal/keys"
)

const (
	// RSAKeyBits es el tamaño usado al generar claves RS256.
	RSAKeyBits = 2048
	// rsaMinBits es el mínimo aceptado al cargar claves.
	rsaMinBits = 2048
)

// rs256Scheme: PKCS#1 v1.5 con SHA-256.
// Privada en PKCS#1 DER, pública en PKIX DER.
type rs256Scheme struct {
	rand io.Reader
}

func (rs256Scheme) Algorithm() keys.Algorithm { return keys.AlgorithmRS256 }

func (rs256Scheme) GenerateKey(rand io.Reader) ([]byte, []byte, error) {
	return generateRSA(rand)
}

func (s rs256Scheme) NewSigner(kp keys.KeyPair) (Signer, error) {
	priv, err := x509.ParsePKCS1PrivateKey(kp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("key %s: parse rsa private key: %w", kp.ID, err)
	}
	if priv.N.BitLen() < rsaMinBits {
		return nil, fmt.Errorf("key %s: rsa key too small (%d bits)", kp.ID, priv.N.BitLen())
	}
	priv.Precompute()
	// PKCS#1 v1.5 es determinista; rand sólo se usa para blinding.
	random := s.rand
	return &signer{
		keyID: kp.ID,
		alg:   keys.AlgorithmRS256,
		sign: func(payload []byte) ([]byte, error) {
			digest := sha256.Sum256(payload)
			return rsa.SignPKCS1v15(random, priv, crypto.SHA256, digest[:])
		},
	}, nil
}

func (rs256Scheme) NewVerifier(kp keys.KeyPair) (Verifier, error) {
	pub, err := parseRSAPublicKey(kp.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", kp.ID, err)
	}
	return &verifier{
		keyID: kp.ID,
		alg:   keys.AlgorithmRS256,
		verify: func(payload, sig []byte) error {
			digest := sha256.Sum256(payload)
			return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig)
		},
	}, nil
}

func generateRSA(rand io.Reader) ([]byte, []byte, error) {
	priv, err := rsa.GenerateKey(rand, RSAKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate rsa: %w", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal rsa public key: %w", err)
	}
	return x509.MarshalPKCS1PrivateKey(priv), pub, nil
}

func parseRSAPublicKey(der []byte) (*rsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, not rsa", key)
	}
	if pub.N.BitLen() < rsaMinBits {
		return nil, fmt.Errorf("rsa key too small (%d bits)", pub.N.BitLen())
	}
	return pub, nil
}

// invalidScheme genera claves RSA para pruebas negativas pero se niega a firmar o verificar.
type invalidScheme struct{}

func (invalidScheme) Algorithm() keys.Algorithm { return keys.AlgorithmInvalid }

func (invalidScheme) GenerateKey(rand io.Reader) ([]byte, []byte, error) {
	return generateRSA(rand)
}

func (invalidScheme) NewSigner(kp keys.KeyPair) (Signer, error) {
	return nil, fmt.Errorf("%w: %s (key %s)", keys.ErrUnsupportedAlgorithm, keys.AlgorithmInvalid, kp.ID)
}

func (invalidScheme) NewVerifier(kp keys.KeyPair) (Verifier, error) {
	return nil, fmt.Errorf("%w: %s (key %s)", keys.ErrUnsupportedAlgorithm, keys.AlgorithmInvalid, kp.ID)
}
