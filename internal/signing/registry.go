package signing

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/dropDatabas3/memberkeys/internal/keys"
)

// Registry es el conjunto cerrado de esquemas disponibles para un engine.
// Se construye explícitamente (no hay registro global de providers), así que
// cada test puede tener el suyo.
type Registry struct {
	rand    io.Reader
	schemes map[keys.Algorithm]Scheme
}

// NewRegistry arma los tres esquemas. random debe ser un CSPRNG; nil usa crypto/rand.
func NewRegistry(random io.Reader) *Registry {
	if random == nil {
		random = rand.Reader
	}
	return &Registry{
		rand: random,
		schemes: map[keys.Algorithm]Scheme{
			keys.AlgorithmEd25519: ed25519Scheme{},
			keys.AlgorithmRS256:   rs256Scheme{rand: random},
			keys.AlgorithmInvalid: invalidScheme{},
		},
	}
}

// Scheme resuelve el esquema de un algoritmo.
func (r *Registry) Scheme(alg keys.Algorithm) (Scheme, error) {
	s, ok := r.schemes[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %q", keys.ErrUnsupportedAlgorithm, alg)
	}
	return s, nil
}

// Generate crea un par nuevo con el esquema de alg.
func (r *Registry) Generate(alg keys.Algorithm, level keys.Level, expiresAtMs int64) (keys.KeyPair, error) {
	s, err := r.Scheme(alg)
	if err != nil {
		return keys.KeyPair{}, err
	}
	priv, pub, err := s.GenerateKey(r.rand)
	if err != nil {
		return keys.KeyPair{}, err
	}
	return keys.NewKeyPair(level, alg, priv, pub, expiresAtMs), nil
}

// NewSigner construye el Signer que corresponde al algoritmo guardado en kp.
func (r *Registry) NewSigner(kp keys.KeyPair) (Signer, error) {
	s, err := r.Scheme(kp.Algorithm)
	if err != nil {
		return nil, err
	}
	return s.NewSigner(kp)
}

// NewVerifier construye el Verifier que corresponde al algoritmo guardado en kp.
func (r *Registry) NewVerifier(kp keys.KeyPair) (Verifier, error) {
	s, err := r.Scheme(kp.Algorithm)
	if err != nil {
		return nil, err
	}
	return s.NewVerifier(kp)
}
