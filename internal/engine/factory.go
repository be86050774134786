// Package engine orquesta, por member, la generación de claves y la creación
// de Signer/Verifier sobre un keystore.
package engine

import (
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/memberkeys/internal/keys"
	"github.com/dropDatabas3/memberkeys/internal/keystore"
	"github.com/dropDatabas3/memberkeys/internal/metrics"
	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
	"github.com/dropDatabas3/memberkeys/internal/signing"
)

// Factory fija store, algoritmo y registry de esquemas; produce un Engine por member.
// Es inmutable después de NewFactory y se comparte entre goroutines.
type Factory struct {
	store    keystore.KeyStore
	alg      keys.Algorithm
	random   io.Reader
	registry *signing.Registry
	metrics  *metrics.Keys
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*Factory)

// WithAlgorithm elige el algoritmo de las claves nuevas. Default: ED25519.
func WithAlgorithm(alg keys.Algorithm) Option {
	return func(f *Factory) { f.alg = alg }
}

// WithRandom reemplaza crypto/rand. Tiene que ser un CSPRNG.
func WithRandom(r io.Reader) Option {
	return func(f *Factory) { f.random = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Factory) {
		if l != nil {
			f.log = l
		}
	}
}

// WithMetrics asigna los contadores. nil deshabilita métricas.
func WithMetrics(m *metrics.Keys) Option {
	return func(f *Factory) { f.metrics = m }
}

// WithClock se usa en tests para calcular expiraciones relativas.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFactory construye el registry de esquemas acá, no en un init global:
// cada Factory (y cada test) tiene el suyo.
func NewFactory(store keystore.KeyStore, opts ...Option) (*Factory, error) {
	f := &Factory{
		store: store,
		alg:   keys.AlgorithmEd25519,
		log:   logger.Named("engine"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.registry = signing.NewRegistry(f.random)
	// falla temprano si el algoritmo no está registrado
	if _, err := f.registry.Scheme(f.alg); err != nil {
		return nil, err
	}
	return f, nil
}

// Algorithm devuelve el algoritmo configurado.
func (f *Factory) Algorithm() keys.Algorithm { return f.alg }

// Store devuelve el keystore subyacente.
func (f *Factory) Store() keystore.KeyStore { return f.store }

// ForMember devuelve el engine del member. Es barato: no toca el store.
func (f *Factory) ForMember(memberID string) *Engine {
	return &Engine{
		f:        f,
		memberID: memberID,
		log:      f.log.With(logger.MemberID(memberID)),
	}
}
