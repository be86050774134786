// Package metrics define las métricas Prometheus del engine de claves.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Keys agrupa los colectores del engine. Un valor nil es válido y no mide nada,
// así los tests no necesitan registry.
type Keys struct {
	Generated      *prometheus.CounterVec
	Signatures     *prometheus.CounterVec
	VerifyFailures *prometheus.CounterVec
	LookupMisses   *prometheus.CounterVec
}

// NewKeys crea los colectores sin registrarlos.
// Valores del label lookup de key_lookup_misses_total.
const (
	LookupLevel        = "level"
	LookupID           = "id"
	LookupLevelAtLeast = "level_at_least"
)

func NewKeys() *Keys {
	return &Keys{
		Generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memberkeys",
			Name:      "keys_generated_total",
			Help:      "Claves generadas por algoritmo y nivel",
		}, []string{"algorithm", "level"}),
		Signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memberkeys",
			Name:      "signatures_total",
			Help:      "Firmas producidas por algoritmo",
		}, []string{"algorithm"}),
		VerifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memberkeys",
			Name:      "verify_failures_total",
			Help:      "Verificaciones de firma fallidas por algoritmo",
		}, []string{"algorithm"}),
		LookupMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memberkeys",
			Name:      "key_lookup_misses_total",
			Help:      "Búsquedas de clave sin resultado (level | id | level_at_least)",
		}, []string{"lookup"}),
	}
}

// Register registra los colectores en reg (o el default si es nil).
// Si ya estaban registrados reutiliza los existentes.
func (m *Keys) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []**prometheus.CounterVec{&m.Generated, &m.Signatures, &m.VerifyFailures, &m.LookupMisses} {
		if err := reg.Register(*c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				*c = existing
			}
		}
	}
	return nil
}

func (m *Keys) KeyGenerated(alg, level string) {
	if m == nil {
		return
	}
	m.Generated.WithLabelValues(alg, level).Inc()
}

func (m *Keys) Signed(alg string) {
	if m == nil {
		return
	}
	m.Signatures.WithLabelValues(alg).Inc()
}

func (m *Keys) VerifyFailed(alg string) {
	if m == nil {
		return
	}
	m.VerifyFailures.WithLabelValues(alg).Inc()
}

func (m *Keys) LookupMissed(lookup string) {
	if m == nil {
		return
	}
	m.LookupMisses.WithLabelValues(lookup).Inc()
}
