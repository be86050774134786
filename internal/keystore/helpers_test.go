package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/memberkeys/internal/keys"
)

// fakeClock arranca en un instante fijo y solo avanza con Advance.
type fakeClock struct{ ms atomic.Int64 }

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.ms.Store(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	return c
}

func (c *fakeClock) Now() time.Time { return time.UnixMilli(c.ms.Load()) }
func (c *fakeClock) Advance(d time.Duration) { c.ms.Add(d.Milliseconds()) }
func (c *fakeClock) In(d time.Duration) int64 { return c.ms.Load() + d.Milliseconds() }

func newPair(t *testing.T, level keys.Level, expiresAtMs int64) keys.KeyPair {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519: %v", err)
	}
	return keys.NewKeyPair(level, keys.AlgorithmEd25519, priv, pub, expiresAtMs)
}
