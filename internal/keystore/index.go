package keystore

import (
	"sync"
	"time"

	"github.com/dropDatabas3/memberkeys/internal/keys"
)

// memberIndex es el estado en memoria de un member: log de inserción,
// índice por id y, por nivel, los ids en orden de Put (el último es el más nuevo).
// No depende del orden de iteración de mapas.
type memberIndex struct {
	mu      sync.RWMutex
	byID    map[string]keys.KeyPair
	order   []string
	byLevel map[keys.Level][]string
}

func newMemberIndex() *memberIndex {
	return &memberIndex{
		byID:    make(map[string]keys.KeyPair),
		byLevel: make(map[keys.Level][]string),
	}
}

// put registra kp como el par más nuevo de su nivel. El llamador tiene el lock de escritura.
func (ix *memberIndex) put(kp keys.KeyPair) {
	if prev, seen := ix.byID[kp.ID]; !seen {
		ix.order = append(ix.order, kp.ID)
	} else {
		ix.byLevel[prev.Level] = without(ix.byLevel[prev.Level], kp.ID)
	}
	ix.byID[kp.ID] = kp
	ix.byLevel[kp.Level] = append(ix.byLevel[kp.Level], kp.ID)
}

// getByLevel recorre el nivel del más nuevo al más viejo y devuelve el primero no expirado.
func (ix *memberIndex) getByLevel(memberID string, level keys.Level, now time.Time) (keys.KeyPair, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids := ix.byLevel[level]
	for i := len(ids) - 1; i >= 0; i-- {
		if kp, err := usableByLevel(memberID, level, ix.byID[ids[i]], now); err == nil {
			return kp, nil
		}
	}
	return keys.KeyPair{}, keys.NotFoundByLevel(memberID, level)
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (ix *memberIndex) getByID(memberID, keyID string, now time.Time) (keys.KeyPair, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	kp, ok := ix.byID[keyID]
	if !ok {
		return keys.KeyPair{}, keys.NotFoundByID(memberID, keyID)
	}
	return usableByID(memberID, keyID, kp, now)
}

// list devuelve los pares no expirados en orden de inserción.
func (ix *memberIndex) list(now time.Time) []keys.KeyPair {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]keys.KeyPair, 0, len(ix.order))
	for _, id := range ix.order {
		if kp := ix.byID[id]; !kp.IsExpiredAt(now) {
			out = append(out, kp)
		}
	}
	return out
}
