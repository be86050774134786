package keystore

import (
	"context"
	"sync"

	"github.com/dropDatabas3/memberkeys/internal/keys"
)

// MemoryStore es el keystore volátil: todo se pierde al reiniciar el proceso.
type MemoryStore struct {
	opts options

	mu      sync.RWMutex
	members map[string]*memberIndex
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:    buildOptions(opts),
		members: make(map[string]*memberIndex),
	}
}

// member devuelve el índice del member, creándolo si create es true.
func (m *MemoryStore) member(memberID string, create bool) *memberIndex {
	m.mu.RLock()
	ix := m.members[memberID]
	m.mu.RUnlock()
	if ix != nil || !create {
		return ix
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ix = m.members[memberID]; ix == nil {
		ix = newMemberIndex()
		m.members[memberID] = ix
	}
	return ix
}

func (m *MemoryStore) Put(ctx context.Context, memberID string, kp keys.KeyPair) error {
	if err := checkPut(memberID, kp, m.opts.now()); err != nil {
		return err
	}
	ix := m.member(memberID, true)
	ix.mu.Lock()
	ix.put(kp)
	ix.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetByLevel(ctx context.Context, memberID string, level keys.Level) (keys.KeyPair, error) {
	ix := m.member(memberID, false)
	if ix == nil {
		return keys.KeyPair{}, keys.NotFoundByLevel(memberID, level)
	}
	return ix.getByLevel(memberID, level, m.opts.now())
}

func (m *MemoryStore) GetByID(ctx context.Context, memberID, keyID string) (keys.KeyPair, error) {
	ix := m.member(memberID, false)
	if ix == nil {
		return keys.KeyPair{}, keys.NotFoundByID(memberID, keyID)
	}
	return ix.getByID(memberID, keyID, m.opts.now())
}

func (m *MemoryStore) KeyList(ctx context.Context, memberID string) ([]keys.KeyPair, error) {
	ix := m.member(memberID, false)
	if ix == nil {
		return []keys.KeyPair{}, nil
	}
	return ix.list(m.opts.now()), nil
}
