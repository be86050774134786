package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/memberkeys/internal/keys"
	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
	"github.com/dropDatabas3/memberkeys/internal/util/atomicwrite"
)

const (
	fileExt      = ".json"
	filePerm     = 0o600
	loadParallel = 8
)

// memberFile es el documento JSON de un member: su id y el log de pares en orden de Put.
type memberFile struct {
	MemberID string   `json:"memberId"`
	Keys     []record `json:"keys"`
}

type fileMember struct {
	wmu     sync.Mutex // serializa escrituras del archivo
	path    string
	records []record
	index   *memberIndex
}

// FileStore guarda un archivo JSON por member bajo root.
// Cada Put reescribe el archivo completo de forma atómica (tmp + fsync + rename).
type FileStore struct {
	root  string
	opts  options
	codec codec

	mu      sync.RWMutex
	members map[string]*fileMember
	owners  map[string]string // nombre de archivo -> member id
}

// NewFileStore crea root si no existe y carga todos los members persistidos.
// Un archivo ilegible o inconsistente hace fallar la apertura con ErrMalformedPersistedState.
func NewFileStore(root string, opts ...Option) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("keystore: file store root required")
	}
	if err := os.MkdirAll(root, atomicwrite.DirPerm); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	s := &FileStore{
		root:    root,
		opts:    buildOptions(opts),
		members: make(map[string]*fileMember),
		owners:  make(map[string]string),
	}
	s.codec = codec{box: s.opts.box}
	if err := s.load(); err != nil {
		return nil, err
	}
	s.opts.log.Info("file keystore loaded", logger.Path(root), logger.Count(len(s.members)))
	return s, nil
}

func (s *FileStore) load() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("read keystore dir: %w", err)
	}

	var (
		mu     sync.Mutex
		g      errgroup.Group
		loaded = make(map[string]*fileMember)
	)
	g.SetLimit(loadParallel)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
			continue
		}
		g.Go(func() error {
			memberID, m, err := s.loadFile(name)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if prev, dup := loaded[memberID]; dup {
				return fmt.Errorf("%w: member %q stored in both %s and %s",
					keys.ErrMalformedPersistedState, memberID, filepath.Base(prev.path), name)
			}
			loaded[memberID] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for memberID, m := range loaded {
		s.members[memberID] = m
		s.owners[filepath.Base(m.path)] = memberID
	}
	return nil
}

func (s *FileStore) loadFile(name string) (string, *fileMember, error) {
	path := filepath.Join(s.root, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", name, err)
	}

	var doc memberFile
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		// Formato viejo: solo el array de pares; el member sale del nombre del archivo.
		doc.MemberID = strings.TrimSuffix(name, fileExt)
		err = json.Unmarshal(data, &doc.Keys)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", keys.ErrMalformedPersistedState, name, err)
	}
	if doc.MemberID == "" {
		return "", nil, fmt.Errorf("%w: %s: missing memberId", keys.ErrMalformedPersistedState, name)
	}

	m := &fileMember{path: path, records: doc.Keys, index: newMemberIndex()}
	for _, rec := range doc.Keys {
		kp, err := s.codec.decode(rec)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", name, err)
		}
		// Las expiradas se cargan igual: siguen ocupando su lugar en el log.
		m.index.put(kp)
	}
	return doc.MemberID, m, nil
}

// member devuelve el estado del member, creándolo si create es true.
// Dos members distintos que sanitizan al mismo nombre de archivo son un error.
func (s *FileStore) member(memberID string, create bool) (*fileMember, error) {
	s.mu.RLock()
	m := s.members[memberID]
	s.mu.RUnlock()
	if m != nil || !create {
		return m, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m = s.members[memberID]; m != nil {
		return m, nil
	}
	name := fileNameFor(memberID)
	if owner, taken := s.owners[name]; taken && owner != memberID {
		return nil, fmt.Errorf("keystore: member %q collides with member %q on file %s", memberID, owner, name)
	}
	m = &fileMember{path: filepath.Join(s.root, name), index: newMemberIndex()}
	s.members[memberID] = m
	s.owners[name] = memberID
	return m, nil
}

func (s *FileStore) Put(ctx context.Context, memberID string, kp keys.KeyPair) error {
	if err := checkPut(memberID, kp, s.opts.now()); err != nil {
		return err
	}
	m, err := s.member(memberID, true)
	if err != nil {
		return err
	}
	rec, err := s.codec.encode(kp)
	if err != nil {
		return err
	}

	m.wmu.Lock()
	defer m.wmu.Unlock()

	next := append(slices.Clip(m.records), rec)
	data, err := json.MarshalIndent(memberFile{MemberID: memberID, Keys: next}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode member %q: %w", memberID, err)
	}
	if err := atomicwrite.WriteFile(m.path, data, filePerm); err != nil {
		s.opts.log.Error("keystore write failed", logger.MemberID(memberID), logger.Path(m.path), logger.Err(err))
		return fmt.Errorf("persist member %q: %w", memberID, err)
	}

	m.records = next
	m.index.mu.Lock()
	m.index.put(kp)
	m.index.mu.Unlock()

	s.opts.log.Debug("key persisted",
		logger.MemberID(memberID), logger.KeyID(kp.ID), logger.Level(kp.Level.String()),
		zap.Int("log_size", len(next)))
	return nil
}

func (s *FileStore) GetByLevel(ctx context.Context, memberID string, level keys.Level) (keys.KeyPair, error) {
	m, _ := s.member(memberID, false)
	if m == nil {
		return keys.KeyPair{}, keys.NotFoundByLevel(memberID, level)
	}
	return m.index.getByLevel(memberID, level, s.opts.now())
}

func (s *FileStore) GetByID(ctx context.Context, memberID, keyID string) (keys.KeyPair, error) {
	m, _ := s.member(memberID, false)
	if m == nil {
		return keys.KeyPair{}, keys.NotFoundByID(memberID, keyID)
	}
	return m.index.getByID(memberID, keyID, s.opts.now())
}

func (s *FileStore) KeyList(ctx context.Context, memberID string) ([]keys.KeyPair, error) {
	m, _ := s.member(memberID, false)
	if m == nil {
		return []keys.KeyPair{}, nil
	}
	return m.index.list(s.opts.now()), nil
}

// fileNameFor deja solo [A-Za-z0-9._-]; el resto pasa a '_'.
func fileNameFor(memberID string) string {
	var b strings.Builder
	b.Grow(len(memberID) + len(fileExt))
	for _, r := range memberID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == '.' && b.Len() > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String() + fileExt
}
