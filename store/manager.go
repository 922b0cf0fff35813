package store

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/counselengine/counsel/domain"
)

// Manager lazily opens and caches one VectorStore per Domain, rooted at
// <baseDir>/vector_store/<domain>/index.db. This is the structural
// enforcement of domain partitioning: a caller can only reach a domain's
// data by asking the Manager for that exact domain's store.
type Manager struct {
	baseDir      string
	embeddingDim int

	mu     sync.Mutex
	stores map[domain.Domain]*VectorStore
}

func NewManager(baseDir string, embeddingDim int) *Manager {
	return &Manager{
		baseDir:      baseDir,
		embeddingDim: embeddingDim,
		stores:       make(map[domain.Domain]*VectorStore),
	}
}

// Get returns the VectorStore for d, opening it on first use.
func (m *Manager) Get(d domain.Domain) (*VectorStore, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("store: invalid domain %q", d)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if vs, ok := m.stores[d]; ok {
		return vs, nil
	}
	path := filepath.Join(m.baseDir, "vector_store", string(d), "index.db")
	vs, err := OpenVectorStore(path, m.embeddingDim)
	if err != nil {
		return nil, err
	}
	m.stores[d] = vs
	return vs, nil
}

// Close closes every vector store opened so far.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for d, vs := range m.stores {
		if err := vs.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("store: closing %s index: %w", d, err)
		}
	}
	return firstErr
}
