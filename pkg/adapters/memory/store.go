package memory

import (
	"context"
	"sync"

	"github.com/lyramakesmusic/wool/pkg/domain"
)

// Store implements ports.TreeStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Snapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Snapshot),
	}
}

// Save keeps a deep copy of the tree, mirroring what serialization would do.
func (s *Store) Save(ctx context.Context, name string, tree *domain.Tree) error {
	snap := tree.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = snap
	return nil
}

// Load returns a fresh tree so callers can't mutate stored state by pointer.
func (s *Store) Load(ctx context.Context, name string) (*domain.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[name]
	if !ok {
		return nil, domain.ErrTreeNotFound
	}
	return domain.FromSnapshot(snap), nil
}

// Delete removes the tree.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

// List returns stored tree names.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	return names, nil
}
