package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/lyramakesmusic/wool/internal/logging"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/lyramakesmusic/wool/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates tree access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.TreeStore

	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // active per-tree locks

	locker  ports.DistributedLocker // optional
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Manager over the given persistence store.
func NewManager(store ports.TreeStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(name) after unlocking.
func (m *Manager) acquire(name string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		entry = &lockEntry{}
		m.locks[name] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, name)
	}
}

// Load retrieves a tree from the store. Absent or unreadable state yields an
// empty tree; the only errors are lock failures.
func (m *Manager) Load(ctx context.Context, name string) (*domain.Tree, error) {
	var tree *domain.Tree
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		tree = m.load(ctx, name)
		return nil
	})
	return tree, err
}

func (m *Manager) load(ctx context.Context, name string) *domain.Tree {
	tree, err := m.store.Load(ctx, name)
	switch {
	case err == nil:
		return tree
	case errors.Is(err, domain.ErrTreeNotFound):
		m.logger.Debug("no persisted tree, starting empty", "tree", name)
	default:
		m.logger.Warn("persisted tree unreadable, starting empty", "tree", name, "err", err)
	}
	return domain.NewEmptyTree()
}

// Update runs a load-modify-save cycle while holding the tree's lock.
// The tree is saved only when fn returns nil.
func (m *Manager) Update(ctx context.Context, name string, fn func(*domain.Tree) error) (*domain.Tree, error) {
	var tree *domain.Tree
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		tree = m.load(ctx, name)
		if err := fn(tree); err != nil {
			return err
		}
		if err := m.store.Save(ctx, name, tree); err != nil {
			return fmt.Errorf("failed to save tree: %w", err)
		}
		return nil
	})
	return tree, err
}

// Save persists the tree wholesale.
func (m *Manager) Save(ctx context.Context, name string, tree *domain.Tree) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		return m.store.Save(ctx, name, tree)
	})
}

// Delete removes the tree from the store.
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		return m.store.Delete(ctx, name)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying tree store.
func (m *Manager) Store() ports.TreeStore {
	return m.store
}

// WithLock executes a function while holding the lock for the tree.
func (m *Manager) WithLock(ctx context.Context, name string, fn func(context.Context) error) error {
	entry := m.acquire(name)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(name)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, name, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// Use a fresh context so a cancelled request still releases.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"tree", name,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
