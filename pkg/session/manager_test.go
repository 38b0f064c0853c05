package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lyramakesmusic/wool/pkg/adapters/memory"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/lyramakesmusic/wool/pkg/ports"
	"github.com/lyramakesmusic/wool/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore adds latency so lost updates show up when locking is missing.
type slowStore struct {
	*memory.Store
}

func (s slowStore) Save(ctx context.Context, name string, tree *domain.Tree) error {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Save(ctx, name, tree)
}

func (s slowStore) Load(ctx context.Context, name string) (*domain.Tree, error) {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Load(ctx, name)
}

type brokenStore struct {
	ports.TreeStore
}

func (brokenStore) Load(ctx context.Context, name string) (*domain.Tree, error) {
	return nil, errors.New("failed to decode tree file: invalid character")
}

func TestManager_LoadMissingReturnsEmptyTree(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())

	tree, err := mgr.Load(context.Background(), "absent")
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, tree.FocusedNodeID())
}

func TestManager_LoadCorruptReturnsEmptyTree(t *testing.T) {
	mgr := session.NewManager(brokenStore{TreeStore: memory.NewStore()})

	tree, err := mgr.Load(context.Background(), "broken")
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Len())
}

func TestManager_UpdateIsSerialized(t *testing.T) {
	mgr := session.NewManager(slowStore{memory.NewStore()})
	ctx := context.Background()
	name := "race-test"

	seed := domain.NewTree("seed")
	rootID := seed.FocusedNodeID()
	require.NoError(t, mgr.Save(ctx, name, seed))

	var wg sync.WaitGroup
	writers := 10
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Update(ctx, name, func(tree *domain.Tree) error {
				_, err := tree.AddUserNode(rootID, "x")
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	tree, err := mgr.Load(ctx, name)
	require.NoError(t, err)
	assert.Len(t, tree.Children(rootID), writers, "no update may be lost")
}

func TestManager_UpdateErrorSkipsSave(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(store)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := mgr.Update(ctx, "t", func(tree *domain.Tree) error {
		tree.Put(domain.Node{ID: "n", Type: domain.NodeTypeAI, Text: "x"})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Load(ctx, "t")
	assert.ErrorIs(t, err, domain.ErrTreeNotFound)
}

type recordingLocker struct {
	mu    sync.Mutex
	keys  []string
	freed int
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return func(context.Context) error {
		l.mu.Lock()
		l.freed++
		l.mu.Unlock()
		return nil
	}, nil
}

func TestManager_UsesDistributedLocker(t *testing.T) {
	locker := &recordingLocker{}
	mgr := session.NewManager(memory.NewStore(), session.WithLocker(locker))

	_, err := mgr.Load(context.Background(), "shared")
	require.NoError(t, err)

	assert.Equal(t, []string{"shared"}, locker.keys)
	assert.Equal(t, 1, locker.freed)
}
