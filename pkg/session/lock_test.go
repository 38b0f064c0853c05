package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/stretchr/testify/assert"
)

type nopStore struct{}

func (nopStore) Save(ctx context.Context, name string, tree *domain.Tree) error { return nil }
func (nopStore) Load(ctx context.Context, name string) (*domain.Tree, error) {
	return nil, domain.ErrTreeNotFound
}
func (nopStore) Delete(ctx context.Context, name string) error { return nil }
func (nopStore) List(ctx context.Context) ([]string, error)    { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		name := fmt.Sprintf("tree-%d", i)
		_ = mgr.Save(ctx, name, domain.NewEmptyTree())
		_ = mgr.Delete(ctx, name)
	}

	assert.Empty(t, mgr.locks, "locks should be released once unused")
}
