package ports

import (
	"context"
	"testing"
	"time"

	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTreeStoreContract runs a suite of tests to verify that a TreeStore implementation
// adheres to the defined interface contract.
func RunTreeStoreContract(t *testing.T, store TreeStore) {
	ctx := context.Background()
	name := "contract-test-tree-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		tree := domain.NewTree("Once upon a time")
		ids, err := tree.AddPlaceholders(tree.FocusedNodeID(), 2, map[string]any{"model": "m"})
		require.NoError(t, err)
		tree.Apply(ids[0], domain.NewOutcome(ids[0], domain.Success(", a fox")))
		tree.Apply(ids[1], domain.NewOutcome(ids[1], domain.Failure("API error 429: slow down")))

		err = store.Save(ctx, name, tree)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, tree.Snapshot(), loaded.Snapshot(), "Load(Save(tree)) should equal tree")
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		first := domain.NewTree("first")
		second := domain.NewTree("second")
		require.NoError(t, store.Save(ctx, name, first))
		require.NoError(t, store.Save(ctx, name, second))

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, second.Snapshot(), loaded.Snapshot())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+name)
		assert.ErrorIs(t, err, domain.ErrTreeNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, name, domain.NewTree("to delete"))
		require.NoError(t, err)

		err = store.Delete(ctx, name)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, name)
		assert.ErrorIs(t, err, domain.ErrTreeNotFound, "Load after Delete should return ErrTreeNotFound")
	})

	t.Run("List", func(t *testing.T) {
		n1 := name + "-1"
		n2 := name + "-2"
		_ = store.Save(ctx, n1, domain.NewTree("one"))
		_ = store.Save(ctx, n2, domain.NewTree("two"))

		defer func() {
			_ = store.Delete(ctx, n1)
			_ = store.Delete(ctx, n2)
		}()

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, n1)
		assert.Contains(t, names, n2)
	})
}
