package file_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lyramakesmusic/wool/internal/adapters/file"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/lyramakesmusic/wool/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.TreeStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunTreeStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_WritesIndentedJSON(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	tree := domain.NewTree("Once upon a time")

	require.NoError(t, store.Save(context.Background(), domain.DefaultTreeName, tree))

	data, err := os.ReadFile(filepath.Join(dir, "tree_state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"nodes\"")

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, tree.FocusedNodeID(), raw["focused_node_id"])
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, "t", domain.NewTree("x")))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "t.json", entries[0].Name())
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644))

	_, err := file.New(dir).Load(context.Background(), "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTreeNotFound)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	names, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFileStore_EmptyName(t *testing.T) {
	store := file.New(t.TempDir())
	assert.Error(t, store.Save(context.Background(), "", domain.NewEmptyTree()))
	_, err := store.Load(context.Background(), "")
	assert.Error(t, err)
}

func TestFileStore_RejectsUnsafeNames(t *testing.T) {
	dir := t.TempDir()
	store := file.New(filepath.Join(dir, "trees"))
	ctx := context.Background()

	for _, name := range []string{"..", "../escape", `a\b`, "nested/tree", "tmp-x"} {
		err := store.Save(ctx, name, domain.NewTree("x"))
		assert.ErrorIs(t, err, file.ErrInvalidName, name)
		_, err = store.Load(ctx, name)
		assert.ErrorIs(t, err, file.ErrInvalidName, name)
		assert.ErrorIs(t, store.Delete(ctx, name), file.ErrInvalidName, name)
	}
	assert.NoFileExists(t, filepath.Join(dir, "escape.json"))
}

func TestFileStore_ReservedNames(t *testing.T) {
	dir := t.TempDir()
	settings := []byte(`{"token": "sk-secret"}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), settings, 0644))

	store := file.New(dir, file.WithReserved("config"))
	ctx := context.Background()

	err := store.Save(ctx, "config", domain.NewTree("clobber"))
	assert.ErrorIs(t, err, file.ErrInvalidName)

	raw, err := os.ReadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, settings, raw)

	require.NoError(t, store.Save(ctx, "tree_state", domain.NewTree("seed")))
	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tree_state"}, names)
}
