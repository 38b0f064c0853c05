package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/lyramakesmusic/wool/internal/adapters/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_FileStoreDefaults(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	app, err := Build(ctx, Options{Dir: dir})
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Metrics)
	assert.FileExists(t, filepath.Join(dir, "config.json"))

	_, err = app.Service.CreateTree(ctx, "seed")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "tree_state.json"))
}

func TestBuild_TreeNameAndConfigPath(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("n_siblings: 5\n"), 0o644))

	app, err := Build(context.Background(), Options{Dir: dir, ConfigPath: cfgPath, TreeName: "story", Metrics: true})
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "story", app.Service.TreeName())
	assert.Equal(t, 5, app.Service.Settings().NSiblings)
	assert.NotNil(t, app.Metrics)
}

func TestBuild_TreeCannotOverwriteSettings(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	app, err := Build(ctx, Options{Dir: dir})
	require.NoError(t, err)
	_, err = app.Service.UpdateSettings(map[string]any{"n_siblings": 7, "token": "sk-secret"})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	_, err = Build(ctx, Options{Dir: dir, TreeName: "config"})
	assert.ErrorIs(t, err, file.ErrInvalidName)
	_, err = Build(ctx, Options{Dir: dir, TreeName: "../outside"})
	assert.ErrorIs(t, err, file.ErrInvalidName)

	app, err = Build(ctx, Options{Dir: dir})
	require.NoError(t, err)
	defer app.Close()
	assert.Equal(t, 7, app.Service.Settings().NSiblings)
	assert.Equal(t, "sk-secret", app.Service.Settings().Token)

	_, err = app.Service.CreateTree(ctx, "seed")
	require.NoError(t, err)
	names, err := app.Service.ListTrees(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tree_state"}, names)
}

func TestBuild_ConfigElsewhereFreesTheName(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.json")

	app, err := Build(context.Background(), Options{Dir: dir, ConfigPath: cfgPath, TreeName: "config"})
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Service.CreateTree(context.Background(), "seed")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "config.json"))
}

func TestBuild_MemoryStoreLeavesNoTree(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	app, err := Build(ctx, Options{Dir: dir, Store: StoreMemory})
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Service.CreateTree(ctx, "seed")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "tree_state.json"))
}

func TestBuild_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	app, err := Build(ctx, Options{Dir: t.TempDir(), Store: StoreRedis, RedisAddr: mr.Addr()})
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Service.CreateTree(ctx, "seed")
	require.NoError(t, err)
	assert.True(t, mr.Exists("wool:tree:tree_state"))
}

func TestBuild_EncryptedFileStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	key := strings.Repeat("ab", 32)

	app, err := Build(ctx, Options{Dir: dir, EncryptionKey: key})
	require.NoError(t, err)
	_, err = app.Service.CreateTree(ctx, "a very private seed")
	require.NoError(t, err)
	require.NoError(t, app.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "tree_state.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "a very private seed")

	again, err := Build(ctx, Options{Dir: dir, EncryptionKey: key})
	require.NoError(t, err)
	defer again.Close()
	text, err := again.Service.Context(ctx, mustFocus(t, again))
	require.NoError(t, err)
	assert.Equal(t, "a very private seed", text)

	_, err = Build(ctx, Options{Dir: dir, EncryptionKey: "short"})
	assert.Error(t, err)
}

func mustFocus(t *testing.T, app *App) string {
	t.Helper()
	tree, err := app.Service.Tree(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, tree.FocusedNodeID())
	return tree.FocusedNodeID()
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(context.Background(), Options{Dir: t.TempDir(), Store: "sqlite"})
	assert.ErrorContains(t, err, "unknown store")

	_, err = Build(context.Background(), Options{Dir: t.TempDir(), LogLevel: "loud"})
	assert.ErrorContains(t, err, "unknown log level")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	logger, err = NewLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
