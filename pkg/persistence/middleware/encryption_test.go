package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"
	"testing"

	"github.com/lyramakesmusic/wool/pkg/adapters/memory"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/lyramakesmusic/wool/pkg/persistence/middleware"
	"github.com/lyramakesmusic/wool/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secure(t *testing.T, next ports.TreeStore, cfg middleware.EncryptionConfig) ports.TreeStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunTreeStoreContract(t, secure(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	store := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	original := domain.NewTree("my-secret-sauce")
	require.NoError(t, store.Save(ctx, "story", original))

	stored, err := underlying.Load(ctx, "story")
	require.NoError(t, err)
	require.Equal(t, 1, stored.Len())
	sealed, ok := stored.Node(middleware.EnvelopeNodeID)
	require.True(t, ok)
	assert.NotContains(t, sealed.Text, "my-secret-sauce")
	assert.Empty(t, stored.FocusedNodeID())

	loaded, err := store.Load(ctx, "story")
	require.NoError(t, err)
	assert.Equal(t, original.Snapshot(), loaded.Snapshot())
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	oldStore := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, oldStore.Save(ctx, "story", domain.NewTree("encrypted-with-old-key")))

	newStore := secure(t, underlying, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	loaded, err := newStore.Load(ctx, "story")
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", loaded.BuildContext(loaded.FocusedNodeID()))

	require.NoError(t, newStore.Save(ctx, "story", domain.NewTree("encrypted-with-new-key")))

	_, err = oldStore.Load(ctx, "story")
	assert.Error(t, err, "old key alone must not open data sealed with the new key")
}

func TestEncryptionMiddleware_RefusesPlainTree(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "plain", domain.NewTree("not sealed")))

	store := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	_, err := store.Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)

	got, err := middleware.ParseKey(hex.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	got, err = middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey("abcd")
	assert.Error(t, err)
}

func TestChain_OrdersOutermostFirst(t *testing.T) {
	underlying := memory.NewStore()
	var calls []string
	tag := func(name string) middleware.Middleware {
		return func(next ports.TreeStore) ports.TreeStore {
			return &spyStore{TreeStore: next, name: name, calls: &calls}
		}
	}

	store := middleware.Chain(underlying, tag("outer"), tag("inner"))
	require.NoError(t, store.Save(context.Background(), "t", domain.NewTree("x")))
	assert.Equal(t, []string{"outer", "inner"}, calls)
}

type spyStore struct {
	ports.TreeStore
	name  string
	calls *[]string
}

func (s *spyStore) Save(ctx context.Context, name string, tree *domain.Tree) error {
	*s.calls = append(*s.calls, s.name)
	return s.TreeStore.Save(ctx, name, tree)
}
