package domain_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTree_SeedsFocusedRoot(t *testing.T) {
	tree := domain.NewTree("Once upon a time")

	require.Equal(t, 1, tree.Len())
	rootID := tree.FocusedNodeID()
	require.NotEmpty(t, rootID)

	root, ok := tree.Node(rootID)
	require.True(t, ok)
	assert.Equal(t, "Once upon a time", root.Text)
	assert.Equal(t, domain.NodeTypeAI, root.Type)
	assert.True(t, root.IsRoot())
	assert.False(t, root.Loading)
	assert.Nil(t, root.Error)
}

func TestTree_SetFocusDoesNotValidate(t *testing.T) {
	tree := domain.NewTree("seed")
	tree.SetFocus("does-not-exist")
	assert.Equal(t, "does-not-exist", tree.FocusedNodeID())
}

func TestTree_NodeNotFound(t *testing.T) {
	tree := domain.NewEmptyTree()
	_, ok := tree.Node("missing")
	assert.False(t, ok)
}

func TestTree_ApplySuccess(t *testing.T) {
	tree := domain.NewTree("seed")
	ids, err := tree.AddPlaceholders(tree.FocusedNodeID(), 1, nil)
	require.NoError(t, err)

	applied := tree.Apply(ids[0], domain.NewOutcome(ids[0], domain.Success(" and then")))
	assert.True(t, applied)

	n, _ := tree.Node(ids[0])
	assert.Equal(t, " and then", n.Text)
	assert.False(t, n.Loading)
	assert.Nil(t, n.Error)
}

func TestTree_ApplyFailure(t *testing.T) {
	tree := domain.NewTree("seed")
	ids, err := tree.AddPlaceholders(tree.FocusedNodeID(), 1, nil)
	require.NoError(t, err)

	tree.Apply(ids[0], domain.NewOutcome(ids[0], domain.Failure("API error %d: %s", 500, "boom")))

	n, _ := tree.Node(ids[0])
	assert.Empty(t, n.Text)
	assert.False(t, n.Loading)
	require.NotNil(t, n.Error)
	assert.Equal(t, "API error 500: boom", *n.Error)
}

func TestTree_ApplyStalePlaceholderIsIgnored(t *testing.T) {
	tree := domain.NewTree("seed")
	before := tree.Snapshot()

	applied := tree.Apply("gone", domain.NewOutcome("gone", domain.Success("text")))

	assert.False(t, applied)
	assert.Equal(t, before, tree.Snapshot())
}

func TestTree_AddPlaceholders(t *testing.T) {
	tree := domain.NewTree("seed")
	rootID := tree.FocusedNodeID()

	ids, err := tree.AddPlaceholders(rootID, 3, map[string]any{"model": "m"})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	children := tree.Children(rootID)
	require.Len(t, children, 3)
	for i, c := range children {
		assert.True(t, c.Loading)
		assert.Equal(t, rootID, c.Parent())
		assert.Equal(t, float64(domain.RootX+domain.SiblingOffsetX), c.Position.X)
		assert.Equal(t, "m", c.Extra["model"])
		if i > 0 {
			assert.Equal(t, float64(domain.SiblingSpacingY), c.Position.Y-children[i-1].Position.Y)
		}
	}

	_, err = tree.AddPlaceholders("missing", 2, nil)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestTree_AddUserNode(t *testing.T) {
	tree := domain.NewTree("seed")
	n, err := tree.AddUserNode(tree.FocusedNodeID(), " said the user")
	require.NoError(t, err)

	assert.Equal(t, domain.NodeTypeUser, n.Type)
	assert.Equal(t, "seed said the user", tree.BuildContext(n.ID))

	_, err = tree.AddUserNode("missing", "x")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestTree_JSONRoundTripPreservesExtras(t *testing.T) {
	raw := `{
		"nodes": {
			"a": {"id": "a", "parent_id": null, "type": "ai", "text": "A",
			      "position": {"x": 1, "y": 2}, "loading": false, "error": null,
			      "manually_positioned": true}
		},
		"focused_node_id": "a"
	}`

	var tree domain.Tree
	require.NoError(t, json.Unmarshal([]byte(raw), &tree))

	n, ok := tree.Node("a")
	require.True(t, ok)
	assert.Equal(t, true, n.Extra["manually_positioned"])

	out, err := json.Marshal(&tree)
	require.NoError(t, err)

	var again domain.Tree
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, tree.Snapshot(), again.Snapshot())
	assert.Contains(t, string(out), `"manually_positioned":true`)
	assert.Contains(t, string(out), `"focused_node_id":"a"`)
}

func TestTree_EmptyTreeEncoding(t *testing.T) {
	out, err := json.Marshal(domain.NewEmptyTree())
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes": {}, "focused_node_id": null}`, string(out))
}

func TestTree_ConcurrentApply(t *testing.T) {
	tree := domain.NewTree("seed")
	ids, err := tree.AddPlaceholders(tree.FocusedNodeID(), 16, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			tree.Apply(id, domain.NewOutcome(id, domain.Success(id)))
			_ = tree.BuildContext(id)
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		n, _ := tree.Node(id)
		assert.Equal(t, id, n.Text)
		assert.False(t, n.Loading)
	}
}
