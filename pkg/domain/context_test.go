package domain_test

import (
	"testing"

	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ref(s string) *string { return &s }

// chain builds root -> child -> grandchild with the given texts.
func chain(texts ...string) (*domain.Tree, []string) {
	s := domain.Snapshot{Nodes: map[string]domain.Node{}}
	ids := make([]string, len(texts))
	for i, text := range texts {
		id := string(rune('a' + i))
		ids[i] = id
		n := domain.Node{ID: id, Type: domain.NodeTypeAI, Text: text}
		if i > 0 {
			n.ParentID = ref(ids[i-1])
		}
		s.Nodes[id] = n
	}
	return domain.FromSnapshot(s), ids
}

func TestBuildContext_RootIdentity(t *testing.T) {
	tree := domain.NewTree("Once upon a time")
	assert.Equal(t, "Once upon a time", tree.BuildContext(tree.FocusedNodeID()))
}

func TestBuildContext_ConcatenationOrder(t *testing.T) {
	tree, ids := chain("A", "B", "C")
	assert.Equal(t, "ABC", tree.BuildContext(ids[2]))
	assert.Equal(t, "AB", tree.BuildContext(ids[1]))
}

func TestBuildContext_KeepsWhitespace(t *testing.T) {
	tree, ids := chain("The cat", " sat", "\n\non the mat.")
	assert.Equal(t, "The cat sat\n\non the mat.", tree.BuildContext(ids[2]))
}

func TestBuildContext_Deterministic(t *testing.T) {
	tree, ids := chain("x", "y", "z")
	first := tree.BuildContext(ids[2])
	second := tree.BuildContext(ids[2])
	assert.Equal(t, first, second)
}

func TestBuildContext_MissingNode(t *testing.T) {
	tree, _ := chain("A", "B")
	assert.Equal(t, "", tree.BuildContext("unknown"))
	assert.Equal(t, "", domain.NewEmptyTree().BuildContext("unknown"))
}

func TestBuildContext_DanglingParentStopsWalk(t *testing.T) {
	tree := domain.FromSnapshot(domain.Snapshot{Nodes: map[string]domain.Node{
		"orphan": {ID: "orphan", ParentID: ref("deleted"), Text: "tail"},
	}})
	assert.Equal(t, "tail", tree.BuildContext("orphan"))
}

func TestPath_CycleIsDetected(t *testing.T) {
	tree := domain.FromSnapshot(domain.Snapshot{Nodes: map[string]domain.Node{
		"a": {ID: "a", ParentID: ref("b"), Text: "A"},
		"b": {ID: "b", ParentID: ref("a"), Text: "B"},
	}})

	path, err := tree.Path("a")
	require.ErrorIs(t, err, domain.ErrMalformedTree)
	assert.Len(t, path, 2)

	// Must terminate rather than hang.
	assert.Equal(t, "BA", tree.BuildContext("a"))
}

func TestPath_SelfParent(t *testing.T) {
	tree := domain.FromSnapshot(domain.Snapshot{Nodes: map[string]domain.Node{
		"a": {ID: "a", ParentID: ref("a"), Text: "A"},
	}})

	_, err := tree.Path("a")
	assert.ErrorIs(t, err, domain.ErrMalformedTree)
	assert.Equal(t, "A", tree.BuildContext("a"))
}
