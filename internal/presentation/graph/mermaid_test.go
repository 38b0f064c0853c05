package graph_test

import (
	"strings"
	"testing"

	"github.com/lyramakesmusic/wool/internal/presentation/graph"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ref(s string) *string { return &s }

func TestGenerateMermaid(t *testing.T) {
	tree := domain.FromSnapshot(domain.Snapshot{
		Nodes: map[string]domain.Node{
			"root": {ID: "root", Type: domain.NodeTypeAI, Text: "Once upon a time"},
			"u-1":  {ID: "u-1", ParentID: ref("root"), Type: domain.NodeTypeUser, Text: " there was", Position: domain.Position{Y: 1}},
			"a.1":  {ID: "a.1", ParentID: ref("u-1"), Type: domain.NodeTypeAI, Text: ` a "fox"`},
			"a.2":  {ID: "a.2", ParentID: ref("u-1"), Type: domain.NodeTypeAI, Loading: true, Position: domain.Position{Y: 30}},
			"a.3":  {ID: "a.3", ParentID: ref("u-1"), Type: domain.NodeTypeAI, Error: ref("API error 429: slow"), Position: domain.Position{Y: 60}},
		},
		FocusedNodeID: ref("a.1"),
	})

	got := graph.GenerateMermaid(tree)

	require.True(t, strings.HasPrefix(got, "graph TD\n"))
	for _, want := range []string{
		`n_root(("Once upon a time"))`,
		`n_u_1[/"there was"/]`,
		`n_a_1["a 'fox'"]`,
		`n_a_2{{"..."}}`,
		`n_a_3["error: API error 429: slow"]`,
		"n_root --> n_u_1",
		"n_u_1 --> n_a_1",
		"class n_root visited;",
		"class n_u_1 visited;",
		"class n_a_1 current;",
		"class n_a_3 failed;",
	} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, "class n_a_1 visited;")
}

func TestGenerateMermaid_TruncatesLongText(t *testing.T) {
	tree := domain.NewTree(strings.Repeat("x", 100))
	got := graph.GenerateMermaid(tree)
	assert.Contains(t, got, strings.Repeat("x", graph.MaxLabel)+"…")
	assert.NotContains(t, got, strings.Repeat("x", graph.MaxLabel+1))
}

func TestGenerateMermaid_EmptyTree(t *testing.T) {
	assert.Equal(t, "graph TD\n", graph.GenerateMermaid(domain.NewEmptyTree()))
}
