package tui_test

import (
	"bytes"
	"testing"

	"github.com/lyramakesmusic/wool/internal/presentation/tui"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileFor_NonTerminalIsPlain(t *testing.T) {
	assert.Equal(t, termenv.Ascii, tui.ProfileFor(&bytes.Buffer{}))
}

func TestRenderer_ContextPlain(t *testing.T) {
	tree := domain.NewTree("Once")
	n, err := tree.AddUserNode(tree.FocusedNodeID(), " upon\na time")
	require.NoError(t, err)

	r := tui.NewRenderer(&bytes.Buffer{})
	assert.Equal(t, "Once upon\na time", r.Context(tree, n.ID))
}

func TestRenderer_ContextColored(t *testing.T) {
	tree := domain.NewTree("Once")
	n, err := tree.AddUserNode(tree.FocusedNodeID(), " upon")
	require.NoError(t, err)

	out := tui.NewRendererWithProfile(termenv.TrueColor).Context(tree, n.ID)
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "Once")
	assert.Contains(t, out, " upon")
}

func TestRenderer_Outline(t *testing.T) {
	tree := domain.NewTree("root text")
	rootID := tree.FocusedNodeID()
	ids, err := tree.AddPlaceholders(rootID, 2, nil)
	require.NoError(t, err)
	tree.Apply(ids[1], domain.NewOutcome(ids[1], domain.Failure("API error 500: boom")))

	out := tui.NewRendererWithProfile(termenv.Ascii).Outline(tree)

	assert.Contains(t, out, "* "+rootID[:8]+"  root text\n")
	assert.Contains(t, out, "    "+ids[0][:8]+"  ...\n")
	assert.Contains(t, out, "    "+ids[1][:8]+"  error: API error 500: boom\n")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "|_|")
}
