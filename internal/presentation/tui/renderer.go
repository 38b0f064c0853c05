package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Colors for the two authors and for node states.
const (
	ColorAI      = "#e5e7eb"
	ColorUser    = "#60a5fa"
	ColorLoading = "#9ca3af"
	ColorError   = "#f87171"
	ColorFocus   = "#facc15"
)

// ProfileFor returns the color profile for w: the detected terminal profile
// when w is a TTY, plain ASCII otherwise.
func ProfileFor(w io.Writer) termenv.Profile {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

// Renderer formats trees for the terminal.
type Renderer struct {
	profile termenv.Profile
}

// NewRenderer returns a renderer styled for w.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{profile: ProfileFor(w)}
}

// NewRendererWithProfile returns a renderer using a fixed profile.
func NewRendererWithProfile(p termenv.Profile) *Renderer {
	return &Renderer{profile: p}
}

func (r *Renderer) paint(s, color string) string {
	return r.profile.String(s).Foreground(r.profile.Color(color)).String()
}

// Context renders the text from the root down to nodeID, coloring each
// segment by its author.
func (r *Renderer) Context(tree *domain.Tree, nodeID string) string {
	path, _ := tree.Path(nodeID)

	var sb strings.Builder
	for _, n := range path {
		color := ColorAI
		if n.Type == domain.NodeTypeUser {
			color = ColorUser
		}
		sb.WriteString(r.paint(n.Text, color))
	}
	return sb.String()
}

// Outline renders the tree as an indented list, one node per line.
// The focused node is marked with "*".
func (r *Renderer) Outline(tree *domain.Tree) string {
	var sb strings.Builder
	focused := tree.FocusedNodeID()

	var walk func(n domain.Node, depth int)
	walk = func(n domain.Node, depth int) {
		marker := " "
		if n.ID == focused {
			marker = r.paint("*", ColorFocus)
		}

		var body string
		switch {
		case n.Loading:
			body = r.paint("...", ColorLoading)
		case n.Error != nil:
			body = r.paint("error: "+*n.Error, ColorError)
		case n.Type == domain.NodeTypeUser:
			body = r.paint(oneLine(n.Text), ColorUser)
		default:
			body = r.paint(oneLine(n.Text), ColorAI)
		}

		fmt.Fprintf(&sb, "%s%s %s  %s\n", strings.Repeat("  ", depth), marker, shortID(n.ID), body)
		for _, c := range tree.Children(n.ID) {
			walk(c, depth+1)
		}
	}
	for _, root := range tree.Roots() {
		walk(root, 0)
	}
	return sb.String()
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
