package graph

import (
	"fmt"
	"strings"

	"github.com/lyramakesmusic/wool/pkg/domain"
)

// MaxLabel is the number of runes of node text shown in a label.
const MaxLabel = 32

// GenerateMermaid produces a Mermaid flowchart of the tree.
// Shapes follow node state:
// - Root: ((Circle))
// - User text: [/Parallelogram/]
// - Loading placeholder: {{Hexagon}}
// - Default: [Rectangle]
// The focused path is styled as visited and the focused node as current.
// Failed siblings get the failed class.
func GenerateMermaid(tree *domain.Tree) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var failed []string
	var walk func(n domain.Node)
	walk = func(n domain.Node) {
		safeID := sanitizeMermaidID(n.ID)

		opener, closer := "[", "]"
		switch {
		case n.IsRoot():
			opener, closer = "((", "))"
		case n.Loading:
			opener, closer = "{{", "}}"
		case n.Type == domain.NodeTypeUser:
			opener, closer = "[/", "/]"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label(n), closer))
		if n.Error != nil {
			failed = append(failed, safeID)
		}

		for _, c := range tree.Children(n.ID) {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", safeID, sanitizeMermaidID(c.ID)))
			walk(c)
		}
	}
	for _, root := range tree.Roots() {
		walk(root)
	}

	focused := tree.FocusedNodeID()
	if focused == "" {
		return sb.String()
	}

	sb.WriteString("\n    %% Overlay Styles\n")
	// Force black text (color:#000) for high-contrast on light backgrounds
	sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
	sb.WriteString("    classDef failed fill:#ffebee,stroke:#c62828,stroke-dasharray:4,color:#000;\n")

	path, _ := tree.Path(focused)
	for _, n := range path {
		if n.ID == focused {
			continue
		}
		sb.WriteString(fmt.Sprintf("    class %s visited;\n", sanitizeMermaidID(n.ID)))
	}
	if _, ok := tree.Node(focused); ok {
		sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(focused)))
	}
	for _, id := range failed {
		sb.WriteString(fmt.Sprintf("    class %s failed;\n", id))
	}

	return sb.String()
}

func label(n domain.Node) string {
	if n.Loading {
		return "..."
	}
	if n.Error != nil {
		return "error: " + truncate(*n.Error)
	}
	return truncate(n.Text)
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "\"", "'")
	r := []rune(s)
	if len(r) > MaxLabel {
		return string(r[:MaxLabel]) + "…"
	}
	if s == "" {
		return " "
	}
	return s
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return "n_" + s
}
