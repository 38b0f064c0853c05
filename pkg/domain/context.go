package domain

import "strings"

// Path returns the nodes from the root down to nodeID, inclusive.
// The walk stops at a node without a parent or whose parent is missing.
// An unknown nodeID yields an empty path. A cycle in the parent links yields
// the nodes visited before the repeat together with ErrMalformedTree.
func (t *Tree) Path(nodeID string) ([]Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		path    []Node
		visited = make(map[string]struct{})
		err     error
	)

	current, ok := t.nodes[nodeID]
	for ok {
		if _, seen := visited[current.ID]; seen {
			err = ErrMalformedTree
			break
		}
		visited[current.ID] = struct{}{}
		path = append(path, current.clone())

		if current.ParentID == nil {
			break
		}
		current, ok = t.nodes[*current.ParentID]
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, err
}

// BuildContext concatenates the text of every node from the root down to
// nodeID with no separator. It returns "" for an unknown node and never loops
// on malformed parent links.
func (t *Tree) BuildContext(nodeID string) string {
	path, _ := t.Path(nodeID)
	return JoinText(path)
}

// JoinText concatenates node deltas in order.
func JoinText(path []Node) string {
	var sb strings.Builder
	for _, n := range path {
		sb.WriteString(n.Text)
	}
	return sb.String()
}
