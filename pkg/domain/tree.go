package domain

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Root placement and sibling spacing used when the core creates nodes itself.
const (
	RootX           = 400
	RootY           = 300
	SiblingOffsetX  = 380
	SiblingSpacingY = 30
	DefaultTreeName = "tree_state"
)

// Snapshot is the serializable form of a Tree.
type Snapshot struct {
	Nodes         map[string]Node `json:"nodes" yaml:"nodes"`
	FocusedNodeID *string         `json:"focused_node_id" yaml:"focused_node_id"`
}

// Tree is the branching text aggregate: the node mapping plus the focused node.
// All methods are safe for concurrent use; each write is atomic per node.
type Tree struct {
	mu      sync.RWMutex
	nodes   map[string]Node
	focused *string
}

// NewEmptyTree returns the default tree used when nothing is persisted.
func NewEmptyTree() *Tree {
	return &Tree{nodes: make(map[string]Node)}
}

// NewTree creates a tree holding a single ai-authored root with the seed text,
// focused on that root.
func NewTree(seed string) *Tree {
	id := uuid.NewString()
	t := NewEmptyTree()
	t.nodes[id] = Node{
		ID:       id,
		Type:     NodeTypeAI,
		Text:     seed,
		Position: Position{X: RootX, Y: RootY},
	}
	t.focused = ptr(id)
	return t
}

// FromSnapshot builds a tree from its serialized form. The snapshot is copied.
func FromSnapshot(s Snapshot) *Tree {
	t := NewEmptyTree()
	for id, n := range s.Nodes {
		t.nodes[id] = n.clone()
	}
	if s.FocusedNodeID != nil {
		t.focused = ptr(*s.FocusedNodeID)
	}
	return t
}

// Snapshot returns a deep copy of the tree's state.
func (t *Tree) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{Nodes: make(map[string]Node, len(t.nodes))}
	for id, n := range t.nodes {
		s.Nodes[id] = n.clone()
	}
	if t.focused != nil {
		s.FocusedNodeID = ptr(*t.focused)
	}
	return s
}

// Clone returns an independent copy of the tree.
func (t *Tree) Clone() *Tree {
	return FromSnapshot(t.Snapshot())
}

// MarshalJSON encodes the tree as {"nodes": {...}, "focused_node_id": ...}.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Snapshot())
}

// UnmarshalJSON replaces the tree's content with the decoded snapshot.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	fresh := FromSnapshot(s)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = fresh.nodes
	t.focused = fresh.focused
	return nil
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// FocusedNodeID returns the focused node id, or "" when unset.
func (t *Tree) FocusedNodeID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.focused == nil {
		return ""
	}
	return *t.focused
}

// SetFocus replaces the focused node. The id is not validated.
func (t *Tree) SetFocus(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focused = ptr(nodeID)
}

// Node returns a copy of the node with the given id.
func (t *Tree) Node(nodeID string) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[nodeID]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Put inserts or replaces a node. Used by callers that create placeholders.
func (t *Tree) Put(n Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[n.ID] = n.clone()
}

// Apply writes a generation outcome into its placeholder: text, loading=false,
// and error only when the outcome failed. It reports whether the node existed;
// an absent id is dropped silently.
func (t *Tree) Apply(nodeID string, o Outcome) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[nodeID]
	if !ok {
		return false
	}
	n.Text = o.Text
	n.Loading = false
	if o.Error != nil {
		n.Error = ptr(*o.Error)
	}
	t.nodes[nodeID] = n
	return true
}

// Children returns the direct children of a node, top to bottom by position,
// then by id.
func (t *Tree) Children(nodeID string) []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Node
	for _, n := range t.nodes {
		if n.ParentID != nil && *n.ParentID == nodeID {
			out = append(out, n.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position.Y != out[j].Position.Y {
			return out[i].Position.Y < out[j].Position.Y
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Roots returns every node without a parent, ordered by id.
func (t *Tree) Roots() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Node
	for _, n := range t.nodes {
		if n.ParentID == nil {
			out = append(out, n.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddUserNode appends a user-authored node under parentID and returns it.
func (t *Tree) AddUserNode(parentID, text string) (Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.nodes[parentID]
	if !ok {
		return Node{}, ErrNodeNotFound
	}
	n := Node{
		ID:       uuid.NewString(),
		ParentID: ptr(parentID),
		Type:     NodeTypeUser,
		Text:     text,
		Position: Position{
			X: parent.Position.X + SiblingOffsetX,
			Y: parent.Position.Y,
		},
	}
	t.nodes[n.ID] = n
	return n.clone(), nil
}

// AddPlaceholders creates count loading ai nodes under parentID, spread
// vertically around the parent, and returns their ids in creation order.
// meta is recorded on each placeholder as extra fields.
func (t *Tree) AddPlaceholders(parentID string, count int, meta map[string]any) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.nodes[parentID]
	if !ok {
		return nil, ErrNodeNotFound
	}
	if count <= 0 {
		return []string{}, nil
	}

	startY := parent.Position.Y - float64((count-1)*SiblingSpacingY)/2
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		n := Node{
			ID:       uuid.NewString(),
			ParentID: ptr(parentID),
			Type:     NodeTypeAI,
			Loading:  true,
			Position: Position{
				X: parent.Position.X + SiblingOffsetX,
				Y: startY + float64(i*SiblingSpacingY),
			},
		}
		if len(meta) > 0 {
			n.Extra = make(map[string]any, len(meta))
			for k, v := range meta {
				n.Extra[k] = v
			}
		}
		t.nodes[n.ID] = n
		ids = append(ids, n.ID)
	}
	return ids, nil
}
