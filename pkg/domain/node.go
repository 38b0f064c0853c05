package domain

import (
	"encoding/json"
	"fmt"
)

// NodeType tags who authored a node.
type NodeType string

const (
	// NodeTypeAI marks text produced by the generation backend (or the seed).
	NodeTypeAI NodeType = "ai"
	// NodeTypeUser marks text typed by the user.
	NodeTypeUser NodeType = "user"
)

// Position holds presentation coordinates owned by the UI.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is one turn of the branching text.
// Text is the delta this node contributes, not the accumulated context.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	ParentID *string  `json:"parent_id" yaml:"parent_id"`
	Type     NodeType `json:"type" yaml:"type"`
	Text     string   `json:"text" yaml:"text"`
	Position Position `json:"position" yaml:"position"`
	Loading  bool     `json:"loading" yaml:"loading"`
	Error    *string  `json:"error" yaml:"error"`

	// Extra carries fields the core does not interpret (e.g. UI layout flags,
	// sampling parameters recorded on placeholders). They survive a load/save cycle.
	Extra map[string]any `json:"-" yaml:"extra,omitempty"`
}

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool {
	return n.ParentID == nil
}

// Parent returns the parent id, or "" for a root.
func (n Node) Parent() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// clone returns a copy that shares no pointers or maps with n.
func (n Node) clone() Node {
	c := n
	if n.ParentID != nil {
		c.ParentID = ptr(*n.ParentID)
	}
	if n.Error != nil {
		c.Error = ptr(*n.Error)
	}
	if n.Extra != nil {
		c.Extra = make(map[string]any, len(n.Extra))
		for k, v := range n.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// nodeFields lists the JSON keys owned by Node itself.
var nodeFields = []string{"id", "parent_id", "type", "text", "position", "loading", "error"}

type nodeAlias Node

// MarshalJSON writes the known fields and merges Extra back in.
func (n Node) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(nodeAlias(n))
	if err != nil {
		return nil, err
	}
	if len(n.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]any, len(n.Extra)+len(nodeFields))
	for k, v := range n.Extra {
		merged[k] = v
	}
	var known map[string]any
	if err := json.Unmarshal(base, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the known fields and keeps everything else in Extra.
func (n *Node) UnmarshalJSON(data []byte) error {
	var a nodeAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("decode node: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode node extras: %w", err)
	}
	for _, k := range nodeFields {
		delete(raw, k)
	}

	*n = Node(a)
	if len(raw) > 0 {
		n.Extra = raw
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
