package ports

import (
	"context"

	"github.com/lyramakesmusic/wool/pkg/domain"
)

// TreeStore defines the interface for persisting trees.
// A tree is always written wholesale; there are no partial writes.
type TreeStore interface {
	// Save overwrites the tree stored under name.
	Save(ctx context.Context, name string, tree *domain.Tree) error

	// Load retrieves the tree stored under name.
	// Returns domain.ErrTreeNotFound if nothing is stored.
	Load(ctx context.Context, name string) (*domain.Tree, error)

	// Delete removes the tree stored under name.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored trees.
	List(ctx context.Context) ([]string, error)
}
