package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lyramakesmusic/wool/pkg/domain"
)

const ext = ".json"

// ErrInvalidName is returned for tree names that are empty, contain a path
// separator, or belong to another file in the directory.
var ErrInvalidName = errors.New("invalid tree name")

// Store implements ports.TreeStore using the local filesystem.
// Each tree is one indented JSON document named <name>.json.
type Store struct {
	BasePath string
	reserved map[string]bool
}

// Option configures the Store.
type Option func(*Store)

// WithReserved keeps names away from files that share the directory but are
// not trees, such as the settings file.
func WithReserved(names ...string) Option {
	return func(s *Store) {
		for _, name := range names {
			s.reserved[name] = true
		}
	}
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to the working directory.
func New(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = "."
	}
	s := &Store{BasePath: basePath, reserved: map[string]bool{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckName reports whether name can be stored as a tree.
func (s *Store) CheckName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.HasPrefix(name, "tmp-"):
		return fmt.Errorf("%w: %q uses the temp file prefix", ErrInvalidName, name)
	case s.reserved[name]:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.BasePath, name+ext)
}

// Save persists the tree to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, name string, tree *domain.Tree) error {
	if err := s.CheckName(name); err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure tree directory: %w", err)
	}

	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}

	// Same directory keeps the rename on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+name+"-*"+ext)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := s.path(name)
	// os.Rename does not replace an existing destination on Windows.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing tree file for overwrite: %w", err)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the tree from its JSON file. A corrupt file surfaces as a decode
// error, distinct from domain.ErrTreeNotFound.
func (s *Store) Load(ctx context.Context, name string) (*domain.Tree, error) {
	if err := s.CheckName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrTreeNotFound
		}
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}

	tree := domain.NewEmptyTree()
	if err := json.Unmarshal(data, tree); err != nil {
		return nil, fmt.Errorf("failed to decode tree file %s: %w", s.path(name), err)
	}
	return tree, nil
}

// Delete removes the tree file. Deleting an absent tree is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.CheckName(name); err != nil {
		return err
	}

	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete tree file: %w", err)
	}
	return nil
}

// List returns the names of all stored trees.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list trees: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext || strings.HasPrefix(name, "tmp-") {
			continue
		}
		name = strings.TrimSuffix(name, ext)
		if s.reserved[name] {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
