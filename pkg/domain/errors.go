package domain

import "errors"

// ErrTreeNotFound is returned when no tree is stored under a given name.
var ErrTreeNotFound = errors.New("tree not found")

// ErrNodeNotFound is returned when an operation needs a node that is not in the tree.
var ErrNodeNotFound = errors.New("node not found")

// ErrMalformedTree is returned when parent links form a cycle.
var ErrMalformedTree = errors.New("malformed tree: parent links form a cycle")

// ErrNoCredential is returned when no API credential could be resolved.
var ErrNoCredential = errors.New("no API credential found")

// ErrTooManySiblings is returned when a generation asks for more siblings than
// the configured limit allows.
var ErrTooManySiblings = errors.New("too many siblings")
