package storage

import (
	"fmt"
	"path/filepath"
)

// Resolver maps logical file names to absolute paths under the upload root.
type Resolver struct {
	root string
}

// NewResolver returns a resolver for root, made absolute.
func NewResolver(root string) (*Resolver, error) {
	if root == "" {
		return nil, fmt.Errorf("upload root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root %q: %w", root, err)
	}
	return &Resolver{root: abs}, nil
}

func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns <root>/<name>. The name must be a single path element.
func (r *Resolver) Resolve(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(r.root, name), nil
}
