// Package storage persists uploaded files and their thumbnails. The upload
// root is a flat namespace of file names; Disk keeps it in a local directory
// and Minio keeps it under a bucket prefix.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a name does not resolve to a stored file.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidName is returned for names that are empty or would escape
	// the upload root.
	ErrInvalidName = errors.New("invalid file name")
)

// Object describes one stored file found while walking the upload root.
type Object struct {
	// Name is the base name of the file.
	Name string
	// Path is the slash-separated path relative to the upload root.
	Path    string
	Size    int64
	ModTime time.Time
}

// Store is the persistence contract shared by the backends.
type Store interface {
	// Save writes r under name, replacing any existing file, and returns
	// the number of bytes written.
	Save(ctx context.Context, name string, r io.Reader, contentType string) (int64, error)
	// Open returns the content stored under name or ErrNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Walk calls fn for every regular file at most maxDepth levels below
	// the root. Returning an error from fn stops the walk.
	Walk(ctx context.Context, maxDepth int, fn func(Object) error) error
	// Check reports whether the backend is usable.
	Check(ctx context.Context) error
	// Location describes the upload root for logs and health output.
	Location() string
}

// ValidateName rejects names that cannot live directly in the upload root.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ReadFile returns the whole content stored under name.
func ReadFile(ctx context.Context, s Store, name string) ([]byte, error) {
	rc, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}
