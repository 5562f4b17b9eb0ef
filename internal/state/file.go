package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File keeps each key in its own text file under a directory.
type File struct {
	ints
	dir string
}

type fileBackend struct {
	dir string
}

// NewFile creates the directory if needed and returns a file-backed store.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &File{ints: ints{backend: fileBackend{dir: dir}}, dir: dir}, nil
}

// Dir returns the backing directory.
func (f *File) Dir() string { return f.dir }

func (b fileBackend) path(key string) string {
	return filepath.Join(b.dir, key+".txt")
}

func (b fileBackend) get(_ context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read state %s: %w", key, err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// put replaces the key file through a temp file and rename.
func (b fileBackend) put(_ context.Context, key, value string) error {
	tmp, err := os.CreateTemp(b.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state %s: %w", key, err)
	}
	name := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write state %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close state %s: %w", key, err)
	}
	if err := os.Rename(name, b.path(key)); err != nil {
		os.Remove(name)
		return fmt.Errorf("replace state %s: %w", key, err)
	}
	return nil
}

var _ Store = (*File)(nil)
