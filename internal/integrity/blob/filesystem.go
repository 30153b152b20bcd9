package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FSStore writes blobs under a root directory. Writes go through a temp file
// and rename so readers never see partial content.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) resolve(path string) (string, error) {
	path, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(path)), nil
}

func (s *FSStore) Write(_ context.Context, path string, data []byte) (err error) {
	defer func() { observe("fs", "write", err) }()
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".blob-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("commit blob: %w", err)
	}
	return nil
}

func (s *FSStore) Read(_ context.Context, path string) (data []byte, err error) {
	defer func() { observe("fs", "read", err) }()
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err = os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FSStore) Delete(_ context.Context, path string) (err error) {
	defer func() { observe("fs", "delete", err) }()
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
