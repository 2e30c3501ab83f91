// Package jsonfile persists temporary workspace records in a single JSON
// document.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/hay-kot/enso/internal/core/workspace"
)

// FormatVersion is written to every file. Files without a version are read
// as version 1.
const FormatVersion = 1

// WorkspaceFile is the on disk document. Workspaces holds at most one
// record per path, oldest first.
type WorkspaceFile struct {
	Version    int              `json:"version"`
	Workspaces []workspace.Item `json:"workspaces"`
}

func (f *WorkspaceFile) index(path string) int {
	return slices.IndexFunc(f.Workspaces, func(it workspace.Item) bool { return it.Path == path })
}

// Store implements workspace.Store. Records are keyed by their cleaned
// path.
type Store struct {
	path string
	mu   sync.RWMutex
}

// New returns a Store backed by the file at path. The file is created on
// the first write.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

func (s *Store) List(ctx context.Context) ([]workspace.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.read()
	if err != nil {
		return nil, err
	}
	return file.Workspaces, nil
}

func (s *Store) Get(ctx context.Context, path string) (workspace.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.read()
	if err != nil {
		return workspace.Item{}, err
	}
	if i := file.index(key(path)); i >= 0 {
		return file.Workspaces[i], nil
	}
	return workspace.Item{}, workspace.ErrNotFound
}

// Save records item, replacing any record at the same path.
func (s *Store) Save(ctx context.Context, item workspace.Item) error {
	if item.Path == "" {
		return fmt.Errorf("save workspace: empty path")
	}
	item.Path = key(item.Path)

	return s.update(func(f *WorkspaceFile) error {
		if i := f.index(item.Path); i >= 0 {
			f.Workspaces[i] = item
			return nil
		}
		f.Workspaces = append(f.Workspaces, item)
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	path = key(path)
	return s.update(func(f *WorkspaceFile) error {
		i := f.index(path)
		if i < 0 {
			return workspace.ErrNotFound
		}
		f.Workspaces = slices.Delete(f.Workspaces, i, i+1)
		return nil
	})
}

// update runs fn against the current document and writes the result. The
// file is left untouched when fn fails.
func (s *Store) update(fn func(*WorkspaceFile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(&file); err != nil {
		return err
	}
	return s.write(file)
}

// read loads the document. A missing or empty file is an empty store.
// Records repeating a path are collapsed onto the last one.
func (s *Store) read() (WorkspaceFile, error) {
	file := WorkspaceFile{Version: FormatVersion}

	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		return file, nil
	case err != nil:
		return file, fmt.Errorf("read workspaces file: %w", err)
	case len(data) == 0:
		return file, nil
	}

	var raw WorkspaceFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return file, fmt.Errorf("parse workspaces file: %w", err)
	}
	if raw.Version > FormatVersion {
		return file, fmt.Errorf("workspaces file version %d is newer than supported version %d", raw.Version, FormatVersion)
	}

	for _, it := range raw.Workspaces {
		it.Path = key(it.Path)
		if i := file.index(it.Path); i >= 0 {
			file.Workspaces[i] = it
			continue
		}
		file.Workspaces = append(file.Workspaces, it)
	}
	oldestFirst(file.Workspaces)
	return file, nil
}

// write replaces the file atomically through a temp file in the same
// directory.
func (s *Store) write(file WorkspaceFile) error {
	file.Version = FormatVersion
	oldestFirst(file.Workspaces)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal workspaces: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func oldestFirst(items []workspace.Item) {
	slices.SortStableFunc(items, func(a, b workspace.Item) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func key(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}
