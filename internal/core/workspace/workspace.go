// Package workspace defines temporary workspace domain types and interfaces.
package workspace

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no workspace matches.
var ErrNotFound = errors.New("workspace not found")

// Item is a scratch git repository created under the temporary base
// directory.
type Item struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	FolderName string    `json:"folder_name"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store defines persistence operations for workspaces.
type Store interface {
	// List returns all workspaces, oldest first.
	List(ctx context.Context) ([]Item, error)
	// Get returns the workspace at path. Returns ErrNotFound if not found.
	Get(ctx context.Context, path string) (Item, error)
	// Save creates or updates the workspace at item.Path.
	Save(ctx context.Context, item Item) error
	// Delete removes the workspace at path. Returns ErrNotFound if not found.
	Delete(ctx context.Context, path string) error
}
