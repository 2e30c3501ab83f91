// Package git runs git commands against working directories that the
// Registry has validated.
package git

import (
	"context"
	"strings"
)

// Git defines the git operations enso performs. Every directory argument
// is expected to have passed through a Registry first.
type Git interface {
	// Version returns the installed git version, e.g. "2.43.0".
	Version(ctx context.Context) (string, error)
	// Init creates an empty repository in dir.
	Init(ctx context.Context, dir string) error
	// Clone clones a repository from url to dest.
	Clone(ctx context.Context, url, dest string) error
	// Checkout switches to the specified branch in dir.
	Checkout(ctx context.Context, dir, branch string) error
	// Fetch downloads objects and refs from remote ("origin" when empty).
	Fetch(ctx context.Context, dir, remote string) error
	// Pull fetches and merges changes in dir.
	Pull(ctx context.Context, dir string) error
	// RemoteURL returns the origin remote URL for dir.
	RemoteURL(ctx context.Context, dir string) (string, error)
	// Status returns the changed paths in dir.
	Status(ctx context.Context, dir string) ([]FileStatus, error)
	// IsClean returns true if there are no uncommitted changes in dir.
	IsClean(ctx context.Context, dir string) (bool, error)
	// Branch returns the current branch name, or short commit SHA if in detached HEAD state.
	Branch(ctx context.Context, dir string) (string, error)
	// DefaultBranch returns the default branch name (e.g., "main" or "master") for the repository.
	DefaultBranch(ctx context.Context, dir string) (string, error)
	// DiffStats returns the number of lines added and deleted compared to the default branch.
	DiffStats(ctx context.Context, dir string) (additions, deletions int, err error)
	// IsValidRepo checks if dir contains a valid git repository.
	IsValidRepo(ctx context.Context, dir string) error
}

// FileStatus is one entry of `git status --porcelain`.
type FileStatus struct {
	Path string `json:"path"`
	// OrigPath is set for renames and copies.
	OrigPath string `json:"orig_path,omitempty"`
	Index    byte   `json:"index"`
	Worktree byte   `json:"worktree"`
}

// Untracked reports whether git does not track the file yet.
func (f FileStatus) Untracked() bool { return f.Index == '?' && f.Worktree == '?' }

// Staged reports whether the file has changes in the index.
func (f FileStatus) Staged() bool { return f.Index != ' ' && f.Index != '?' }

// ExtractRepoName extracts the repository name from a git remote URL.
// Handles both SSH (git@github.com:user/repo.git) and HTTPS (https://github.com/user/repo.git) formats.
func ExtractRepoName(remote string) string {
	remote = strings.TrimSuffix(remote, ".git")

	if idx := strings.LastIndex(remote, "/"); idx != -1 {
		return remote[idx+1:]
	}

	if idx := strings.LastIndex(remote, ":"); idx != -1 {
		return remote[idx+1:]
	}

	return remote
}
