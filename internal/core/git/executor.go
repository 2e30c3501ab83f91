package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/hay-kot/enso/pkg/executil"
)

// Executor implements Git using the git command-line tool.
type Executor struct {
	gitPath string
	exec    executil.Executor
}

// NewExecutor creates a new git executor with the specified git binary path.
func NewExecutor(gitPath string, exec executil.Executor) *Executor {
	if gitPath == "" {
		gitPath = "git"
	}
	return &Executor{gitPath: gitPath, exec: exec}
}

var versionRe = regexp.MustCompile(`git version (\d+(?:\.\d+)+)`)

func (e *Executor) Version(ctx context.Context) (string, error) {
	out, err := e.exec.Run(ctx, e.gitPath, "--version")
	if err != nil {
		return "", fmt.Errorf("git version: %w", err)
	}
	m := versionRe.FindStringSubmatch(string(out))
	if m == nil {
		return "", fmt.Errorf("git version: unexpected output %q", strings.TrimSpace(string(out)))
	}
	return m[1], nil
}

func (e *Executor) Init(ctx context.Context, dir string) error {
	if _, err := e.exec.RunDir(ctx, dir, e.gitPath, "init"); err != nil {
		return fmt.Errorf("init %s: %w", dir, err)
	}
	return nil
}

func (e *Executor) Clone(ctx context.Context, url, dest string) error {
	if _, err := e.exec.Run(ctx, e.gitPath, "clone", url, dest); err != nil {
		return fmt.Errorf("clone %s to %s: %w", url, dest, err)
	}
	return nil
}

func (e *Executor) Checkout(ctx context.Context, dir, branch string) error {
	if _, err := e.exec.RunDir(ctx, dir, e.gitPath, "checkout", branch); err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	return nil
}

func (e *Executor) Fetch(ctx context.Context, dir, remote string) error {
	if remote == "" {
		remote = "origin"
	}
	if _, err := e.exec.RunDir(ctx, dir, e.gitPath, "fetch", remote); err != nil {
		return fmt.Errorf("fetch %s: %w", remote, err)
	}
	return nil
}

func (e *Executor) Pull(ctx context.Context, dir string) error {
	if _, err := e.exec.RunDir(ctx, dir, e.gitPath, "pull"); err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	return nil
}

func (e *Executor) RemoteURL(ctx context.Context, dir string) (string, error) {
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "remote", "get-url", "origin")
	if err != nil {
		return "", fmt.Errorf("get remote url: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (e *Executor) Status(ctx context.Context, dir string) ([]FileStatus, error) {
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}
	return parseStatus(string(out)), nil
}

func (e *Executor) IsClean(ctx context.Context, dir string) (bool, error) {
	files, err := e.Status(ctx, dir)
	if err != nil {
		return false, err
	}
	return len(files) == 0, nil
}

func (e *Executor) Branch(ctx context.Context, dir string) (string, error) {
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "branch", "--show-current")
	if err != nil {
		return "", fmt.Errorf("git branch: %w", err)
	}

	if branch := strings.TrimSpace(string(out)); branch != "" {
		return branch, nil
	}

	// detached HEAD
	out, err = e.exec.RunDir(ctx, dir, e.gitPath, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}

	return strings.TrimSpace(string(out)), nil
}

func (e *Executor) DefaultBranch(ctx context.Context, dir string) (string, error) {
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "symbolic-ref", "refs/remotes/origin/HEAD", "--short")
	if err != nil {
		return "", fmt.Errorf("git symbolic-ref: %w", err)
	}
	return strings.TrimPrefix(strings.TrimSpace(string(out)), "origin/"), nil
}

func (e *Executor) DiffStats(ctx context.Context, dir string) (additions, deletions int, err error) {
	base := "HEAD"
	if def, err := e.DefaultBranch(ctx, dir); err == nil && def != "" {
		base = def + "...HEAD"
	}

	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "diff", "--shortstat", base)
	if err != nil {
		return 0, 0, fmt.Errorf("git diff: %w", err)
	}

	additions, deletions = parseDiffStats(string(out))
	return additions, deletions, nil
}

func (e *Executor) IsValidRepo(ctx context.Context, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		return fmt.Errorf(".git missing in %s", dir)
	}

	if _, err := e.exec.RunDir(ctx, dir, e.gitPath, "rev-parse", "--git-dir"); err != nil {
		return fmt.Errorf("git rev-parse: %w", err)
	}

	return nil
}

var (
	insertionsRe = regexp.MustCompile(`(\d+) insertions?\(\+\)`)
	deletionsRe  = regexp.MustCompile(`(\d+) deletions?\(-\)`)
)

// parseDiffStats parses git diff --shortstat output.
// Example: " 3 files changed, 10 insertions(+), 5 deletions(-)"
func parseDiffStats(output string) (additions, deletions int) {
	if m := insertionsRe.FindStringSubmatch(output); m != nil {
		additions, _ = strconv.Atoi(m[1])
	}
	if m := deletionsRe.FindStringSubmatch(output); m != nil {
		deletions, _ = strconv.Atoi(m[1])
	}
	return additions, deletions
}

// parseStatus parses `git status --porcelain` (v1) output.
func parseStatus(output string) []FileStatus {
	var files []FileStatus
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}

		fs := FileStatus{Index: line[0], Worktree: line[1], Path: unquote(line[3:])}
		if from, to, ok := strings.Cut(line[3:], " -> "); ok {
			fs.OrigPath, fs.Path = unquote(from), unquote(to)
		}
		files = append(files, fs)
	}
	return files
}

// unquote undoes git's C-style quoting of paths with special characters.
func unquote(p string) string {
	if len(p) < 2 || p[0] != '"' {
		return p
	}
	if s, err := strconv.Unquote(p); err == nil {
		return s
	}
	return p
}
