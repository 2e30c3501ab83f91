package git

import "context"

// Workdir binds git operations to one validated directory.
type Workdir struct {
	path string
	git  Git
}

func (w *Workdir) Path() string { return w.path }

func (w *Workdir) Status(ctx context.Context) ([]FileStatus, error) { return w.git.Status(ctx, w.path) }

func (w *Workdir) IsClean(ctx context.Context) (bool, error) { return w.git.IsClean(ctx, w.path) }

func (w *Workdir) Branch(ctx context.Context) (string, error) { return w.git.Branch(ctx, w.path) }

func (w *Workdir) DefaultBranch(ctx context.Context) (string, error) {
	return w.git.DefaultBranch(ctx, w.path)
}

func (w *Workdir) DiffStats(ctx context.Context) (additions, deletions int, err error) {
	return w.git.DiffStats(ctx, w.path)
}

func (w *Workdir) RemoteURL(ctx context.Context) (string, error) { return w.git.RemoteURL(ctx, w.path) }

func (w *Workdir) Fetch(ctx context.Context, remote string) error {
	return w.git.Fetch(ctx, w.path, remote)
}

func (w *Workdir) Pull(ctx context.Context) error { return w.git.Pull(ctx, w.path) }

func (w *Workdir) Checkout(ctx context.Context, branch string) error {
	return w.git.Checkout(ctx, w.path, branch)
}

func (w *Workdir) Validate(ctx context.Context) error { return w.git.IsValidRepo(ctx, w.path) }
