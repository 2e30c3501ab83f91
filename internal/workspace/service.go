// Package workspace manages temporary workspaces: throwaway git
// repositories created under a base directory and removed together with
// every terminal running inside them.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hay-kot/enso/internal/core/config"
	"github.com/hay-kot/enso/internal/core/git"
	core "github.com/hay-kot/enso/internal/core/workspace"
	"github.com/rs/zerolog"
)

const (
	timestampLayout = "20060102-150405"
	// collisionAttempts is how many numbered names (-2 and up) are tried
	// before falling back to a random suffix.
	collisionAttempts = 50
)

// DefaultBaseDir returns ~/ensoai/temporary.
func DefaultBaseDir(home string) string {
	return filepath.Join(home, "ensoai", "temporary")
}

// Terminals is the part of the terminal manager the Service needs.
type Terminals interface {
	DestroyByWorkdir(dir string) int
}

// Service creates and removes temporary workspaces.
type Service struct {
	log       zerolog.Logger
	store     core.Store
	git       *git.Registry
	terminals Terminals
	setup     *SetupRunner
	cfg       config.Workspace

	home  func() (string, error)
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates a Service. setup may be nil when no setup commands
// should run.
func NewService(log zerolog.Logger, store core.Store, registry *git.Registry, terminals Terminals, setup *SetupRunner, cfg config.Workspace) *Service {
	return &Service{
		log:       log.With().Str("component", "workspace").Logger(),
		store:     store,
		git:       registry,
		terminals: terminals,
		setup:     setup,
		cfg:       cfg,
		home:      os.UserHomeDir,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// ResolveBase expands raw into an absolute base directory. An empty raw
// value selects the configured base_dir, then DefaultBaseDir.
func (s *Service) ResolveBase(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = s.cfg.BaseDir
	}
	if raw == "" {
		home, err := s.home()
		if err != nil {
			return "", fmt.Errorf("resolve home: %w", err)
		}
		return DefaultBaseDir(home), nil
	}

	expanded, err := s.expandHome(raw)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", raw, err)
	}
	return abs, nil
}

// Check reports whether raw resolves to a directory enso can create and
// write to. The directory is created if missing.
func (s *Service) Check(raw string) error {
	base, err := s.ResolveBase(raw)
	if err != nil {
		return codeError(err, CodeAccess)
	}
	return checkWritable(base)
}

// Create makes a new workspace under base (see ResolveBase), initialises
// a git repository in it and runs the setup commands.
func (s *Service) Create(ctx context.Context, base string) (core.Item, error) {
	return s.CreateFrom(ctx, base, "")
}

// CreateFrom is Create, but first copies the files matching the configured
// copy patterns from source into the new workspace. An empty source skips
// the copy.
func (s *Service) CreateFrom(ctx context.Context, base, source string) (core.Item, error) {
	root, err := s.ResolveBase(base)
	if err != nil {
		return core.Item{}, codeError(err, CodeAccess)
	}
	if err := checkWritable(root); err != nil {
		return core.Item{}, err
	}

	now := s.now()
	name, path, err := mkdirUnique(root, now.Format(timestampLayout))
	if err != nil {
		return core.Item{}, codeError(err, CodeGitInitFailed)
	}

	log := s.log.With().Str("path", path).Logger()

	if _, err := s.git.Init(ctx, path); err != nil {
		s.discard(path)
		return core.Item{}, codeError(err, CodeGitInitFailed)
	}

	data := config.SetupTemplateData{Path: path, Name: name}

	if s.setup != nil && source != "" && len(s.cfg.Copy) > 0 {
		if err := s.setup.Seed(ctx, s.cfg.Copy, source, data); err != nil {
			s.discard(path)
			return core.Item{}, &Error{Code: CodeSetupFailed, Message: err.Error(), Err: err}
		}
	}

	if s.setup != nil && len(s.cfg.Setup) > 0 {
		if err := s.setup.Run(ctx, s.cfg.Setup, data); err != nil {
			s.discard(path)
			return core.Item{}, &Error{Code: CodeSetupFailed, Message: err.Error(), Err: err}
		}
	}

	item := core.Item{
		ID:         uuid.NewString(),
		Path:       path,
		FolderName: name,
		Title:      name,
		CreatedAt:  now,
	}
	if err := s.store.Save(ctx, item); err != nil {
		// the workspace itself is usable
		log.Warn().Err(err).Msg("failed to record workspace")
	}

	log.Info().Str("name", name).Msg("workspace created")
	return item, nil
}

// Remove destroys every terminal inside path, revokes its git
// authorization and deletes it from disk. Only recorded workspaces and
// directories below the default base directory are removed; a path that
// is neither but no longer exists is a no-op.
func (s *Service) Remove(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return &Error{Code: CodeRemoveFailed, Message: "empty path"}
	}
	target, err := s.ResolveBase(path)
	if err != nil {
		return codeError(err, CodeRemoveFailed)
	}
	if err := s.guard(target); err != nil {
		return err
	}

	owned, err := s.owns(ctx, target)
	if err != nil {
		return codeError(err, CodeRemoveFailed)
	}
	if !owned {
		if _, err := os.Lstat(target); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &Error{Code: CodeRemoveFailed, Message: fmt.Sprintf("%s is not a temporary workspace", target)}
	}

	log := s.log.With().Str("path", target).Logger()

	n := s.terminals.DestroyByWorkdir(target)
	s.git.UnregisterAuthorized(target)
	log.Debug().Int("terminals", n).Msg("released workspace")

	// give killed processes time to let go of their files
	if err := s.sleep(ctx, s.cfg.RemoveDelay); err != nil {
		return codeError(err, CodeRemoveFailed)
	}

	if err := os.RemoveAll(target); err != nil {
		return codeError(err, CodeRemoveFailed)
	}

	if err := s.store.Delete(ctx, target); err != nil && !errors.Is(err, core.ErrNotFound) {
		log.Warn().Err(err).Msg("failed to forget workspace")
	}

	log.Info().Msg("workspace removed")
	return nil
}

// List returns the recorded workspaces, oldest first.
func (s *Service) List(ctx context.Context) ([]core.Item, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return items, nil
}

// guard refuses to delete the filesystem root or the home directory.
func (s *Service) guard(target string) error {
	if filepath.Dir(target) == target {
		return &Error{Code: CodeRemoveFailed, Message: fmt.Sprintf("refusing to remove %s", target)}
	}
	if home, err := s.home(); err == nil && filepath.Clean(home) == target {
		return &Error{Code: CodeRemoveFailed, Message: fmt.Sprintf("refusing to remove %s", target)}
	}
	return nil
}

// owns reports whether target is a recorded workspace or a directory below
// the default base directory.
func (s *Service) owns(ctx context.Context, target string) (bool, error) {
	_, err := s.store.Get(ctx, target)
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, core.ErrNotFound):
		return false, fmt.Errorf("look up workspace: %w", err)
	}

	base, err := s.ResolveBase("")
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false, nil
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel), nil
}

func (s *Service) discard(path string) {
	s.git.UnregisterAuthorized(path)
	if err := os.RemoveAll(path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("failed to clean up workspace")
	}
}

func (s *Service) expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p, nil
	}
	home, err := s.home()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	if p == "~" {
		return home, nil
	}
	return filepath.Join(home, p[2:]), nil
}

// checkWritable creates dir if needed and round-trips a probe file.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return codeError(err, CodeAccess)
	}

	probe := filepath.Join(dir, ".ensoai-permission-"+strconv.FormatInt(time.Now().UnixNano(), 10)+".tmp")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return codeError(err, CodeAccess)
	}
	if _, err := os.ReadFile(probe); err != nil {
		_ = os.Remove(probe)
		return codeError(err, CodeAccess)
	}
	if err := os.Remove(probe); err != nil {
		return codeError(err, CodeAccess)
	}
	return nil
}

// mkdirUnique creates root/base, then root/base-2 ... root/base-51, then
// root/base-<random>.
func mkdirUnique(root, base string) (name, path string, err error) {
	name = base
	for i := 0; i <= collisionAttempts; i++ {
		if i > 0 {
			name = base + "-" + strconv.Itoa(i+1)
		}
		path = filepath.Join(root, name)

		err = os.Mkdir(path, 0o755)
		if err == nil {
			return name, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", err
		}
	}

	name = base + "-" + randomSuffix(4)
	path = filepath.Join(root, name)
	if err := os.Mkdir(path, 0o755); err != nil {
		return "", "", err
	}
	return name, path, nil
}

func randomSuffix(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
