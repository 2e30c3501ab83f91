package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ErrUnauthorizedWorkdir is matched by every *UnauthorizedError.
var ErrUnauthorizedWorkdir = errors.New("unauthorized workdir")

// UnauthorizedError reports a path that is neither authorized nor a git
// working directory.
type UnauthorizedError struct {
	Path   string
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("invalid workdir %s: %s", e.Path, e.Reason)
}

func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorizedWorkdir }

// Registry decides which directories git commands may run in and caches
// one Workdir per canonical path. It is safe for concurrent use.
//
// A path qualifies when it was authorized explicitly (RegisterAuthorized,
// Init, Clone) or when it is, at the time of the call, an existing
// directory containing a .git entry. The second check is repeated on
// every call for paths that were never authorized.
type Registry struct {
	log zerolog.Logger
	git Git

	mu         sync.Mutex
	authorized map[string]struct{}
	contexts   map[string]*Workdir
}

// NewRegistry returns an empty Registry running commands through g.
func NewRegistry(log zerolog.Logger, g Git) *Registry {
	return &Registry{
		log:        log.With().Str("component", "git").Logger(),
		git:        g,
		authorized: make(map[string]struct{}),
		contexts:   make(map[string]*Workdir),
	}
}

// Git returns the underlying command implementation.
func (r *Registry) Git() Git { return r.git }

// RegisterAuthorized trusts path without further verification.
func (r *Registry) RegisterAuthorized(path string) error {
	key, err := canonical(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.authorized[key] = struct{}{}
	r.mu.Unlock()

	r.log.Debug().Str("path", key).Msg("workdir authorized")
	return nil
}

// UnregisterAuthorized revokes trust in path and drops its cached Workdir.
func (r *Registry) UnregisterAuthorized(path string) {
	key, err := canonical(path)
	if err != nil {
		return
	}

	r.mu.Lock()
	delete(r.authorized, key)
	delete(r.contexts, key)
	r.mu.Unlock()

	r.log.Debug().Str("path", key).Msg("workdir unauthorized")
}

// IsAuthorized reports whether path was explicitly authorized.
func (r *Registry) IsAuthorized(path string) bool {
	key, err := canonical(path)
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.authorized[key]
	return ok
}

// Authorized returns the authorized paths, sorted.
func (r *Registry) Authorized() []string {
	r.mu.Lock()
	paths := make([]string, 0, len(r.authorized))
	for p := range r.authorized {
		paths = append(paths, p)
	}
	r.mu.Unlock()

	sort.Strings(paths)
	return paths
}

// GetOrCreateContext returns the cached Workdir for path, creating it if
// the path qualifies. It fails with an *UnauthorizedError otherwise.
func (r *Registry) GetOrCreateContext(path string) (*Workdir, error) {
	key, err := canonical(path)
	if err != nil {
		return nil, &UnauthorizedError{Path: path, Reason: err.Error()}
	}

	r.mu.Lock()
	_, trusted := r.authorized[key]
	r.mu.Unlock()

	if !trusted {
		if err := verify(key); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if wd, ok := r.contexts[key]; ok {
		return wd, nil
	}
	wd := &Workdir{path: key, git: r.git}
	r.contexts[key] = wd
	return wd, nil
}

// Init runs `git init` in the existing directory path, then authorizes and
// caches it. No .git entry is required beforehand.
func (r *Registry) Init(ctx context.Context, path string) (*Workdir, error) {
	key, err := canonical(path)
	if err != nil {
		return nil, err
	}
	if err := isDir(key); err != nil {
		return nil, &UnauthorizedError{Path: key, Reason: err.Error()}
	}

	if err := r.git.Init(ctx, key); err != nil {
		return nil, err
	}

	return r.adopt(key), nil
}

// Clone clones url into dest, then authorizes and caches dest.
func (r *Registry) Clone(ctx context.Context, url, dest string) (*Workdir, error) {
	key, err := canonical(dest)
	if err != nil {
		return nil, err
	}

	if err := r.git.Clone(ctx, url, key); err != nil {
		return nil, err
	}

	return r.adopt(key), nil
}

// ClearAll drops every cached Workdir and every authorization.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authorized = make(map[string]struct{})
	r.contexts = make(map[string]*Workdir)
}

func (r *Registry) adopt(key string) *Workdir {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.authorized[key] = struct{}{}
	wd, ok := r.contexts[key]
	if !ok {
		wd = &Workdir{path: key, git: r.git}
		r.contexts[key] = wd
	}

	r.log.Debug().Str("path", key).Msg("workdir adopted")
	return wd
}

func verify(key string) error {
	if err := isDir(key); err != nil {
		return &UnauthorizedError{Path: key, Reason: err.Error()}
	}
	if _, err := os.Stat(filepath.Join(key, ".git")); err != nil {
		return &UnauthorizedError{Path: key, Reason: "not a git repository"}
	}
	return nil
}

func isDir(p string) error {
	fi, err := os.Stat(p)
	if err != nil {
		return errors.New("path does not exist or is not a directory")
	}
	if !fi.IsDir() {
		return errors.New("path does not exist or is not a directory")
	}
	return nil
}

func canonical(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.New("empty path")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return filepath.Clean(abs), nil
}
