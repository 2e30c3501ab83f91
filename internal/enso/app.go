// Package enso wires the orchestration components into one App.
package enso

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hay-kot/enso/internal/core/config"
	"github.com/hay-kot/enso/internal/core/git"
	"github.com/hay-kot/enso/internal/core/shell"
	"github.com/hay-kot/enso/internal/detect"
	"github.com/hay-kot/enso/internal/store/jsonfile"
	"github.com/hay-kot/enso/internal/terminal"
	"github.com/hay-kot/enso/internal/workspace"
	"github.com/hay-kot/enso/pkg/executil"
	"github.com/rs/zerolog"
)

// Options carry process level settings that do not belong in the config
// file.
type Options struct {
	// Packaged marks a release build.
	Packaged bool
	// Debug mirrors detection diagnostics to subscribers.
	Debug bool
	// Stdout and Stderr receive workspace setup output. Nil discards it.
	Stdout, Stderr io.Writer
}

// App owns every long lived component. Close releases them.
type App struct {
	Config      *config.Config
	Resolver    *shell.Resolver
	Runner      *executil.ProcessRunner
	Diagnostics *detect.DiagnosticLog
	Detector    *detect.Detector
	Wrappers    *detect.WrapperDetector
	Terminals   *terminal.Manager
	Git         *git.Registry
	Workspaces  *workspace.Service

	log zerolog.Logger
}

// New builds an App from cfg.
func New(cfg *config.Config, log zerolog.Logger, opts Options) *App {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	var (
		resolver = shell.NewResolver()
		runner   = executil.NewProcessRunner(log)
		diag     = detect.NewDiagnosticLog(cfg.DetectLogFile(), opts.Debug, log)
		cmdShell = resolver.Resolve(cfg.Shell)
		exec     = &executil.RealExecutor{Env: cmdShell.Environ()}
		registry = git.NewRegistry(log, git.NewExecutor(cfg.GitPath, exec))
	)

	detector := detect.New(log, resolver, runner, diag, detect.Config{
		Shell:            cfg.Shell,
		CommandOverrides: cfg.Agents.Paths,
		Timeout:          cfg.Detect.Timeout,
		ProbeTimeout:     cfg.Detect.ProbeTimeout,
		Concurrency:      cfg.Detect.Concurrency,
		Packaged:         opts.Packaged,
	})

	terminals := terminal.NewManager(log, resolver, terminal.Config{
		GracePeriod: cfg.Terminal.GracePeriod,
		Cols:        cfg.Terminal.Cols,
		Rows:        cfg.Terminal.Rows,
	})

	setup := workspace.NewSetupRunner(log, exec, cmdShell, opts.Stdout, opts.Stderr)
	workspaces := workspace.NewService(log, jsonfile.New(cfg.WorkspacesFile()), registry, terminals, setup, cfg.Workspace)

	return &App{
		Config:      cfg,
		Resolver:    resolver,
		Runner:      runner,
		Diagnostics: diag,
		Detector:    detector,
		Wrappers:    detect.NewWrapperDetector(log, resolver, runner, cfg.Shell),
		Terminals:   terminals,
		Git:         registry,
		Workspaces:  workspaces,
		log:         log.With().Str("component", "app").Logger(),
	}
}

// CheckGit logs a warning when git cannot be run. It returns the version.
func (a *App) CheckGit(ctx context.Context) (string, error) {
	v, err := a.Git.Git().Version(ctx)
	if err != nil {
		a.log.Warn().Err(err).Str("git_path", a.Config.GitPath).Msg("git is not available")
		return "", err
	}
	a.log.Debug().Str("version", v).Msg("git found")
	return v, nil
}

// Close destroys every terminal, waits for their teardown, forgets all git
// authorizations and closes the diagnostic log.
func (a *App) Close(ctx context.Context) error {
	if n := a.Terminals.DestroyAll(); n > 0 {
		a.log.Debug().Int("terminals", n).Msg("destroying terminals")
	}

	var errs []error
	if err := a.Terminals.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wait for terminals: %w", err))
	}

	a.Git.ClearAll()

	if err := a.Diagnostics.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close diagnostics: %w", err))
	}
	return errors.Join(errs...)
}

