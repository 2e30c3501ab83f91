// Package detect finds out which agent CLIs are installed and which version
// they report.
package detect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hay-kot/enso/internal/core/agent"
	"github.com/hay-kot/enso/internal/core/shell"
	"github.com/hay-kot/enso/pkg/executil"
	"github.com/hay-kot/enso/pkg/proc"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// WindowsTimeout is the version probe timeout on Windows, where
	// PowerShell and WSL start slowly.
	WindowsTimeout = 60 * time.Second
	// DefaultTimeout is the version probe timeout everywhere else.
	DefaultTimeout = 15 * time.Second
	// DefaultProbeTimeout caps the presence probe.
	DefaultProbeTimeout = 10 * time.Second
)

// Config tunes a Detector.
type Config struct {
	// Shell selects the shell version probes run through.
	Shell shell.Config
	// CommandOverrides maps builtin agent ids to a replacement command.
	CommandOverrides map[string]string
	// Timeout overrides the platform default version probe timeout.
	Timeout time.Duration
	// ProbeTimeout overrides DefaultProbeTimeout.
	ProbeTimeout time.Duration
	// Concurrency limits parallel detections in DetectAll. Zero or less
	// means one goroutine per agent.
	Concurrency int
	// Packaged marks a release build in diagnostics.
	Packaged bool
}

// Options are per call detection options.
type Options struct {
	// ForceRefresh drops cached results before detecting.
	ForceRefresh bool
}

// Detector runs the two phase detection (version probe, then presence
// probe) and caches results until invalidated. It is safe for concurrent
// use.
type Detector struct {
	log      zerolog.Logger
	resolver *shell.Resolver
	runner   executil.Runner
	diag     *DiagnosticLog
	cfg      Config

	cache  *Cache
	flight singleflight.Group
	stat   func(string) (os.FileInfo, error)
}

// New returns a Detector. diag may be nil.
func New(log zerolog.Logger, resolver *shell.Resolver, runner executil.Runner, diag *DiagnosticLog, cfg Config) *Detector {
	return &Detector{
		log:      log.With().Str("component", "detect").Logger(),
		resolver: resolver,
		runner:   runner,
		diag:     diag,
		cfg:      cfg,
		cache:    NewCache(),
		stat:     os.Stat,
	}
}

// Cache exposes the result cache.
func (d *Detector) Cache() *Cache { return d.cache }

// Diagnostics returns the diagnostic log, which may be nil.
func (d *Detector) Diagnostics() *DiagnosticLog { return d.diag }

// Timeout returns the version probe timeout in effect.
func (d *Detector) Timeout() time.Duration {
	if d.cfg.Timeout > 0 {
		return d.cfg.Timeout
	}
	if d.resolver.GOOS() == "windows" {
		return WindowsTimeout
	}
	return DefaultTimeout
}

func (d *Detector) probeTimeout() time.Duration {
	limit := d.cfg.ProbeTimeout
	if limit <= 0 {
		limit = DefaultProbeTimeout
	}
	return min(d.Timeout(), limit)
}

// Invalidate drops cached results for ids, or all results when ids is empty.
func (d *Detector) Invalidate(ids ...string) {
	d.cache.Invalidate(ids...)
}

// DetectAll detects every builtin agent followed by custom. Results are in
// that order. Agents are detected concurrently and one failing never
// affects the others. Custom agents that are invalid or repeat an id
// already in the batch are skipped.
func (d *Detector) DetectAll(ctx context.Context, custom []agent.CustomAgent, opts Options) []agent.Result {
	descs := d.batch(custom)

	if opts.ForceRefresh {
		d.cache.Invalidate()
	}

	results := make([]agent.Result, len(descs))

	var g errgroup.Group
	if d.cfg.Concurrency > 0 {
		g.SetLimit(d.cfg.Concurrency)
	}
	for i, desc := range descs {
		g.Go(func() error {
			results[i] = d.detect(ctx, desc)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// DetectOne detects a single agent. A builtin id wins; otherwise custom is
// used when given. An id matching neither yields a not installed result.
func (d *Detector) DetectOne(ctx context.Context, id string, custom *agent.CustomAgent, opts Options) agent.Result {
	var src agent.Source
	if b, ok := agent.Builtin(id); ok {
		src = agent.BuiltinSource{Builtin: b, CommandOverride: d.cfg.CommandOverrides[id]}
	} else if custom != nil {
		src = agent.CustomSource{Agent: *custom}
	} else {
		return agent.Unknown(id)
	}

	desc, err := src.Descriptor()
	if err != nil {
		d.log.Warn().Err(err).Str("agent", id).Msg("invalid agent")
		return agent.Unknown(id)
	}

	if opts.ForceRefresh {
		d.cache.Invalidate(desc.ID)
	}
	return d.detect(ctx, desc)
}

func (d *Detector) batch(custom []agent.CustomAgent) []agent.Descriptor {
	var descs []agent.Descriptor
	seen := make(map[string]struct{})

	add := func(src agent.Source) {
		desc, err := src.Descriptor()
		if err != nil {
			d.log.Warn().Err(err).Msg("skipping invalid agent")
			return
		}
		if _, dup := seen[desc.ID]; dup {
			d.log.Warn().Str("agent", desc.ID).Msg("skipping duplicate agent id")
			return
		}
		seen[desc.ID] = struct{}{}
		descs = append(descs, desc)
	}

	for _, b := range agent.Builtins() {
		add(agent.BuiltinSource{Builtin: b, CommandOverride: d.cfg.CommandOverrides[b.ID]})
	}
	for _, c := range custom {
		add(agent.CustomSource{Agent: c})
	}
	return descs
}

// detect returns the cached result or probes desc. Concurrent callers for
// the same agent within one cache generation share a single probe.
func (d *Detector) detect(ctx context.Context, desc agent.Descriptor) agent.Result {
	if r, ok := d.cache.Get(desc.ID); ok {
		return r
	}

	gen := d.cache.Generation()
	key := fmt.Sprintf("%s@%d", desc.ID, gen)

	v, _, _ := d.flight.Do(key, func() (any, error) {
		// the probe is shared, so it must not die with the first caller
		r := d.probe(context.WithoutCancel(ctx), desc)
		d.cache.Put(desc.ID, r, gen)
		return r, nil
	})
	return v.(agent.Result)
}

func (d *Detector) probe(ctx context.Context, desc agent.Descriptor) agent.Result {
	sh := d.resolver.Resolve(d.cfg.Shell)
	timeout := d.Timeout()
	line := desc.VersionCommand()

	d.diag.Debug("version probe", d.details(desc, sh, line, PhaseVersion, timeout, nil))

	out, err := d.runner.Run(ctx, sh.Command(line), executil.RunOptions{
		Env:     sh.Environ(),
		Timeout: timeout,
		PTY:     true,
	})
	if err == nil {
		version, _ := desc.ParseVersion(executil.StripANSI(out))
		return agent.Installed(desc, agent.EnvNative, agent.ProbeVersion, version)
	}

	timedOut := executil.IsTimeout(err)
	details := d.details(desc, sh, line, PhaseVersion, timeout, err)
	var exitErr *executil.ExitError
	if errors.As(err, &exitErr) {
		details.OutputPreview = outputPreview(executil.StripANSI(exitErr.Output + "\n" + exitErr.Stderr))
	}
	d.diag.Warn("version probe failed", details)

	if d.present(ctx, desc, sh, timeout) {
		return agent.Installed(desc, agent.EnvNative, agent.ProbePresence, "")
	}

	d.log.Debug().Str("agent", desc.ID).Bool("timed_out", timedOut).Msg("agent not detected")
	return agent.NotInstalled(desc, timedOut)
}

// present runs the presence probe: a stat for path-like commands, a PATH
// lookup otherwise.
func (d *Detector) present(ctx context.Context, desc agent.Descriptor, sh shell.Context, timeout time.Duration) bool {
	exe := ExtractExecutable(desc.Command)
	if exe == "" {
		return false
	}

	if IsPathLike(exe) {
		_, err := d.stat(exe)
		if err != nil {
			d.diag.Warn("executable not found", d.details(desc, sh, exe, PhaseProbe, 0, err))
			return false
		}
		return true
	}

	limit := min(timeout, d.probeTimeout())

	var argv []string
	if d.resolver.GOOS() == "windows" {
		argv = []string{"where.exe", exe}
	} else {
		argv = []string{"/bin/sh", "-c", "command -v " + proc.QuotePOSIX(exe)}
	}
	line := strings.Join(argv, " ")

	out, err := d.runner.Run(ctx, argv, executil.RunOptions{Env: sh.Environ(), Timeout: limit})
	if err == nil && strings.TrimSpace(executil.StripANSI(out)) != "" {
		return true
	}
	if err == nil {
		err = errors.New("empty lookup output")
	}
	d.diag.Warn("presence probe failed", d.details(desc, sh, line, PhaseProbe, limit, err))
	return false
}

func (d *Detector) details(desc agent.Descriptor, sh shell.Context, command string, phase Phase, timeout time.Duration, err error) Details {
	det := Details{
		AgentID:     desc.ID,
		Command:     command,
		Phase:       phase,
		TimeoutMS:   timeout.Milliseconds(),
		Shell:       sh.Executable,
		ShellArgs:   sh.Args,
		PathPreview: sh.PathPreview(8),
		Packaged:    d.cfg.Packaged,
	}
	if err != nil {
		det.Error = err.Error()
	}
	return det
}
