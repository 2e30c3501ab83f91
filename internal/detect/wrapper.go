package detect

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/hay-kot/enso/internal/core/agent"
	"github.com/hay-kot/enso/internal/core/shell"
	"github.com/hay-kot/enso/pkg/executil"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// WrapperTTL is how long a successful wrapper detection is reused.
	WrapperTTL = 5 * time.Minute
	// WrapperTimeout bounds the login shell version probe.
	WrapperTimeout = 30 * time.Second
)

// Wrapper is a globally installed CLI that launches agents on the user's
// behalf. Wrappers are probed through a login shell because they are
// usually installed by a node version manager.
type Wrapper struct {
	ID      string
	Name    string
	Command string
	Env     agent.Environment
	Pattern *regexp.Regexp
}

// Wrappers are the known agent wrappers.
var Wrappers = []Wrapper{
	{
		ID:      "hapi",
		Name:    "Hapi",
		Command: "hapi",
		Env:     agent.EnvHapi,
		Pattern: agent.DefaultVersionPattern,
	},
	{
		ID:      "happy",
		Name:    "Happy",
		Command: "happy",
		Env:     agent.EnvHappy,
		Pattern: regexp.MustCompile(`happy version:\s*(\d+\.\d+\.\d+)`),
	},
}

func (w Wrapper) descriptor() agent.Descriptor {
	return agent.Descriptor{
		ID:             w.ID,
		DisplayName:    w.Name,
		Command:        w.Command,
		VersionFlag:    agent.DefaultVersionFlag,
		VersionPattern: w.Pattern,
		IsBuiltin:      true,
	}
}

type wrapperEntry struct {
	result agent.Result
	at     time.Time
}

// WrapperDetector detects the Wrappers. Successful results are cached for
// WrapperTTL; failures are never cached so a fresh install shows up on the
// next call.
type WrapperDetector struct {
	log      zerolog.Logger
	resolver *shell.Resolver
	runner   executil.Runner
	shell    shell.Config
	now      func() time.Time

	// TTL and Timeout override WrapperTTL and WrapperTimeout.
	TTL     time.Duration
	Timeout time.Duration

	mu     sync.Mutex
	cache  map[string]wrapperEntry
	flight singleflight.Group
}

// NewWrapperDetector returns a WrapperDetector running probes through the
// login variant of sh.
func NewWrapperDetector(log zerolog.Logger, resolver *shell.Resolver, runner executil.Runner, sh shell.Config) *WrapperDetector {
	return &WrapperDetector{
		log:      log.With().Str("component", "wrapper-detect").Logger(),
		resolver: resolver,
		runner:   runner,
		shell:    sh,
		now:      time.Now,
		TTL:      WrapperTTL,
		Timeout:  WrapperTimeout,
		cache:    make(map[string]wrapperEntry),
	}
}

// DetectAll detects every wrapper concurrently, in Wrappers order.
func (w *WrapperDetector) DetectAll(ctx context.Context, opts Options) []agent.Result {
	results := make([]agent.Result, len(Wrappers))
	var wg sync.WaitGroup
	for i, wr := range Wrappers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = w.Detect(ctx, wr, opts)
		}()
	}
	wg.Wait()
	return results
}

// Detect detects one wrapper.
func (w *WrapperDetector) Detect(ctx context.Context, wr Wrapper, opts Options) agent.Result {
	if !opts.ForceRefresh {
		if r, ok := w.cached(wr.ID); ok {
			return r
		}
	}

	v, _, _ := w.flight.Do(wr.ID, func() (any, error) {
		r := w.probe(context.WithoutCancel(ctx), wr)
		if r.Installed {
			w.mu.Lock()
			w.cache[wr.ID] = wrapperEntry{result: r, at: w.now()}
			w.mu.Unlock()
		}
		return r, nil
	})
	return v.(agent.Result)
}

func (w *WrapperDetector) cached(id string) (agent.Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.cache[id]
	if !ok || w.now().Sub(e.at) >= w.TTL {
		delete(w.cache, id)
		return agent.Result{}, false
	}
	return e.result, true
}

func (w *WrapperDetector) probe(ctx context.Context, wr Wrapper) agent.Result {
	desc := wr.descriptor()
	inv := w.resolver.LoginCommand(w.shell, desc.VersionCommand())

	out, err := w.runner.Run(ctx, inv.Argv, executil.RunOptions{
		Env:     inv.Context.Environ(),
		Timeout: w.Timeout,
	})

	// some wrappers print their version and still exit non-zero
	var exitErr *executil.ExitError
	if errors.As(err, &exitErr) {
		out = exitErr.Output + "\n" + exitErr.Stderr
	}
	if version, ok := desc.ParseVersion(executil.StripANSI(out)); ok {
		return agent.Installed(desc, wr.Env, agent.ProbeVersion, version)
	}

	w.log.Debug().Err(err).Str("wrapper", wr.ID).Str("command", inv.Line).Msg("wrapper not detected")
	return agent.NotInstalled(desc, executil.IsTimeout(err))
}
