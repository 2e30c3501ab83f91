package shell

import (
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/enso/pkg/proc"
)

// PowerShell7Path is where the PowerShell 7 installer puts pwsh.
const PowerShell7Path = `C:\Program Files\PowerShell\7\pwsh.exe`

var posixFallbacks = []string{"/bin/zsh", "/bin/bash", "/bin/sh"}

// Resolver turns a Config into a Context. Everything it reads from the host
// (platform, environment, filesystem) is injectable so tests can model any
// platform.
type Resolver struct {
	goos    string
	environ func() []string
	exists  func(string) bool
	glob    func(string) []string
	home    string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPlatform overrides runtime.GOOS.
func WithPlatform(goos string) Option {
	return func(r *Resolver) { r.goos = goos }
}

// WithEnviron overrides os.Environ.
func WithEnviron(env []string) Option {
	return func(r *Resolver) {
		r.environ = func() []string { return env }
	}
}

// WithExists overrides the filesystem existence check.
func WithExists(fn func(string) bool) Option {
	return func(r *Resolver) { r.exists = fn }
}

// WithGlob overrides glob expansion of tool manager directories.
func WithGlob(fn func(string) []string) Option {
	return func(r *Resolver) { r.glob = fn }
}

// WithHome overrides the user's home directory.
func WithHome(home string) Option {
	return func(r *Resolver) { r.home = home }
}

// NewResolver returns a Resolver for the current host, adjusted by opts.
func NewResolver(opts ...Option) *Resolver {
	home, _ := os.UserHomeDir()
	r := &Resolver{
		goos:    runtime.GOOS,
		environ: os.Environ,
		exists:  pathExists,
		glob:    fsGlob,
		home:    home,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GOOS returns the platform the resolver produces contexts for.
func (r *Resolver) GOOS() string { return r.goos }

// Resolve produces the Context for cfg. It never fails: an unknown kind or a
// custom path that does not exist resolves to the platform default.
func (r *Resolver) Resolve(cfg Config) Context {
	env := r.env()

	var exe string
	login := cfg.Kind == KindLogin

	switch cfg.Kind {
	case KindCustom:
		exe = r.usable(cfg.Path)
	case KindLogin:
		exe = r.usable(cfg.Path)
		if exe == "" && r.goos == "windows" {
			exe = "cmd.exe"
		}
	}
	if exe == "" {
		exe = r.DefaultShell()
	}

	args := cfg.Args
	if args == nil {
		args = defaultArgs(FamilyOf(exe), login)
	}

	pathValue := r.EnhancedPath()
	if login {
		// the profile owns PATH in a login shell
		if inherited := lookupEnv(env, "PATH"); inherited != "" {
			pathValue = inherited
		}
	}
	setPath(env, pathValue, r.goos)

	return Context{
		Executable: exe,
		Args:       slices.Clone(args),
		Env:        env,
		goos:       r.goos,
	}
}

// Interactive resolves cfg for an interactive terminal: the same executable
// and environment as Resolve, with argv suited to a shell reading from its
// terminal instead of a command flag. Explicit cfg.Args are kept.
func (r *Resolver) Interactive(cfg Config) Context {
	ctx := r.Resolve(cfg)
	if cfg.Args == nil {
		ctx.Args = interactiveArgs(FamilyOf(ctx.Executable), cfg.Kind == KindLogin)
	}
	return ctx
}

// DefaultShell returns the platform default shell executable.
func (r *Resolver) DefaultShell() string {
	if r.goos == "windows" {
		if r.exists(PowerShell7Path) {
			return PowerShell7Path
		}
		return "powershell.exe"
	}

	if sh := lookupEnv(r.env(), "SHELL"); sh != "" && r.exists(sh) {
		return sh
	}
	for _, candidate := range posixFallbacks {
		if r.exists(candidate) {
			return candidate
		}
	}
	return "/bin/sh"
}

// LoginCommand wraps line so it runs after the user's profile has loaded.
// An explicit shell path in cfg is used as the login shell.
func (r *Resolver) LoginCommand(cfg Config, line string) Invocation {
	login := Config{Kind: KindLogin, Args: cfg.Args}
	if cfg.Kind == KindCustom || cfg.Kind == KindLogin {
		login.Path = cfg.Path
	}

	ctx := r.Resolve(login)
	argv := ctx.Command(line)
	return Invocation{
		Context: ctx,
		Argv:    argv,
		Line:    proc.Join(r.goos, argv),
	}
}

// usable returns p when it can be used as a shell: bare names are looked up
// at spawn time, paths must exist.
func (r *Resolver) usable(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if strings.ContainsAny(p, `/\`) && !r.exists(p) {
		return ""
	}
	return p
}

func (r *Resolver) env() map[string]string {
	env := make(map[string]string)
	for _, kv := range r.environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

func defaultArgs(f Family, login bool) []string {
	switch f {
	case FamilyPowerShell:
		if login {
			return []string{"-NoLogo", "-Command"}
		}
		return []string{"-NoLogo", "-NoProfile", "-Command"}
	case FamilyCmd:
		return []string{"/d", "/s", "/c"}
	default:
		if login {
			return []string{"-l", "-c"}
		}
		return []string{"-c"}
	}
}

func interactiveArgs(f Family, login bool) []string {
	switch f {
	case FamilyPowerShell:
		return []string{"-NoLogo"}
	case FamilyCmd:
		return nil
	default:
		if login {
			return []string{"-l"}
		}
		return nil
	}
}

// lookupEnv reads key from env, ignoring case for PATH style keys written
// as "Path" on Windows.
func lookupEnv(env map[string]string, key string) string {
	if v, ok := env[key]; ok {
		return v
	}
	for k, v := range env {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// setPath stores PATH under the canonical key, dropping differently cased
// duplicates on Windows.
func setPath(env map[string]string, value, goos string) {
	if goos == "windows" {
		for k := range env {
			if k != "PATH" && strings.EqualFold(k, "PATH") {
				delete(env, k)
			}
		}
	}
	env["PATH"] = value
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func fsGlob(pattern string) []string {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil
	}
	return matches
}
