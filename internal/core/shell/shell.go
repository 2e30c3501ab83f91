// Package shell resolves the shell and environment every child process is
// started with.
package shell

import (
	"path"
	"slices"
	"sort"
	"strings"
)

// Kind selects how the shell executable is chosen.
type Kind string

const (
	// KindSystem uses the platform default shell.
	KindSystem Kind = "system"
	// KindCustom uses Config.Path, falling back to the platform default.
	KindCustom Kind = "custom"
	// KindLogin runs commands after the user's profile has been loaded.
	KindLogin Kind = "login"
)

// Config is the logical shell selection stored in the user config.
type Config struct {
	Kind Kind     `yaml:"kind"`
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
}

// Family groups shells that share command line conventions.
type Family string

const (
	FamilyPOSIX      Family = "posix"
	FamilyPowerShell Family = "powershell"
	FamilyCmd        Family = "cmd"
)

// FamilyOf classifies a shell executable by its base name.
func FamilyOf(executable string) Family {
	base := executable
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(strings.ToLower(base), ".exe")

	switch base {
	case "pwsh", "powershell":
		return FamilyPowerShell
	case "cmd":
		return FamilyCmd
	default:
		return FamilyPOSIX
	}
}

// Context is a resolved execution environment. It is never modified after
// Resolve returns it.
type Context struct {
	Executable string
	Args       []string
	Env        map[string]string

	goos string
}

// Command returns the argv that runs line through the shell.
func (c Context) Command(line string) []string {
	argv := make([]string, 0, len(c.Args)+2)
	argv = append(argv, c.Executable)
	argv = append(argv, c.Args...)
	return append(argv, line)
}

// Path returns the PATH the context runs with.
func (c Context) Path() string {
	return c.Env["PATH"]
}

// PathEntries splits Path with the separator of the resolved platform.
func (c Context) PathEntries() []string {
	return splitList(c.goos, c.Path())
}

// PathPreview returns at most n entries of PathEntries.
func (c Context) PathPreview(n int) []string {
	entries := c.PathEntries()
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// Environ renders Env as a sorted KEY=value list for exec.Cmd.
func (c Context) Environ() []string {
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// Equivalent reports whether both contexts run commands the same way: same
// executable, argv prefix and PATH.
func (c Context) Equivalent(o Context) bool {
	return c.Executable == o.Executable &&
		slices.Equal(c.Args, o.Args) &&
		c.Path() == o.Path()
}

// Invocation is a command line wrapped for a login shell.
type Invocation struct {
	Context Context
	Argv    []string
	// Line is Argv rendered as one quoted command line, safe to log or to
	// hand to a platform shell.
	Line string
}

func listSep(goos string) string {
	if goos == "windows" {
		return ";"
	}
	return ":"
}

func splitList(goos, list string) []string {
	if list == "" {
		return nil
	}
	parts := strings.Split(list, listSep(goos))
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// join builds a path for goos independent of the host separator.
func join(goos string, elem ...string) string {
	if goos == "windows" {
		return strings.Join(elem, `\`)
	}
	return path.Join(elem...)
}
