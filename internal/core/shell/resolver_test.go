package shell

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func existsIn(paths ...string) func(string) bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return func(p string) bool { return set[p] }
}

func noGlob(string) []string { return nil }

func TestResolver_DefaultShell(t *testing.T) {
	tests := []struct {
		name   string
		goos   string
		env    []string
		exists []string
		want   string
	}{
		{
			name: "windows without pwsh 7",
			goos: "windows",
			want: "powershell.exe",
		},
		{
			name:   "windows with pwsh 7",
			goos:   "windows",
			exists: []string{PowerShell7Path},
			want:   PowerShell7Path,
		},
		{
			name:   "posix prefers SHELL",
			goos:   "darwin",
			env:    []string{"SHELL=/opt/homebrew/bin/fish"},
			exists: []string{"/opt/homebrew/bin/fish", "/bin/zsh"},
			want:   "/opt/homebrew/bin/fish",
		},
		{
			name:   "posix SHELL missing on disk",
			goos:   "linux",
			env:    []string{"SHELL=/usr/bin/nope"},
			exists: []string{"/bin/bash", "/bin/sh"},
			want:   "/bin/bash",
		},
		{
			name:   "posix probe order",
			goos:   "linux",
			exists: []string{"/bin/zsh", "/bin/bash", "/bin/sh"},
			want:   "/bin/zsh",
		},
		{
			name: "posix nothing exists",
			goos: "linux",
			want: "/bin/sh",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(
				WithPlatform(tt.goos),
				WithEnviron(tt.env),
				WithExists(existsIn(tt.exists...)),
				WithGlob(noGlob),
				WithHome(""),
			)
			assert.Equal(t, tt.want, r.DefaultShell())
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	env := []string{"PATH=/usr/bin:/bin", "SHELL=/bin/zsh", "HOME=/home/u"}

	tests := []struct {
		name     string
		goos     string
		env      []string
		exists   []string
		cfg      Config
		wantExe  string
		wantArgs []string
	}{
		{
			name:     "windows system falls back to powershell",
			goos:     "windows",
			env:      []string{`Path=C:\Windows\system32`},
			cfg:      Config{Kind: KindSystem},
			wantExe:  "powershell.exe",
			wantArgs: []string{"-NoLogo", "-NoProfile", "-Command"},
		},
		{
			name:     "windows login without path uses cmd",
			goos:     "windows",
			exists:   []string{PowerShell7Path},
			cfg:      Config{Kind: KindLogin},
			wantExe:  "cmd.exe",
			wantArgs: []string{"/d", "/s", "/c"},
		},
		{
			name:     "windows login with pwsh keeps profile",
			goos:     "windows",
			exists:   []string{PowerShell7Path},
			cfg:      Config{Kind: KindLogin, Path: PowerShell7Path},
			wantExe:  PowerShell7Path,
			wantArgs: []string{"-NoLogo", "-Command"},
		},
		{
			name:     "posix system",
			goos:     "linux",
			env:      env,
			exists:   []string{"/bin/zsh"},
			cfg:      Config{},
			wantExe:  "/bin/zsh",
			wantArgs: []string{"-c"},
		},
		{
			name:     "posix login",
			goos:     "darwin",
			env:      env,
			exists:   []string{"/bin/zsh"},
			cfg:      Config{Kind: KindLogin},
			wantExe:  "/bin/zsh",
			wantArgs: []string{"-l", "-c"},
		},
		{
			name:     "custom path",
			goos:     "linux",
			env:      env,
			exists:   []string{"/bin/zsh", "/usr/bin/fish"},
			cfg:      Config{Kind: KindCustom, Path: "/usr/bin/fish"},
			wantExe:  "/usr/bin/fish",
			wantArgs: []string{"-c"},
		},
		{
			name:     "custom bare name",
			goos:     "linux",
			env:      env,
			exists:   []string{"/bin/zsh"},
			cfg:      Config{Kind: KindCustom, Path: "bash"},
			wantExe:  "bash",
			wantArgs: []string{"-c"},
		},
		{
			name:     "custom missing path falls back",
			goos:     "linux",
			env:      env,
			exists:   []string{"/bin/zsh"},
			cfg:      Config{Kind: KindCustom, Path: "/nope/fish"},
			wantExe:  "/bin/zsh",
			wantArgs: []string{"-c"},
		},
		{
			name:     "explicit args",
			goos:     "linux",
			env:      env,
			exists:   []string{"/bin/zsh"},
			cfg:      Config{Kind: KindSystem, Args: []string{"-i", "-c"}},
			wantExe:  "/bin/zsh",
			wantArgs: []string{"-i", "-c"},
		},
		{
			name:     "unknown kind",
			goos:     "linux",
			env:      env,
			exists:   []string{"/bin/zsh"},
			cfg:      Config{Kind: "weird"},
			wantExe:  "/bin/zsh",
			wantArgs: []string{"-c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(
				WithPlatform(tt.goos),
				WithEnviron(tt.env),
				WithExists(existsIn(tt.exists...)),
				WithGlob(noGlob),
				WithHome(""),
			)
			ctx := r.Resolve(tt.cfg)
			assert.Equal(t, tt.wantExe, ctx.Executable)
			assert.Equal(t, tt.wantArgs, ctx.Args)
			assert.Contains(t, ctx.Env, "PATH")
		})
	}
}

func TestResolver_WindowsPathKeyIsCanonical(t *testing.T) {
	r := NewResolver(
		WithPlatform("windows"),
		WithEnviron([]string{`Path=C:\Windows;C:\tools`, "APPDATA=C:\\Users\\u\\AppData\\Roaming"}),
		WithExists(existsIn(`C:\Users\u\AppData\Roaming\npm`)),
		WithGlob(noGlob),
		WithHome(""),
	)
	ctx := r.Resolve(Config{})

	assert.NotContains(t, ctx.Env, "Path")
	assert.Equal(t, `C:\Windows;C:\tools;C:\Users\u\AppData\Roaming\npm`, ctx.Path())
	assert.Equal(t, []string{`C:\Windows`, `C:\tools`}, ctx.PathPreview(2))
}

func TestResolver_LoginKeepsInheritedPath(t *testing.T) {
	r := NewResolver(
		WithPlatform("linux"),
		WithEnviron([]string{"PATH=/usr/bin"}),
		WithExists(existsIn("/bin/bash", "/home/u/.cargo/bin")),
		WithGlob(noGlob),
		WithHome("/home/u"),
	)

	assert.Equal(t, "/usr/bin:/home/u/.cargo/bin", r.Resolve(Config{}).Path())
	assert.Equal(t, "/usr/bin", r.Resolve(Config{Kind: KindLogin}).Path())
}

func TestResolver_LoginCommand(t *testing.T) {
	t.Run("windows quotes paths with spaces", func(t *testing.T) {
		r := NewResolver(
			WithPlatform("windows"),
			WithEnviron(nil),
			WithExists(existsIn(PowerShell7Path)),
			WithGlob(noGlob),
		)
		inv := r.LoginCommand(Config{Kind: KindCustom, Path: PowerShell7Path}, "hapi --version")

		assert.Equal(t, []string{PowerShell7Path, "-NoLogo", "-Command", "hapi --version"}, inv.Argv)
		assert.Equal(t, `"C:\Program Files\PowerShell\7\pwsh.exe" -NoLogo -Command "hapi --version"`, inv.Line)
	})

	t.Run("windows default is cmd", func(t *testing.T) {
		r := NewResolver(WithPlatform("windows"), WithEnviron(nil), WithExists(existsIn()), WithGlob(noGlob))
		inv := r.LoginCommand(Config{}, "happy --version")
		assert.Equal(t, "cmd.exe /d /s /c \"happy --version\"", inv.Line)
	})

	t.Run("posix", func(t *testing.T) {
		r := NewResolver(
			WithPlatform("darwin"),
			WithEnviron([]string{"SHELL=/Users/me/My Shells/zsh"}),
			WithExists(existsIn("/Users/me/My Shells/zsh")),
			WithGlob(noGlob),
		)
		inv := r.LoginCommand(Config{Kind: KindSystem}, "hapi --version")
		assert.Equal(t, "'/Users/me/My Shells/zsh' -l -c 'hapi --version'", inv.Line)
		assert.Equal(t, "/Users/me/My Shells/zsh", inv.Context.Executable)
	})
}

func TestContext(t *testing.T) {
	a := Context{Executable: "/bin/zsh", Args: []string{"-c"}, Env: map[string]string{"PATH": "/bin", "B": "2", "A": "1"}, goos: "linux"}
	b := Context{Executable: "/bin/zsh", Args: []string{"-c"}, Env: map[string]string{"PATH": "/bin", "X": "other"}}
	c := Context{Executable: "/bin/zsh", Args: []string{"-l", "-c"}, Env: map[string]string{"PATH": "/bin"}}

	assert.True(t, a.Equivalent(b))
	assert.False(t, a.Equivalent(c))
	assert.Equal(t, []string{"/bin/zsh", "-c", "claude --version"}, a.Command("claude --version"))
	assert.Equal(t, []string{"A=1", "B=2", "PATH=/bin"}, a.Environ())

	// Command never aliases the Args backing array
	argv := a.Command("one")
	argv[1] = "mutated"
	assert.Equal(t, []string{"-c"}, a.Args)
}

func TestFamilyOf(t *testing.T) {
	tests := map[string]Family{
		PowerShell7Path:                  FamilyPowerShell,
		"powershell.exe":                 FamilyPowerShell,
		`C:\Windows\System32\cmd.exe`:    FamilyCmd,
		"CMD.EXE":                        FamilyCmd,
		"/bin/zsh":                       FamilyPOSIX,
		"/usr/local/bin/pwsh":            FamilyPowerShell,
		`C:\Program Files\Git\bin\bash.exe`: FamilyPOSIX,
	}
	for exe, want := range tests {
		assert.Equal(t, want, FamilyOf(exe), exe)
	}
}

func TestEnhancedPath(t *testing.T) {
	home := "/home/u"
	r := NewResolver(
		WithPlatform("linux"),
		WithEnviron([]string{"PATH=/usr/bin::/home/u/.cargo/bin/:/bin:/usr/bin"}),
		WithHome(home),
		WithExists(existsIn(
			"/home/u/.local/bin",
			"/home/u/.cargo/bin",
			"/usr/local/bin",
		)),
		WithGlob(func(pattern string) []string {
			require.Equal(t, "/home/u/.nvm/versions/node/*/bin", pattern)
			return []string{
				"/home/u/.nvm/versions/node/v9.11.2/bin",
				"/home/u/.nvm/versions/node/v20.11.1/bin",
				"/home/u/.nvm/versions/node/v18.19.0/bin",
			}
		}),
	)

	got := strings.Split(r.EnhancedPath(), ":")
	assert.Equal(t, []string{
		"/usr/bin",
		"/home/u/.cargo/bin/",
		"/bin",
		"/home/u/.local/bin",
		"/home/u/.nvm/versions/node/v20.11.1/bin",
		"/home/u/.nvm/versions/node/v18.19.0/bin",
		"/home/u/.nvm/versions/node/v9.11.2/bin",
		"/usr/local/bin",
	}, got)
}

func TestEnhancedPath_WindowsDedupeIgnoresCase(t *testing.T) {
	r := NewResolver(
		WithPlatform("windows"),
		WithEnviron([]string{
			`PATH=C:\Windows;c:\users\u\appdata\roaming\npm\`,
			`APPDATA=C:\Users\u\AppData\Roaming`,
			`USERPROFILE=C:\Users\u`,
		}),
		WithExists(existsIn(`C:\Users\u\AppData\Roaming\npm`, `C:\Users\u\scoop\shims`)),
		WithGlob(noGlob),
	)

	assert.Equal(t, `C:\Windows;c:\users\u\appdata\roaming\npm\;C:\Users\u\scoop\shims`, r.EnhancedPath())
}

func TestResolver_Interactive(t *testing.T) {
	r := NewResolver(
		WithPlatform("linux"),
		WithEnviron([]string{"PATH=/bin"}),
		WithExists(existsIn("/bin/bash")),
		WithGlob(noGlob),
		WithHome(""),
	)

	assert.Empty(t, r.Interactive(Config{}).Args)
	assert.Equal(t, []string{"-l"}, r.Interactive(Config{Kind: KindLogin}).Args)
	assert.Equal(t, []string{"-i"}, r.Interactive(Config{Args: []string{"-i"}}).Args)

	win := NewResolver(WithPlatform("windows"), WithEnviron(nil), WithExists(existsIn()), WithGlob(noGlob))
	assert.Equal(t, []string{"-NoLogo"}, win.Interactive(Config{}).Args)
	assert.Empty(t, win.Interactive(Config{Kind: KindLogin}).Args)
}
