package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/hay-kot/enso/internal/core/agent"
	"github.com/hay-kot/enso/internal/core/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a Config with all required fields set for testing.
func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	return &cfg
}

func fieldErrors(t *testing.T, err error) criterio.FieldErrors {
	t.Helper()
	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	return fieldErrs
}

func fields(errs criterio.FieldErrors) []string {
	out := make([]string, len(errs))
	for i, fe := range errs {
		out[i] = fe.Field
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   []string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty git path", mutate: func(c *Config) { c.GitPath = "" }, want: []string{"git_path"}},
		{name: "empty data dir", mutate: func(c *Config) { c.DataDir = "" }, want: []string{"data_dir"}},
		{
			name:   "unknown shell kind",
			mutate: func(c *Config) { c.Shell.Kind = "fish-only" },
			want:   []string{"shell.kind"},
		},
		{
			name:   "custom shell needs path",
			mutate: func(c *Config) { c.Shell = shell.Config{Kind: shell.KindCustom} },
			want:   []string{"shell.path"},
		},
		{
			name: "override of unknown builtin",
			mutate: func(c *Config) {
				c.Agents.Paths = map[string]string{"claude": "/opt/claude", "nope": "x"}
			},
			want: []string{"agents.paths.nope"},
		},
		{
			name: "custom agents",
			mutate: func(c *Config) {
				c.Agents.Custom = []agent.CustomAgent{
					{ID: "ok", Command: "ok"},
					{ID: "no-command"},
					{ID: "ok", Command: "again"},
					{ID: "bad-re", Command: "x", VersionPattern: "("},
				}
			},
			want: []string{"agents.custom[1]", "agents.custom[2].id", "agents.custom[3]"},
		},
		{
			name: "copy patterns",
			mutate: func(c *Config) {
				c.Workspace.Copy = []string{".env", "configs/**/*.yaml", "", "../secrets", "/etc/passwd", "[oops"}
			},
			want: []string{
				"workspace.copy[2]",
				"workspace.copy[3]",
				"workspace.copy[4]",
				"workspace.copy[5]",
			},
		},
		{
			name: "durations",
			mutate: func(c *Config) {
				c.Detect.Timeout = -time.Second
				c.Detect.ProbeTimeout = 0
				c.Detect.Concurrency = -1
				c.Terminal.GracePeriod = 0
				c.Workspace.RemoveDelay = -1
			},
			want: []string{
				"detect.timeout",
				"detect.probe_timeout",
				"detect.concurrency",
				"terminal.grace_period",
				"workspace.remove_delay",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if len(tt.want) == 0 {
				require.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, fields(fieldErrors(t, err)))
		})
	}
}

func TestValidateDeep_SetupTemplates(t *testing.T) {
	cfg := validConfig(t)
	cfg.GitPath = "sh" // present on every test host
	cfg.Workspace.Setup = []string{
		"echo {{ .Path | shq }} {{ .Name }}",
		"echo {{ .Path }",
		"echo {{ .Prompt }}",
	}

	errs := fieldErrors(t, cfg.ValidateDeep(""))
	assert.Equal(t, []string{"workspace.setup[1]", "workspace.setup[2]"}, fields(errs))
	assert.Contains(t, errs[0].Err.Error(), "template error")
}

func TestValidateDeep_FileAccess(t *testing.T) {
	cfg := validConfig(t)
	cfg.GitPath = filepath.Join(t.TempDir(), "no-git-here")
	cfg.Shell = shell.Config{Kind: shell.KindCustom, Path: filepath.Join(t.TempDir(), "no-shell")}

	errs := fieldErrors(t, cfg.ValidateDeep(t.TempDir()))
	assert.ElementsMatch(t, []string{"config", "git_path", "shell.path"}, fields(errs))
}

func TestWarnings(t *testing.T) {
	cfg := validConfig(t)
	cfg.Agents.Paths = map[string]string{
		"claude": filepath.Join(t.TempDir(), "missing-claude"),
		"codex":  "codex",
	}
	cfg.Shell = shell.Config{Kind: shell.KindLogin}
	cfg.Workspace.BaseDir = "relative/dir"

	warnings := cfg.Warnings()
	require.Len(t, warnings, 3)
	assert.Equal(t, "claude", warnings[0].Item)
	assert.Equal(t, "shell.path", warnings[1].Item)
	assert.Equal(t, "workspace.base_dir", warnings[2].Item)
}

func TestLoad(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		dataDir := t.TempDir()
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), dataDir)
		require.NoError(t, err)

		assert.Equal(t, "git", cfg.GitPath)
		assert.Equal(t, shell.KindSystem, cfg.Shell.Kind)
		assert.Equal(t, 3*time.Second, cfg.Terminal.GracePeriod)
		assert.Equal(t, 500*time.Millisecond, cfg.Workspace.RemoveDelay)
		assert.Equal(t, filepath.Join(dataDir, "workspaces.json"), cfg.WorkspacesFile())
		assert.Equal(t, filepath.Join(dataDir, "logs", "cli-detect.log"), cfg.DetectLogFile())
	})

	t.Run("overlay", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		data := `
shell:
  kind: login
  path: /bin/zsh
agents:
  paths:
    claude: /opt/bin/claude
  custom:
    - id: my-agent
      name: My Agent
      command: my-agent
      version_pattern: 'v(\d+\.\d+)'
detect:
  timeout: 20s
  concurrency: 4
terminal:
  cols: 120
workspace:
  base_dir: ~/scratch
  setup:
    - git commit --allow-empty -m init
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		cfg, err := Load(path, t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, shell.Config{Kind: shell.KindLogin, Path: "/bin/zsh"}, cfg.Shell)
		assert.Equal(t, "/opt/bin/claude", cfg.Agents.Paths["claude"])
		require.Len(t, cfg.Agents.Custom, 1)
		assert.Equal(t, `v(\d+\.\d+)`, cfg.Agents.Custom[0].VersionPattern)
		assert.Equal(t, 20*time.Second, cfg.Detect.Timeout)
		assert.Equal(t, 10*time.Second, cfg.Detect.ProbeTimeout)
		assert.Equal(t, 4, cfg.Detect.Concurrency)
		assert.Equal(t, uint16(120), cfg.Terminal.Cols)
		assert.Equal(t, uint16(24), cfg.Terminal.Rows)
		assert.Equal(t, "~/scratch", cfg.Workspace.BaseDir)
		assert.Len(t, cfg.Workspace.Setup, 1)
	})

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("shell:\n  kind: nope\n"), 0o644))

		_, err := Load(path, t.TempDir())
		require.Error(t, err)
		assert.Equal(t, []string{"shell.kind"}, fields(fieldErrors(t, err)))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("shell: [\n"), 0o644))

		_, err := Load(path, t.TempDir())
		require.ErrorContains(t, err, "parse config file")
	})
}
