package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"
	"github.com/hay-kot/enso/internal/core/agent"
	"github.com/hay-kot/enso/internal/core/shell"
	"github.com/hay-kot/enso/pkg/tmpl"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// SetupTemplateData defines available fields for workspace setup templates.
type SetupTemplateData struct {
	Path string
	Name string
}

// Validate checks that the configuration is valid. Errors are returned as
// criterio.FieldErrors.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.GitPath == "" {
		errs = errs.Append("git_path", errors.New("cannot be empty"))
	}
	if c.DataDir == "" {
		errs = errs.Append("data_dir", errors.New("cannot be empty"))
	}

	switch c.Shell.Kind {
	case shell.KindSystem, shell.KindLogin:
	case shell.KindCustom:
		if strings.TrimSpace(c.Shell.Path) == "" {
			errs = errs.Append("shell.path", errors.New("required when kind is custom"))
		}
	default:
		errs = errs.Append("shell.kind", fmt.Errorf("invalid kind %q (want system, custom or login)", c.Shell.Kind))
	}

	for _, id := range sortedKeys(c.Agents.Paths) {
		if _, ok := agent.Builtin(id); !ok {
			errs = errs.Append("agents.paths."+id, errors.New("unknown builtin agent"))
			continue
		}
		if strings.TrimSpace(c.Agents.Paths[id]) == "" {
			errs = errs.Append("agents.paths."+id, errors.New("command cannot be empty"))
		}
	}

	seen := make(map[string]bool, len(c.Agents.Custom))
	for i, a := range c.Agents.Custom {
		field := fmt.Sprintf("agents.custom[%d]", i)
		if _, err := (agent.CustomSource{Agent: a}).Descriptor(); err != nil {
			errs = errs.Append(field, err)
			continue
		}
		if seen[a.ID] {
			errs = errs.Append(field+".id", fmt.Errorf("duplicate id %q", a.ID))
			continue
		}
		seen[a.ID] = true
	}

	if c.Detect.Timeout < 0 {
		errs = errs.Append("detect.timeout", errors.New("cannot be negative"))
	}
	if c.Detect.ProbeTimeout <= 0 {
		errs = errs.Append("detect.probe_timeout", errors.New("must be positive"))
	}
	if c.Detect.Concurrency < 0 {
		errs = errs.Append("detect.concurrency", errors.New("cannot be negative"))
	}

	if c.Terminal.GracePeriod <= 0 {
		errs = errs.Append("terminal.grace_period", errors.New("must be positive"))
	}

	if c.Workspace.RemoveDelay < 0 {
		errs = errs.Append("workspace.remove_delay", errors.New("cannot be negative"))
	}

	for i, pattern := range c.Workspace.Copy {
		field := fmt.Sprintf("workspace.copy[%d]", i)
		switch {
		case strings.TrimSpace(pattern) == "":
			errs = errs.Append(field, errors.New("cannot be empty"))
		case filepath.IsAbs(pattern) || escapesRoot(pattern):
			errs = errs.Append(field, errors.New("must be relative to the source directory"))
		case !doublestar.ValidatePattern(filepath.ToSlash(pattern)):
			errs = errs.Append(field, errors.New("invalid glob pattern"))
		}
	}

	return errs.ToError()
}

// ValidateDeep runs Validate and additionally checks template syntax and
// file access.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	if err := c.Validate(); err != nil {
		var fieldErrs criterio.FieldErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = errs.Append(fe.Field, fe.Err)
		}
	}

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			errs = errs.Append("config", fmt.Errorf("%s is a directory, not a file", configPath))
		}
	}

	if c.GitPath != "" {
		if _, err := exec.LookPath(c.GitPath); err != nil {
			errs = errs.Append("git_path", fmt.Errorf("git executable not found: %s", c.GitPath))
		}
	}

	if c.Shell.Kind == shell.KindCustom && c.Shell.Path != "" {
		if _, err := os.Stat(c.Shell.Path); err != nil {
			errs = errs.Append("shell.path", fmt.Errorf("shell not found: %s", c.Shell.Path))
		}
	}

	for i, cmd := range c.Workspace.Setup {
		if _, err := tmpl.Render(cmd, SetupTemplateData{}); err != nil {
			errs = errs.Append(fmt.Sprintf("workspace.setup[%d]", i), fmt.Errorf("template error: %w", err))
		}
	}

	return errs.ToError()
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	for _, id := range sortedKeys(c.Agents.Paths) {
		cmd := c.Agents.Paths[id]
		if !filepath.IsAbs(cmd) {
			continue
		}
		if _, err := os.Stat(cmd); err != nil {
			warnings = append(warnings, ValidationWarning{
				Category: "Agents",
				Item:     id,
				Message:  fmt.Sprintf("%s does not exist; %s will be reported as not installed", cmd, id),
			})
		}
	}

	if c.Shell.Kind == shell.KindLogin && c.Shell.Path == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Shell",
			Item:     "shell.path",
			Message:  "login shell without a path uses the platform default shell",
		})
	}

	base := c.Workspace.BaseDir
	if base != "" && base != "~" && !strings.HasPrefix(base, "~/") && !filepath.IsAbs(base) {
		warnings = append(warnings, ValidationWarning{
			Category: "Workspace",
			Item:     "workspace.base_dir",
			Message:  fmt.Sprintf("%s is relative and resolves against the current directory", base),
		})
	}

	return warnings
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escapesRoot(rel string) bool {
	clean := filepath.ToSlash(filepath.Clean(rel))
	return clean == ".." || strings.HasPrefix(clean, "../")
}
