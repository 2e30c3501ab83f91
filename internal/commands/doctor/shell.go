package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hay-kot/enso/internal/core/shell"
)

// ShellCheck reports the shell commands and terminals will run through.
type ShellCheck struct {
	resolver *shell.Resolver
	cfg      shell.Config
	lookPath func(string) (string, error)
}

// NewShellCheck creates a new shell resolution check.
func NewShellCheck(resolver *shell.Resolver, cfg shell.Config) *ShellCheck {
	return &ShellCheck{resolver: resolver, cfg: cfg, lookPath: exec.LookPath}
}

func (c *ShellCheck) Name() string {
	return "Shell"
}

func (c *ShellCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	sc := c.resolver.Resolve(c.cfg)

	item := CheckItem{
		Label:  "Command shell",
		Status: StatusPass,
		Detail: strings.Join(sc.Command("<command>"), " "),
	}
	if _, err := c.lookPath(sc.Executable); err != nil {
		item.Status = StatusFail
		item.Detail = fmt.Sprintf("%s not runnable: %v", sc.Executable, err)
	}
	result.Items = append(result.Items, item)

	if c.cfg.Kind == shell.KindCustom && sc.Executable != c.cfg.Path {
		result.Items = append(result.Items, CheckItem{
			Label:  "Custom shell",
			Status: StatusWarn,
			Detail: fmt.Sprintf("%s not found, using %s", c.cfg.Path, sc.Executable),
		})
	}

	entries := sc.PathEntries()
	result.Items = append(result.Items, CheckItem{
		Label:  "PATH",
		Status: StatusPass,
		Detail: fmt.Sprintf("%d entries: %s", len(entries), strings.Join(sc.PathPreview(8), ", ")),
	})

	return result
}
