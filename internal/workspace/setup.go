package workspace

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hay-kot/enso/internal/core/config"
	"github.com/hay-kot/enso/internal/core/shell"
	"github.com/hay-kot/enso/internal/styles"
	"github.com/hay-kot/enso/pkg/executil"
	"github.com/hay-kot/enso/pkg/proc"
	"github.com/hay-kot/enso/pkg/tmpl"
	"github.com/rs/zerolog"
)

// SetupRunner runs the configured setup commands inside a new workspace
// through the command shell.
type SetupRunner struct {
	log      zerolog.Logger
	executor executil.Executor
	shell    shell.Context
	stdout   io.Writer
	stderr   io.Writer
	seeder   *Seeder
}

// NewSetupRunner creates a new SetupRunner.
func NewSetupRunner(log zerolog.Logger, executor executil.Executor, sc shell.Context, stdout, stderr io.Writer) *SetupRunner {
	return &SetupRunner{
		log:      log,
		executor: executor,
		shell:    sc,
		stdout:   stdout,
		stderr:   stderr,
		seeder:   NewSeeder(log, stdout),
	}
}

// Seed copies the files matching patterns from src into the workspace.
func (r *SetupRunner) Seed(ctx context.Context, patterns []string, src string, data config.SetupTemplateData) error {
	return r.seeder.Seed(ctx, patterns, src, data.Path)
}

// Run renders and executes commands in data.Path, stopping at the first
// failure.
func (r *SetupRunner) Run(ctx context.Context, commands []string, data config.SetupTemplateData) error {
	for i, raw := range commands {
		line, err := tmpl.Render(raw, data, tmpl.WithQuoter(r.quoter()))
		if err != nil {
			return fmt.Errorf("render setup command %d: %w", i, err)
		}

		r.printCommandHeader(i+1, len(commands), line)

		argv := r.shell.Command(line)
		r.log.Debug().Str("dir", data.Path).Strs("argv", argv).Msg("running setup command")

		if err := r.executor.RunDirStream(ctx, data.Path, r.stdout, r.stderr, argv[0], argv[1:]...); err != nil {
			return fmt.Errorf("run setup command %q: %w", line, err)
		}
	}

	return nil
}

// quoter matches the q template function to the shell running the commands.
func (r *SetupRunner) quoter() tmpl.Quoter {
	switch shell.FamilyOf(r.shell.Executable) {
	case shell.FamilyPowerShell:
		return proc.QuotePowerShell
	case shell.FamilyCmd:
		return proc.QuoteWindows
	default:
		return proc.QuotePOSIX
	}
}

func (r *SetupRunner) printCommandHeader(cmdNum, totalCmds int, cmd string) {
	if r.stdout == nil {
		return
	}

	divider := styles.DividerStyle.Render(strings.Repeat("─", 50))
	header := styles.CommandHeaderStyle.Render("setup")
	cmdLabel := styles.DividerStyle.Render(fmt.Sprintf("[%d/%d]", cmdNum, totalCmds))
	command := styles.CommandStyle.Render(cmd)

	_, _ = fmt.Fprintln(r.stdout, divider)
	_, _ = fmt.Fprintf(r.stdout, "%s %s %s\n", header, cmdLabel, command)
	_, _ = fmt.Fprintln(r.stdout, divider)
}
