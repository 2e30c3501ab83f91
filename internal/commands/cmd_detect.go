package commands

import (
	"context"
	"fmt"

	"github.com/hay-kot/enso/internal/core/agent"
	"github.com/hay-kot/enso/internal/detect"
	"github.com/hay-kot/enso/internal/printer"
	"github.com/hay-kot/enso/internal/styles"
	"github.com/urfave/cli/v3"
)

type DetectCmd struct {
	flags    *Flags
	force    bool
	wrappers bool
	json     bool
}

// NewDetectCmd creates a new detect command
func NewDetectCmd(flags *Flags) *DetectCmd {
	return &DetectCmd{flags: flags}
}

// Register adds the detect command to the application
func (cmd *DetectCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "detect",
		Usage:     "Detect installed agent CLIs",
		UsageText: "enso detect [options] [agent-id]",
		Description: `Probes every builtin and custom agent CLI by running its version command
through the configured shell. An agent that does not answer in time is
reported as timed out, which is not the same as missing.

Set ENSO_DEBUG_CLI_DETECT=1 to print detection diagnostics as they happen.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "force",
				Aliases:     []string{"f"},
				Usage:       "ignore cached results",
				Destination: &cmd.force,
			},
			&cli.BoolFlag{
				Name:        "wrappers",
				Usage:       "also detect the hapi and happy wrappers",
				Destination: &cmd.wrappers,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print results as JSON",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *DetectCmd) run(ctx context.Context, c *cli.Command) error {
	app := cmd.flags.App
	opts := detect.Options{ForceRefresh: cmd.force}

	stop := cmd.mirrorDiagnostics(ctx)

	var results []agent.Result
	if id := c.Args().First(); id != "" {
		results = []agent.Result{app.Detector.DetectOne(ctx, id, cmd.findCustom(id), opts)}
	} else {
		results = app.Detector.DetectAll(ctx, cmd.flags.Config.Agents.Custom, opts)
	}

	if cmd.wrappers {
		results = append(results, app.Wrappers.DetectAll(ctx, opts)...)
	}

	stop()

	if cmd.json {
		return writeJSON(c.Root().Writer, results)
	}

	t := styles.Table("AGENT", "ID", "STATUS", "VERSION", "SOURCE")
	for _, r := range results {
		t.Row(r.DisplayName, r.ID, status(r), r.Version, source(r))
	}
	_, _ = fmt.Fprintln(c.Root().Writer, t.Render())

	if p := app.Diagnostics.Path(); p != "" && anyFailed(results) {
		printer.Ctx(ctx).Infof("Failures are logged to %s", p)
	}
	return nil
}

// mirrorDiagnostics prints diagnostic records while detection runs when
// ENSO_DEBUG_CLI_DETECT is set. The returned function stops and drains.
func (cmd *DetectCmd) mirrorDiagnostics(ctx context.Context) func() {
	diag := cmd.flags.App.Diagnostics
	if !diag.Mirroring() {
		return func() {}
	}

	records, unsubscribe := diag.Subscribe(64)
	done := make(chan struct{})
	p := printer.Ctx(ctx)
	go func() {
		defer close(done)
		for r := range records {
			p.Warnf("%s [%s] %s %s", r.Details.AgentID, r.Details.Phase, r.Message, r.Details.Error)
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}

func (cmd *DetectCmd) findCustom(id string) *agent.CustomAgent {
	for _, a := range cmd.flags.Config.Agents.Custom {
		if agent.CustomID(a.ID) == agent.CustomID(id) {
			return &a
		}
	}
	return nil
}

func status(r agent.Result) string {
	switch {
	case r.Installed:
		return styles.OKStyle.Render("installed")
	case r.TimedOut:
		return styles.WarnStyle.Render("timed out")
	default:
		return styles.DimStyle.Render("not found")
	}
}

func source(r agent.Result) string {
	if !r.Installed {
		return ""
	}
	s := string(r.Environment)
	if r.Probe == agent.ProbePresence {
		s += " (on PATH)"
	}
	return s
}

func anyFailed(results []agent.Result) bool {
	for _, r := range results {
		if !r.Installed {
			return true
		}
	}
	return false
}
