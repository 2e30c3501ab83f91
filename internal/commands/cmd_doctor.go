package commands

import (
	"context"

	"github.com/hay-kot/enso/internal/commands/doctor"
	"github.com/hay-kot/enso/internal/printer"
	"github.com/hay-kot/enso/internal/store/jsonfile"
	"github.com/hay-kot/enso/internal/styles"
	"github.com/urfave/cli/v3"
)

type DoctorCmd struct {
	flags  *Flags
	format string
	fix    bool
}

func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your enso setup",
		UsageText:   "enso doctor [options]",
		Description: "Runs diagnostic checks on configuration, shell, git, agent CLIs and temporary workspaces.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "fix",
				Usage:       "delete orphaned workspace directories and stale records",
				Destination: &cmd.fix,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	var (
		cfg = cmd.flags.Config
		app = cmd.flags.App
	)

	base, err := app.Workspaces.ResolveBase("")
	if err != nil {
		return err
	}

	checks := []doctor.Check{
		doctor.NewConfigCheck(cfg, cmd.flags.ConfigPath),
		doctor.NewShellCheck(app.Resolver, cfg.Shell),
		doctor.NewGitCheck(app.Git.Git(), cfg.GitPath),
		doctor.NewAgentsCheck(app.Detector, cfg.Agents.Custom),
		doctor.NewWorkspaceCheck(jsonfile.New(cfg.WorkspacesFile()), base, cmd.fix),
	}

	results := doctor.RunAll(ctx, checks)

	if cmd.format == "json" {
		return cmd.outputJSON(c, results)
	}

	return cmd.outputText(ctx, results)
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, results []doctor.Result) error {
	passed, warned, failed := doctor.Summary(results)

	out := struct {
		Healthy bool            `json:"healthy"`
		Summary summaryJSON     `json:"summary"`
		Checks  []doctor.Result `json:"checks"`
	}{
		Healthy: failed == 0,
		Summary: summaryJSON{Passed: passed, Warned: warned, Failed: failed, Fixable: doctor.CountFixable(results)},
		Checks:  results,
	}

	if err := writeJSON(c.Root().Writer, out); err != nil {
		return err
	}
	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

type summaryJSON struct {
	Passed  int `json:"passed"`
	Warned  int `json:"warned"`
	Failed  int `json:"failed"`
	Fixable int `json:"fixable"`
}

func (cmd *DoctorCmd) outputText(ctx context.Context, results []doctor.Result) error {
	p := printer.Ctx(ctx)
	p.Printf("%s\n", styles.BannerStyle.Render(styles.Banner))

	for _, result := range results {
		p.Section(result.Name)

		for _, item := range result.Items {
			switch item.Status {
			case doctor.StatusPass:
				p.CheckItem(item.Label, item.Detail)
			case doctor.StatusWarn:
				p.WarnItem(item.Label, item.Detail)
			case doctor.StatusFail:
				p.FailItem(item.Label, item.Detail)
			}
		}

		p.Printf("")
	}

	passed, warned, failed := doctor.Summary(results)
	p.Printf("Summary: %d passed, %d warnings, %d failed", passed, warned, failed)

	if n := doctor.CountFixable(results); n > 0 && !cmd.fix {
		p.Printf("%d issue(s) can be fixed with 'enso doctor --fix'", n)
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}

	return nil
}
