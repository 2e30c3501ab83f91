package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/enso/internal/printer"
	"github.com/hay-kot/enso/internal/styles"
	"github.com/hay-kot/enso/internal/workspace"
	"github.com/urfave/cli/v3"
)

type WorkspaceCmd struct {
	flags *Flags
	json  bool
	from  string
}

// NewWorkspaceCmd creates a new workspace command
func NewWorkspaceCmd(flags *Flags) *WorkspaceCmd {
	return &WorkspaceCmd{flags: flags}
}

// Register adds the workspace command and its subcommands to the application
func (cmd *WorkspaceCmd) Register(app *cli.Command) *cli.Command {
	jsonFlag := &cli.BoolFlag{
		Name:        "json",
		Usage:       "print the result as JSON",
		Destination: &cmd.json,
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:    "workspace",
		Aliases: []string{"ws"},
		Usage:   "Manage temporary workspaces",
		Description: `Temporary workspaces are throwaway git repositories named after their
creation time. They live under workspace.base_dir, ~/ensoai/temporary by
default.`,
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a workspace",
				UsageText: "enso workspace create [options] [base-dir]",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.StringFlag{
						Name:        "from",
						Usage:       "copy the workspace.copy patterns from this directory",
						Destination: &cmd.from,
					},
				},
				Action:    cmd.create,
			},
			{
				Name:      "rm",
				Usage:     "Remove a workspace and every terminal inside it",
				UsageText: "enso workspace rm <path>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    cmd.remove,
			},
			{
				Name:      "ls",
				Usage:     "List workspaces",
				UsageText: "enso workspace ls",
				Flags:     []cli.Flag{jsonFlag},
				Action:    cmd.list,
			},
			{
				Name:      "check",
				Usage:     "Check that a base directory is writable",
				UsageText: "enso workspace check [base-dir]",
				Flags:     []cli.Flag{jsonFlag},
				Action:    cmd.check,
			},
		},
	})

	return app
}

type workspaceResultJSON struct {
	OK    bool             `json:"ok"`
	Path  string           `json:"path,omitempty"`
	Error *workspace.Error `json:"error,omitempty"`
}

// report prints the outcome of a workspace operation. In JSON mode a
// failure is part of the document and the command still exits non-zero.
func (cmd *WorkspaceCmd) report(c *cli.Command, path string, err error) error {
	if !cmd.json {
		return err
	}

	out := workspaceResultJSON{OK: err == nil, Path: path}
	if err != nil {
		var we *workspace.Error
		if !errors.As(err, &we) {
			we = &workspace.Error{Code: workspace.CodeOf(err), Message: err.Error()}
		}
		out.Error = we
	}
	if werr := writeJSON(c.Root().Writer, out); werr != nil {
		return werr
	}
	if err != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *WorkspaceCmd) create(ctx context.Context, c *cli.Command) error {
	item, err := cmd.flags.App.Workspaces.CreateFrom(ctx, c.Args().First(), cmd.from)
	if err != nil {
		return cmd.report(c, "", err)
	}
	if cmd.json {
		return writeJSON(c.Root().Writer, item)
	}
	printer.Ctx(ctx).Success("Workspace created", item.Path)
	return nil
}

func (cmd *WorkspaceCmd) remove(ctx context.Context, c *cli.Command) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("expected a workspace path")
	}

	err := cmd.flags.App.Workspaces.Remove(ctx, path)
	if err != nil || cmd.json {
		return cmd.report(c, path, err)
	}
	printer.Ctx(ctx).Success("Workspace removed", path)
	return nil
}

func (cmd *WorkspaceCmd) list(ctx context.Context, c *cli.Command) error {
	items, err := cmd.flags.App.Workspaces.List(ctx)
	if err != nil {
		return err
	}
	if cmd.json {
		return writeJSON(c.Root().Writer, items)
	}
	if len(items) == 0 {
		printer.Ctx(ctx).Infof("No workspaces")
		return nil
	}

	t := styles.Table("NAME", "CREATED", "PATH")
	for _, item := range items {
		t.Row(item.Title, item.CreatedAt.Local().Format("2006-01-02 15:04"), item.Path)
	}
	_, _ = fmt.Fprintln(c.Root().Writer, t.Render())
	return nil
}

func (cmd *WorkspaceCmd) check(ctx context.Context, c *cli.Command) error {
	svc := cmd.flags.App.Workspaces
	base, err := svc.ResolveBase(c.Args().First())
	if err == nil {
		err = svc.Check(base)
	}
	if err != nil || cmd.json {
		return cmd.report(c, base, err)
	}
	printer.Ctx(ctx).Success("Writable", base)
	return nil
}
