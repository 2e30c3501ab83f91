package commands

import (
	"context"
	"fmt"

	"github.com/hay-kot/enso/internal/core/git"
	"github.com/hay-kot/enso/internal/printer"
	"github.com/hay-kot/enso/internal/styles"
	"github.com/urfave/cli/v3"
)

type GitCmd struct {
	flags *Flags
	json  bool
}

// NewGitCmd creates a new git command
func NewGitCmd(flags *Flags) *GitCmd {
	return &GitCmd{flags: flags}
}

// Register adds the git command and its subcommands to the application
func (cmd *GitCmd) Register(app *cli.Command) *cli.Command {
	jsonFlag := &cli.BoolFlag{
		Name:        "json",
		Usage:       "print the result as JSON",
		Destination: &cmd.json,
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:  "git",
		Usage: "Inspect and create git working directories",
		Commands: []*cli.Command{
			{
				Name:      "status",
				Usage:     "Show the state of a working directory",
				UsageText: "enso git status [path]",
				Flags:     []cli.Flag{jsonFlag},
				Action:    cmd.status,
			},
			{
				Name:      "init",
				Usage:     "Create a repository",
				UsageText: "enso git init <path>",
				Action:    cmd.init,
			},
			{
				Name:      "clone",
				Usage:     "Clone a repository",
				UsageText: "enso git clone <url> [dest]",
				Action:    cmd.clone,
			},
		},
	})

	return app
}

type gitStatusJSON struct {
	Path          string           `json:"path"`
	Branch        string           `json:"branch"`
	DefaultBranch string           `json:"default_branch,omitempty"`
	Remote        string           `json:"remote,omitempty"`
	Clean         bool             `json:"clean"`
	Additions     int              `json:"additions"`
	Deletions     int              `json:"deletions"`
	Files         []git.FileStatus `json:"files"`
}

func (cmd *GitCmd) status(ctx context.Context, c *cli.Command) error {
	path := c.Args().First()
	if path == "" {
		path = "."
	}

	// only repositories enso created, or directories holding a .git entry
	wd, err := cmd.flags.App.Git.GetOrCreateContext(path)
	if err != nil {
		return err
	}

	files, err := wd.Status(ctx)
	if err != nil {
		return err
	}
	branch, err := wd.Branch(ctx)
	if err != nil {
		return err
	}

	out := gitStatusJSON{
		Path:   wd.Path(),
		Branch: branch,
		Clean:  len(files) == 0,
		Files:  files,
	}
	// a fresh repository has neither a remote nor a default branch
	out.DefaultBranch, _ = wd.DefaultBranch(ctx)
	out.Remote, _ = wd.RemoteURL(ctx)
	out.Additions, out.Deletions, _ = wd.DiffStats(ctx)

	if cmd.json {
		return writeJSON(c.Root().Writer, out)
	}

	p := printer.Ctx(ctx)
	p.Section(out.Path)
	p.CheckItem("Branch", out.Branch)
	if out.DefaultBranch != "" {
		p.CheckItem("Default branch", out.DefaultBranch)
	}
	if out.Remote != "" {
		p.CheckItem("Remote", out.Remote)
	}
	p.CheckItem("Changes", fmt.Sprintf("+%d -%d", out.Additions, out.Deletions))

	if out.Clean {
		p.Printf("")
		p.Printf("Working tree clean")
		return nil
	}

	t := styles.Table("INDEX", "WORKTREE", "PATH")
	for _, f := range files {
		name := f.Path
		if f.OrigPath != "" {
			name = f.OrigPath + " -> " + f.Path
		}
		t.Row(string(f.Index), string(f.Worktree), name)
	}
	_, _ = fmt.Fprintln(c.Root().Writer, t.Render())
	return nil
}

func (cmd *GitCmd) init(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one path")
	}

	wd, err := cmd.flags.App.Git.Init(ctx, c.Args().First())
	if err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("Initialized %s", wd.Path())
	return nil
}

func (cmd *GitCmd) clone(ctx context.Context, c *cli.Command) error {
	url := c.Args().Get(0)
	if url == "" || c.Args().Len() > 2 {
		return fmt.Errorf("expected a url and an optional destination")
	}

	dest := c.Args().Get(1)
	if dest == "" {
		dest = git.ExtractRepoName(url)
	}

	wd, err := cmd.flags.App.Git.Clone(ctx, url, dest)
	if err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("Cloned %s into %s", url, wd.Path())
	return nil
}
