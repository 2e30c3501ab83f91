package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/hay-kot/enso/internal/core/shell"
	"github.com/hay-kot/enso/internal/printer"
	"github.com/urfave/cli/v3"
)

type ShellCmd struct {
	flags *Flags
	kind  string
	path  string
	login string
	json  bool
}

// NewShellCmd creates a new shell command
func NewShellCmd(flags *Flags) *ShellCmd {
	return &ShellCmd{flags: flags}
}

// Register adds the shell command to the application
func (cmd *ShellCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "shell",
		Usage:     "Show the resolved shell context",
		UsageText: "enso shell [options]",
		Description: `Prints the shell, arguments and PATH child processes are started with.
Without --kind the configured shell is used.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "kind",
				Usage:       "shell kind (system, custom, login)",
				Destination: &cmd.kind,
			},
			&cli.StringFlag{
				Name:        "path",
				Usage:       "shell executable for the custom and login kinds",
				Destination: &cmd.path,
			},
			&cli.StringFlag{
				Name:        "login",
				Usage:       "show how COMMAND would run through a login shell",
				Destination: &cmd.login,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the context as JSON",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})

	return app
}

type shellJSON struct {
	Executable string   `json:"executable"`
	Args       []string `json:"args"`
	Path       []string `json:"path"`
	Example    []string `json:"example"`
	Login      string   `json:"login,omitempty"`
}

func (cmd *ShellCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config.Shell
	if cmd.kind != "" {
		switch k := shell.Kind(cmd.kind); k {
		case shell.KindSystem, shell.KindCustom, shell.KindLogin:
			cfg = shell.Config{Kind: k, Path: cmd.path}
		default:
			return fmt.Errorf("unknown shell kind %q", cmd.kind)
		}
	}

	resolver := cmd.flags.App.Resolver
	sh := resolver.Resolve(cfg)

	out := shellJSON{
		Executable: sh.Executable,
		Args:       sh.Args,
		Path:       sh.PathEntries(),
		Example:    sh.Command("echo hello"),
	}
	if cmd.login != "" {
		out.Login = resolver.LoginCommand(cfg, cmd.login).Line
	}

	if cmd.json {
		return writeJSON(c.Root().Writer, out)
	}

	p := printer.Ctx(ctx)
	p.Section("Shell")
	p.CheckItem("Executable", out.Executable)
	p.CheckItem("Arguments", strings.Join(out.Args, " "))
	p.CheckItem("Example", strings.Join(out.Example, " "))
	if out.Login != "" {
		p.CheckItem("Login", out.Login)
	}

	p.Printf("")
	p.Section("PATH")
	for _, entry := range out.Path {
		p.Printf("  %s", entry)
	}
	return nil
}
