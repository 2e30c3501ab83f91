package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hay-kot/enso/internal/core/shell"
	"github.com/hay-kot/enso/internal/terminal"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

type TermCmd struct {
	flags *Flags
	cwd   string
	kind  string
	env   []string
}

// NewTermCmd creates a new term command
func NewTermCmd(flags *Flags) *TermCmd {
	return &TermCmd{flags: flags}
}

// Register adds the term command to the application
func (cmd *TermCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "term",
		Usage:     "Open a terminal session",
		UsageText: "enso term [options] [-- command [args...]]",
		Description: `Starts a pseudo terminal session in --cwd and attaches it to this terminal.
Without a command the configured interactive shell is started. When the
session ends its whole process tree is torn down.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "cwd",
				Usage:       "working directory",
				Value:       ".",
				Destination: &cmd.cwd,
			},
			&cli.StringFlag{
				Name:        "shell",
				Usage:       "shell kind (system, custom, login)",
				Destination: &cmd.kind,
			},
			&cli.StringSliceFlag{
				Name:        "env",
				Aliases:     []string{"e"},
				Usage:       "extra environment variable as KEY=VALUE",
				Destination: &cmd.env,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *TermCmd) run(ctx context.Context, c *cli.Command) error {
	env, err := parseEnv(cmd.env)
	if err != nil {
		return err
	}

	sh := cmd.flags.Config.Shell
	if cmd.kind != "" {
		sh.Kind = shell.Kind(cmd.kind)
	}

	opts := terminal.CreateOptions{
		Cwd:     cmd.cwd,
		Shell:   sh,
		Command: c.Args().Slice(),
		Env:     env,
	}

	stdinFd := int(os.Stdin.Fd())
	interactive := term.IsTerminal(stdinFd)
	if cols, rows, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		opts.Cols, opts.Rows = uint16(cols), uint16(rows)
	}

	manager := cmd.flags.App.Terminals
	id, err := manager.Create(opts)
	if err != nil {
		return err
	}

	exited := make(chan *int, 1)
	unsubscribe, err := manager.Subscribe(id, terminal.ObserverFuncs{
		Data: func(_ string, data []byte) {
			_, _ = os.Stdout.Write(data)
		},
		Exit: func(_ string, code *int) {
			exited <- code
		},
	})
	if err != nil {
		return fmt.Errorf("attach terminal: %w", err)
	}
	defer unsubscribe()

	if interactive {
		state, err := term.MakeRaw(stdinFd)
		if err != nil {
			manager.Destroy(id)
			return fmt.Errorf("raw mode: %w", err)
		}
		defer func() { _ = term.Restore(stdinFd, state) }()
	}

	stopResize := watchResize(func() {
		cols, rows, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil {
			return
		}
		if err := manager.Resize(id, uint16(cols), uint16(rows)); err != nil {
			log.Debug().Err(err).Msg("resize failed")
		}
	})
	defer stopResize()

	go forwardInput(os.Stdin, manager, id)

	select {
	case code := <-exited:
		if code != nil && *code != 0 {
			return cli.Exit("", *code)
		}
		return nil
	case <-ctx.Done():
		manager.Destroy(id)
		return ctx.Err()
	}
}

// forwardInput copies r into the session until either side is gone.
func forwardInput(r io.Reader, manager *terminal.Manager, id string) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := manager.Write(id, buf[:n]); werr != nil {
				if !errors.Is(werr, terminal.ErrUnknownSession) {
					log.Debug().Err(werr).Msg("write failed")
				}
				return
			}
		}
		if err != nil {
			return
		}
	}
}
