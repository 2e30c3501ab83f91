package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/enso/internal/commands"
	"github.com/hay-kot/enso/internal/core/config"
	"github.com/hay-kot/enso/internal/detect"
	"github.com/hay-kot/enso/internal/enso"
	"github.com/hay-kot/enso/internal/printer"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

// closeTimeout bounds how long terminal teardown may delay exit.
const closeTimeout = 10 * time.Second

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	if err := setupLogger("info", ""); err != nil {
		panic(err)
	}

	var (
		p     = printer.New(os.Stderr)
		ctx   = printer.NewContext(context.Background(), p)
		flags = &commands.Flags{}
	)

	app := &cli.Command{
		Name:      "enso",
		Usage:     "Run and inspect the tools behind your agent workspaces",
		UsageText: "enso [global options] command [command options]",
		Description: `Enso resolves the shell your tools run in, detects which agent CLIs are
installed, runs terminal sessions and manages temporary git workspaces.

Run 'enso doctor' to check your setup.`,
		Version: build(),
		// exit codes are handled below so the App is always closed
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("ENSO_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (optional)",
				Sources:     cli.EnvVars("ENSO_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("ENSO_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("ENSO_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := setupLogger(flags.LogLevel, flags.LogFile); err != nil {
				return ctx, err
			}

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			flags.App = enso.New(cfg, log.Logger, enso.Options{
				Packaged: version != "dev",
				Debug:    detect.DebugEnabled(os.Getenv),
				Stdout:   os.Stdout,
				Stderr:   os.Stderr,
			})

			// a missing git only matters to the git and workspace commands
			_, _ = flags.App.CheckGit(ctx)
			return ctx, nil
		},
	}

	app = commands.NewDetectCmd(flags).Register(app)
	app = commands.NewShellCmd(flags).Register(app)
	app = commands.NewTermCmd(flags).Register(app)
	app = commands.NewGitCmd(flags).Register(app)
	app = commands.NewWorkspaceCmd(flags).Register(app)
	app = commands.NewDoctorCmd(flags).Register(app)

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		exitCode = 1
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if err.Error() != "" {
			fmt.Println()
			printer.Ctx(ctx).FatalError(err)
		}
	}

	if flags.App != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := flags.App.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown incomplete")
		}
		cancel()
	}

	os.Exit(exitCode)
}

func setupLogger(level string, logFile string) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}

	if logFile != "" {
		// Create log directory if it doesn't exist
		logDir := filepath.Dir(logFile)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		output = io.MultiWriter(
			zerolog.ConsoleWriter{Out: os.Stderr},
			file,
		)
	}

	log.Logger = log.Output(output).Level(parsedLevel)

	return nil
}
