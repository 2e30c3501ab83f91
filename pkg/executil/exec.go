// Package executil runs external commands: the Executor used for git and
// the timeout enforcing Runner used for probes.
package executil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// Executor runs commands whose lifetime is bound to ctx.
type Executor interface {
	// Run executes a command and returns its combined output.
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
	// RunDir executes a command in a specific directory.
	RunDir(ctx context.Context, dir, cmd string, args ...string) ([]byte, error)
	// RunStream executes a command and streams stdout/stderr to the provided writers.
	RunStream(ctx context.Context, stdout, stderr io.Writer, cmd string, args ...string) error
	// RunDirStream executes a command in a specific directory and streams output.
	RunDirStream(ctx context.Context, dir string, stdout, stderr io.Writer, cmd string, args ...string) error
}

// RealExecutor calls actual commands.
type RealExecutor struct {
	// Env replaces the inherited environment when non-nil, typically with
	// the enhanced PATH from the shell resolver.
	Env []string
}

func (e *RealExecutor) command(ctx context.Context, dir, cmd string, args []string) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd, args...)
	c.Dir = dir
	if e.Env != nil {
		c.Env = e.Env
	}
	return c
}

// wrap adds the command to err and turns a non-zero exit into *ExitError
// carrying out.
func wrap(err error, out []byte, dir, cmd string) error {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		err = &ExitError{Code: ee.ExitCode(), Output: string(out)}
	}
	if dir == "" {
		return fmt.Errorf("exec %s: %w", cmd, err)
	}
	return fmt.Errorf("exec %s in %s: %w", cmd, dir, err)
}

// Run executes a command and returns its combined output.
func (e *RealExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	return e.RunDir(ctx, "", cmd, args...)
}

// RunDir executes a command in a specific directory.
func (e *RealExecutor) RunDir(ctx context.Context, dir, cmd string, args ...string) ([]byte, error) {
	out, err := e.command(ctx, dir, cmd, args).CombinedOutput()
	if err != nil {
		return out, wrap(err, out, dir, cmd)
	}
	return out, nil
}

// RunStream executes a command and streams stdout/stderr to the provided writers.
func (e *RealExecutor) RunStream(ctx context.Context, stdout, stderr io.Writer, cmd string, args ...string) error {
	return e.RunDirStream(ctx, "", stdout, stderr, cmd, args...)
}

// RunDirStream executes a command in a specific directory and streams output.
func (e *RealExecutor) RunDirStream(ctx context.Context, dir string, stdout, stderr io.Writer, cmd string, args ...string) error {
	c := e.command(ctx, dir, cmd, args)
	c.Stdout = stdout
	c.Stderr = stderr
	if err := c.Run(); err != nil {
		return wrap(err, nil, dir, cmd)
	}
	return nil
}
