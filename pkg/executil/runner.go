package executil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/hay-kot/enso/pkg/proc"
	"github.com/rs/zerolog"
)

const (
	// DefaultKillGrace is how long a timed out tree gets between the
	// terminate and kill signals.
	DefaultKillGrace = 500 * time.Millisecond

	ptyDrain = 250 * time.Millisecond
)

// RunOptions configures a single Runner invocation.
type RunOptions struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is the full child environment. Nil inherits the current process
	// environment.
	Env []string
	// Timeout bounds the whole run and must be positive.
	Timeout time.Duration
	// PTY runs the command attached to a pseudo terminal so tools that
	// check isatty behave as if interactive. Stdout and stderr are merged.
	PTY bool
	// Cols and Rows size the pseudo terminal. Zero means 80x24.
	Cols, Rows uint16
}

// Runner runs one command to completion.
type Runner interface {
	// Run executes argv and returns its stdout. It fails with a *SpawnError
	// when argv[0] cannot be launched, an *ExitError on a non-zero exit and
	// an error wrapping ErrTimeout when the timeout expired.
	Run(ctx context.Context, argv []string, opts RunOptions) (string, error)
}

// ProcessRunner is the Runner backed by real child processes. Every child
// gets its own process group so a timeout tears down its descendants too.
type ProcessRunner struct {
	log zerolog.Logger

	// KillGrace overrides DefaultKillGrace.
	KillGrace time.Duration
}

// NewProcessRunner returns a ProcessRunner that logs teardown activity to log.
func NewProcessRunner(log zerolog.Logger) *ProcessRunner {
	return &ProcessRunner{
		log:       log.With().Str("component", "runner").Logger(),
		KillGrace: DefaultKillGrace,
	}
}

type waitResult struct {
	code int
	err  error
}

// Run implements Runner.
func (r *ProcessRunner) Run(ctx context.Context, argv []string, opts RunOptions) (string, error) {
	if len(argv) == 0 || argv[0] == "" {
		return "", &SpawnError{Err: errors.New("empty command")}
	}
	if opts.Timeout <= 0 {
		return "", fmt.Errorf("run %s: timeout must be positive", argv[0])
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	// not CommandContext: cancellation must reach the whole tree, not just
	// the direct child
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	if opts.PTY {
		return r.runPTY(ctx, cmd, opts)
	}
	return r.runPipe(ctx, cmd)
}

func (r *ProcessRunner) runPipe(ctx context.Context, cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.grace()
	proc.SetProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return "", &SpawnError{Path: cmd.Path, Err: err}
	}

	done := make(chan waitResult, 1)
	go func() {
		code, err := proc.Wait(cmd)
		done <- waitResult{code: code, err: err}
	}()

	res, err := r.await(ctx, cmd, done)
	if err != nil {
		return "", err
	}
	return finish(cmd, res, stdout.String(), stderr.String())
}

func (r *ProcessRunner) runPTY(ctx context.Context, cmd *exec.Cmd, opts RunOptions) (string, error) {
	h, err := proc.StartPTY(cmd, opts.Cols, opts.Rows)
	if err != nil {
		return "", &SpawnError{Path: cmd.Path, Err: err}
	}

	closePTY := sync.OnceFunc(func() { _ = h.Close() })

	var out bytes.Buffer
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_, _ = io.Copy(&out, h)
	}()

	done := make(chan waitResult, 1)
	go func() {
		code, err := proc.WaitPTY(cmd)
		// give the reader a moment to drain what the child wrote before it
		// exited, then unblock it
		select {
		case <-readDone:
		case <-time.After(ptyDrain):
		}
		closePTY()
		<-readDone
		done <- waitResult{code: code, err: err}
	}()

	res, err := r.await(ctx, cmd, done)
	if err != nil {
		closePTY()
		return "", err
	}
	return finish(cmd, res, out.String(), "")
}

// await waits for the child or tears its tree down once ctx is done.
func (r *ProcessRunner) await(ctx context.Context, cmd *exec.Cmd, done <-chan waitResult) (waitResult, error) {
	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
	}

	pid := cmd.Process.Pid
	r.log.Debug().Int("pid", pid).Str("cmd", cmd.Path).Msg("deadline reached, tearing down process tree")

	if err := proc.KillTree(pid, proc.Terminate); err != nil {
		r.log.Debug().Err(err).Int("pid", pid).Msg("terminate failed")
	}
	select {
	case <-done:
	case <-time.After(r.grace()):
		if err := proc.KillTree(pid, proc.Kill); err != nil {
			r.log.Warn().Err(err).Int("pid", pid).Msg("kill failed")
		}
		select {
		case <-done:
		case <-time.After(r.grace()):
			r.log.Warn().Int("pid", pid).Msg("process not reaped after kill")
		}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return waitResult{}, fmt.Errorf("run %s: %w", cmd.Path, ErrTimeout)
	}
	return waitResult{}, fmt.Errorf("run %s: %w", cmd.Path, ctx.Err())
}

func (r *ProcessRunner) grace() time.Duration {
	if r.KillGrace <= 0 {
		return DefaultKillGrace
	}
	return r.KillGrace
}

func finish(cmd *exec.Cmd, res waitResult, stdout, stderr string) (string, error) {
	if res.err != nil {
		return stdout, fmt.Errorf("wait %s: %w", cmd.Path, res.err)
	}
	if res.code != 0 {
		return stdout, &ExitError{Code: res.code, Output: stdout, Stderr: stderr}
	}
	return stdout, nil
}
