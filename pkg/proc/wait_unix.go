//go:build !windows

package proc

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// Wait blocks until the child of cmd exits and returns its exit code. A
// child killed by a signal reports 128+signal. A descendant still holding
// the output pipes past cmd.WaitDelay does not turn a finished child into
// an error. err is only set when the wait itself failed.
func Wait(cmd *exec.Cmd) (int, error) {
	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		return exitCode(exitErr.ProcessState), nil
	case errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil:
		return exitCode(cmd.ProcessState), nil
	}
	return -1, err
}

func exitCode(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// WaitPTY waits for a child started by StartPTY.
func WaitPTY(cmd *exec.Cmd) (int, error) {
	return Wait(cmd)
}
