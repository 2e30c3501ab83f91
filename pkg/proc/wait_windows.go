//go:build windows

package proc

import (
	"errors"
	"os/exec"
)

// Wait blocks until the child of cmd exits and returns its exit code. A
// descendant still holding the output pipes past cmd.WaitDelay does not
// turn a finished child into an error. err is only set when the wait
// itself failed.
func Wait(cmd *exec.Cmd) (int, error) {
	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), nil
	case errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil:
		return cmd.ProcessState.ExitCode(), nil
	}
	return -1, err
}

// WaitPTY waits for a child started by StartPTY. ConPTY creates the process
// itself, so the handle is waited on directly instead of through cmd.Wait.
func WaitPTY(cmd *exec.Cmd) (int, error) {
	state, err := cmd.Process.Wait()
	if err != nil {
		return -1, err
	}
	return state.ExitCode(), nil
}
