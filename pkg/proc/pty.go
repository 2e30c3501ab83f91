// Package proc contains the platform specific process primitives: pseudo
// terminals, process groups and process tree teardown.
package proc

import (
	"fmt"
	"io"
	"os/exec"
)

// Handle is a started pseudo terminal. On Unix it wraps the PTY master from
// creack/pty, on Windows a ConPTY pseudo console.
type Handle interface {
	io.ReadWriteCloser
	// Resize changes the window size seen by the child.
	Resize(cols, rows uint16) error
}

// StartPTY starts cmd attached to a new pseudo terminal of the given size.
// After a successful call cmd.Process is set on every platform.
func StartPTY(cmd *exec.Cmd, cols, rows uint16) (Handle, error) {
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}

	h, err := startPTY(cmd, cols, rows)
	if err != nil {
		return nil, fmt.Errorf("start pty %s: %w", cmd.Path, err)
	}
	return h, nil
}
