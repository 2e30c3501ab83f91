//go:build !windows

package proc

import (
	"errors"

	"golang.org/x/sys/unix"
)

func killTree(pid int, sig Signal) error {
	s := unix.SIGTERM
	if sig == Kill {
		s = unix.SIGKILL
	}

	err := unix.Kill(-pid, s)
	if errors.Is(err, unix.ESRCH) {
		// not a group leader; fall back to the process itself
		err = unix.Kill(pid, s)
	}
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
