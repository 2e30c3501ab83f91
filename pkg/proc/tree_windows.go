//go:build windows

package proc

import (
	"errors"
	"os/exec"
	"strconv"
)

// taskkill exits with 128 when the pid does not exist.
const taskkillNotFound = 128

func killTree(pid int, sig Signal) error {
	args := []string{"/T", "/PID", strconv.Itoa(pid)}
	if sig == Kill {
		args = append([]string{"/F"}, args...)
	}

	err := exec.Command("taskkill", args...).Run()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == taskkillNotFound {
		return nil
	}
	return err
}
