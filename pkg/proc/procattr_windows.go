//go:build windows

package proc

import (
	"os/exec"
	"syscall"
)

// SetProcessGroup starts the child of cmd in a new process group.
func SetProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
