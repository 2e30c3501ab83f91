//go:build unix && !linux

package proc

import (
	"os/exec"
	"syscall"
)

// SetProcessGroup puts the child of cmd in its own process group so KillTree
// reaches its descendants.
func SetProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
