//go:build linux

package proc

import (
	"os/exec"
	"syscall"
)

// SetProcessGroup puts the child of cmd in its own process group so KillTree
// reaches its descendants. Pdeathsig stops the child if this process dies
// without tearing it down.
func SetProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
