package terminal

import (
	"os/exec"

	"github.com/hay-kot/enso/pkg/proc"
)

// Process is a child attached to a pseudo terminal.
type Process interface {
	PID() int
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Resize(cols, rows uint16) error
	// Wait blocks until the child exits and returns its exit code.
	Wait() (int, error)
	// Close releases the pseudo terminal. It does not signal the child.
	Close() error
}

// Spawner starts argv in dir with env attached to a pseudo terminal of the
// given size.
type Spawner func(argv []string, dir string, env []string, cols, rows uint16) (Process, error)

// SpawnPTY is the Spawner backed by real pseudo terminals.
func SpawnPTY(argv []string, dir string, env []string, cols, rows uint16) (Process, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env

	h, err := proc.StartPTY(cmd, cols, rows)
	if err != nil {
		return nil, err
	}
	return &ptyProcess{cmd: cmd, h: h}, nil
}

type ptyProcess struct {
	cmd *exec.Cmd
	h   proc.Handle
}

func (p *ptyProcess) PID() int                       { return p.cmd.Process.Pid }
func (p *ptyProcess) Read(b []byte) (int, error)     { return p.h.Read(b) }
func (p *ptyProcess) Write(b []byte) (int, error)    { return p.h.Write(b) }
func (p *ptyProcess) Resize(cols, rows uint16) error { return p.h.Resize(cols, rows) }
func (p *ptyProcess) Wait() (int, error)             { return proc.WaitPTY(p.cmd) }
func (p *ptyProcess) Close() error                   { return p.h.Close() }
