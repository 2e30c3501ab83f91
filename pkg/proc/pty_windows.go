//go:build windows

package proc

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/UserExistsError/conpty"
)

type windowsPTY struct {
	cpty *conpty.ConPty
}

func (p *windowsPTY) Read(b []byte) (int, error)  { return p.cpty.Read(b) }
func (p *windowsPTY) Write(b []byte) (int, error) { return p.cpty.Write(b) }
func (p *windowsPTY) Close() error                { return p.cpty.Close() }

func (p *windowsPTY) Resize(cols, rows uint16) error {
	return p.cpty.Resize(int(cols), int(rows))
}

// startPTY hands process creation to ConPTY, then looks the child up so
// callers can Wait on cmd.Process like on Unix.
func startPTY(cmd *exec.Cmd, cols, rows uint16) (Handle, error) {
	line := JoinWindows(cmd.Args)
	if len(cmd.Args) == 0 {
		line = QuoteWindows(cmd.Path)
	}

	opts := []conpty.ConPtyOption{conpty.ConPtyDimensions(int(cols), int(rows))}
	if cmd.Dir != "" {
		opts = append(opts, conpty.ConPtyWorkDir(cmd.Dir))
	}
	if cmd.Env != nil {
		opts = append(opts, conpty.ConPtyEnv(cmd.Env))
	}

	cpty, err := conpty.Start(line, opts...)
	if err != nil {
		return nil, err
	}

	pid := cpty.Pid()
	p, err := os.FindProcess(int(pid))
	if err != nil {
		_ = cpty.Close()
		return nil, fmt.Errorf("find conpty process %d: %w", pid, err)
	}
	cmd.Process = p

	return &windowsPTY{cpty: cpty}, nil
}
