package proc

import "fmt"

// Signal is the strength of a process tree teardown.
type Signal int

const (
	// Terminate asks the tree to exit (SIGTERM, or taskkill without /F).
	Terminate Signal = iota
	// Kill forces the tree down (SIGKILL, or taskkill /F).
	Kill
)

func (s Signal) String() string {
	switch s {
	case Terminate:
		return "terminate"
	case Kill:
		return "kill"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// KillTree signals pid and every process it spawned. On POSIX the child must
// lead its own process group (see SetProcessGroup and StartPTY); on Windows
// the tree is walked by taskkill. A tree that is already gone is not an
// error.
func KillTree(pid int, sig Signal) error {
	if pid <= 0 {
		return fmt.Errorf("kill tree: invalid pid %d", pid)
	}
	if err := killTree(pid, sig); err != nil {
		return fmt.Errorf("kill tree %d (%s): %w", pid, sig, err)
	}
	return nil
}
