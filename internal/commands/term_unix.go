//go:build !windows

package commands

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// watchResize calls fn whenever the controlling terminal changes size.
func watchResize(fn func()) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGWINCH)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				fn()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
