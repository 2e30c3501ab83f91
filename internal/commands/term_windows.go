//go:build windows

package commands

// watchResize is a no-op: Windows consoles do not signal size changes.
func watchResize(func()) func() {
	return func() {}
}
