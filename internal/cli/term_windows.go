//go:build windows

package cli

import "golang.org/x/sys/windows"

// IsTerminal reports whether fd refers to a console with virtual terminal
// processing, so ANSI colors render.
func IsTerminal(fd uintptr) bool {
	var mode uint32
	if err := windows.GetConsoleMode(windows.Handle(fd), &mode); err != nil {
		return false
	}
	return mode&windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING != 0
}
