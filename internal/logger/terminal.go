//go:build !windows && !linux

package logger

import "golang.org/x/sys/unix"

// isTerminal reports whether fd refers to a terminal on Darwin and the
// BSDs, which expose termios through TIOCGETA rather than TCGETS.
func isTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TIOCGETA)
	return err == nil
}
