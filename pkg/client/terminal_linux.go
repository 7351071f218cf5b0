//go:build linux
// +build linux

package client

import (
	"golang.org/x/sys/unix"
)

// keepPostProcessing re-enables output post-processing after the terminal
// has been put into raw mode, so that \n still expands to \r\n on the way
// out
func keepPostProcessing(fd uintptr) error {
	termios, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	if err != nil {
		return err
	}
	termios.Oflag |= unix.OPOST | unix.ONLCR
	return unix.IoctlSetTermios(int(fd), unix.TCSETS, termios)
}
