//go:build !linux
// +build !linux

package server

import "os"

// processCwdResolver is the fallback for platforms without procfs: file
// operations just happen relative to the server process's own cwd, which
// tracks the shell only through explicit cd commands.
type processCwdResolver struct{}

func newShellCwdResolver(shellPid int) ShellCwdResolver {
	return processCwdResolver{}
}

func (processCwdResolver) ShellCwd() (string, error) {
	return os.Getwd()
}
