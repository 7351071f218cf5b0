//go:build linux
// +build linux

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// procCwdResolver reads the shell's cwd out of procfs. The shell is the
// direct child we started under the pty, so its pid is known up front. When
// that shell has exactly one child that is itself a shell, the child's cwd
// is read instead (see foregroundDescendant).
type procCwdResolver struct {
	pid int
}

func newShellCwdResolver(shellPid int) ShellCwdResolver {
	return &procCwdResolver{pid: shellPid}
}

func (r *procCwdResolver) ShellCwd() (string, error) {
	pid := r.foregroundDescendant()
	return os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid))
}

// foregroundDescendant walks one level down from the shell: when the shell
// has exactly one child (say a subshell the user started), that child's cwd
// is the one the user is looking at.
func (r *procCwdResolver) foregroundDescendant() int {
	children, err := os.ReadFile(fmt.Sprintf("/proc/%d/task/%d/children", r.pid, r.pid))
	if err != nil {
		return r.pid
	}
	fields := strings.Fields(string(children))
	if len(fields) != 1 {
		return r.pid
	}
	childPid := strings.TrimSpace(fields[0])
	// only follow a child that is itself a shell; a running `sleep` or
	// `vi` keeps the cwd of the shell that launched it
	comm, err := os.ReadFile(filepath.Join("/proc", childPid, "comm"))
	if err != nil || !strings.Contains(string(comm), "sh") {
		return r.pid
	}
	pid := r.pid
	fmt.Sscanf(childPid, "%d", &pid)
	return pid
}
