//go:build !windows

package exec

import (
	"os/exec"
	"syscall"
)

// SetProcessGroup starts the command in its own process group and makes
// context cancellation signal the whole group instead of just the shell.
func SetProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
}
