//go:build windows

package exec

import "os/exec"

// SetProcessGroup keeps exec.CommandContext's default kill on Windows.
func SetProcessGroup(cmd *exec.Cmd) {}
