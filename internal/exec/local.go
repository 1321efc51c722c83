// Package exec runs local shell commands on behalf of a deploy.
package exec

import (
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/rileyhilliard/sitepush/internal/errors"
)

// killGrace is how long a cancelled command gets to exit after SIGTERM
// before it is killed outright.
const killGrace = 5 * time.Second

// Shell returns the shell used to interpret commands: $SHELL, or /bin/sh.
func Shell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// RunLocal runs cmd through the user's shell in workDir, streaming output to
// stdout and stderr. A non-zero exit is reported through exitCode with a nil
// error; err is only set when the command couldn't run at all or ctx was
// cancelled. On cancellation the whole process group is terminated so
// nothing the shell spawned outlives us.
func RunLocal(ctx context.Context, cmd, workDir string, stdout, stderr io.Writer) (exitCode int, err error) {
	command := exec.CommandContext(ctx, Shell(), "-c", cmd)
	if workDir != "" {
		command.Dir = workDir
	}
	command.Stdout = stdout
	command.Stderr = stderr
	command.WaitDelay = killGrace
	SetProcessGroup(command)

	runErr := command.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, errors.WrapWithCode(ctxErr, errors.ErrExec,
			"Interrupted while running: "+cmd,
			"The command and its children were stopped.")
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, errors.WrapWithCode(runErr, errors.ErrExec,
			"Couldn't run the command locally",
			"Make sure the command exists and is executable.")
	}

	return 0, nil
}

// Local runs commands on this machine. It satisfies the deploy Shell.
type Local struct{}

// Run runs command through RunLocal.
func (Local) Run(ctx context.Context, command, dir string, stdout, stderr io.Writer) (int, error) {
	return RunLocal(ctx, command, dir, stdout, stderr)
}
