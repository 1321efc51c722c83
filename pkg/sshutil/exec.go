package sshutil

import (
	"context"
	"fmt"
	"io"

	"github.com/rileyhilliard/sitepush/internal/errors"
	"golang.org/x/crypto/ssh"
)

// ExecStream runs a command and streams output to the provided writers.
// Returns the exit code and any error.
// Exit code is -1 if the command couldn't be executed at all or was cancelled.
//
// Cancelling ctx sends SIGTERM to the remote process and closes the session,
// which unblocks the wait even when the server ignores signals.
func (c *Client) ExecStream(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	if err := ctx.Err(); err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrExec,
			"Remote command cancelled before it started",
			"")
	}

	session, err := c.Client.NewSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	done := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			// Best effort: many servers ignore signal requests
			_ = session.Signal(ssh.SIGTERM)
			_ = session.Close()
		case <-done:
		}
	}()

	err = session.Run(cmd)
	close(done)
	<-watcherDone

	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, errors.WrapWithCode(ctxErr, errors.ErrExec,
			fmt.Sprintf("Remote command interrupted: %s", cmd),
			"The remote side may have been left half done. Check it before re-running.")
	}

	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			return exitErr.ExitStatus(), nil // Command ran, just had non-zero exit
		}
		return -1, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to execute command: %s", cmd),
			"Check that the connection is still up and the command exists on the remote host.")
	}

	return 0, nil
}
