package sshutil

import (
	"context"
	"io"
)

// SSHClient defines the interface for SSH command execution.
// Both the real Client and mock implementations satisfy this interface.
type SSHClient interface {
	// ExecStream runs a command and streams output to the provided writers.
	// A non-zero exit code with nil error means the command ran but failed.
	// Exit code is -1 if the command couldn't be executed at all.
	ExecStream(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error)

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the original host/alias used to connect.
	GetHost() string
}

var _ SSHClient = (*Client)(nil)
