package sync

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/rileyhilliard/sitepush/internal/errors"
)

// FindRsync locates the rsync binary on the local system.
// Returns the full path to rsync or an error if not found.
func FindRsync() (string, error) {
	path, err := exec.LookPath("rsync")
	if err != nil {
		return "", errors.New(errors.ErrSync,
			"rsync isn't installed locally",
			"Grab it with: brew install rsync (macOS) or apt install rsync (Linux)")
	}
	return path, nil
}

// Version returns the rsync version string from the local installation.
func Version() (string, error) {
	rsyncPath, err := FindRsync()
	if err != nil {
		return "", err
	}

	out, err := exec.Command(rsyncPath, "--version").Output()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrSync,
			"Couldn't get rsync version",
			"Make sure rsync is installed correctly.")
	}

	// First line looks like "rsync  version 3.2.7  protocol version 31"
	first, _, _ := strings.Cut(string(out), "\n")
	if first = strings.TrimSpace(first); first != "" {
		return first, nil
	}

	return "", errors.New(errors.ErrSync,
		"Couldn't parse the rsync version output",
		"Try running 'rsync --version' to check your installation.")
}

// handleRsyncError wraps rsync exit errors with helpful messages.
// output is the tail of what rsync printed, attached as the cause.
func handleRsyncError(err error, hostName string, output string) error {
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return errors.WrapWithCode(err, errors.ErrSync,
			"rsync failed",
			"Try running rsync manually to diagnose")
	}

	// See: https://download.samba.org/pub/rsync/rsync.1 (EXIT VALUES)
	exitCode := exitErr.ExitCode()
	var msg, suggestion string

	switch exitCode {
	case 1:
		msg = "rsync syntax or usage error"
		suggestion = "Check the exclude patterns and paths passed to rsync"
	case 2:
		msg = "rsync protocol incompatibility"
		suggestion = "Ensure rsync versions are compatible on local and remote"
	case 3:
		msg = "File selection error"
		suggestion = "Check that the build directory exists and is readable"
	case 5:
		msg = "Error starting client-server protocol"
		suggestion = "Check SSH access and that rsync is installed on the remote"
	case 10:
		msg = "Error in socket I/O"
		suggestion = "Check network connectivity to the remote host"
	case 11:
		msg = "Error in file I/O"
		suggestion = "Check disk space and permissions on the remote path"
	case 12:
		msg = "Error in rsync protocol data stream"
		suggestion = "Usually a dropped connection or missing remote rsync, try again"
	case 23:
		msg = "Partial transfer due to error"
		suggestion = "Some files may have permission issues, check the output above"
	case 24:
		msg = "Partial transfer due to vanished source files"
		suggestion = "Files changed during the sync, re-run the deploy"
	case 127:
		msg = fmt.Sprintf("rsync isn't installed on '%s'", hostName)
		suggestion = "Install it on the remote: apt install rsync (Debian/Ubuntu) or yum install rsync (RHEL)"
	case 255:
		msg = fmt.Sprintf("SSH connection to '%s' failed", hostName)
		suggestion = "Check that the host is reachable without a password prompt: ssh " + hostName
	default:
		msg = fmt.Sprintf("rsync exited with code %d", exitCode)
		suggestion = "Check the output above for specific error details"
	}

	cause := err
	if tail := strings.TrimSpace(output); tail != "" {
		cause = fmt.Errorf("%w: %s", err, tail)
	}
	return errors.WrapWithCode(cause, errors.ErrSync, msg, suggestion)
}
