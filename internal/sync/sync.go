// Package sync mirrors a local build directory to a remote path with rsync.
package sync

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	gosync "sync"
	"time"

	"github.com/rileyhilliard/sitepush/internal/errors"
	localexec "github.com/rileyhilliard/sitepush/internal/exec"
	"github.com/rileyhilliard/sitepush/internal/util"
)

// controlSocketDir is the directory for SSH ControlMaster sockets.
var controlSocketDir = filepath.Join(os.TempDir(), "sitepush-ssh")

// outputTail is how much rsync output is kept for error messages.
const outputTail = 4096

// Options describes one mirror operation.
type Options struct {
	// Host is the SSH destination (user@host or alias).
	Host string

	// LocalDir is the directory whose contents are sent.
	LocalDir string

	// RemoteDir is the destination directory on Host.
	RemoteDir string

	// Exclude patterns are passed to rsync --exclude verbatim.
	Exclude []string

	// DryRun reports what would change without writing anything.
	DryRun bool

	// ConnectTimeout is handed to ssh as ConnectTimeout. Zero leaves ssh's default.
	ConnectTimeout time.Duration

	// StrictHostKey false disables ssh host key checking.
	StrictHostKey bool
}

// Rsync runs the local rsync binary.
type Rsync struct{}

// New returns an rsync-backed syncer.
func New() *Rsync {
	return &Rsync{}
}

// Check verifies rsync is available locally.
func (r *Rsync) Check() error {
	_, err := FindRsync()
	return err
}

// Sync mirrors opts.LocalDir to opts.RemoteDir on opts.Host, deleting remote
// files that don't exist locally. Output is streamed to progress when it is
// non-nil; either way the tail is kept for error reporting.
func (r *Rsync) Sync(ctx context.Context, opts Options, progress io.Writer) error {
	rsyncPath, err := FindRsync()
	if err != nil {
		return err
	}

	// Non-fatal: rsync still works without connection reuse
	_ = os.MkdirAll(controlSocketDir, 0700)

	args, err := BuildArgs(opts)
	if err != nil {
		return err
	}

	return runRsync(ctx, rsyncPath, args, opts.Host, progress)
}

// BuildArgs constructs the rsync command arguments.
// Exported for testing command construction without running rsync.
func BuildArgs(opts Options) ([]string, error) {
	if opts.Host == "" {
		return nil, errors.New(errors.ErrSync,
			"No remote host provided",
			"Pass --host user@server.")
	}
	if opts.LocalDir == "" || opts.RemoteDir == "" {
		return nil, errors.New(errors.ErrSync,
			"Both a local and a remote directory are required",
			"Check --build-dir and --remote-path.")
	}

	// Trailing slash on the source: sync the contents, not the directory itself
	localDir := util.TrailingSlash(filepath.Clean(opts.LocalDir))
	remoteDest := fmt.Sprintf("%s:%s", opts.Host, util.TrailingSlash(opts.RemoteDir))

	args := []string{
		"-az",      // archive mode (perms, times, links), compress
		"--delete", // delete files on remote not in source
		"--force",  // force deletion of non-empty dirs
	}

	args = append(args, "-e", sshCommand(opts))

	for _, pattern := range opts.Exclude {
		args = append(args, "--exclude="+pattern)
	}

	if opts.DryRun {
		args = append(args, "--dry-run", "-v")
	}
	// One line per changed or deleted file; the whole preview in dry-run mode
	args = append(args, "--itemize-changes")

	args = append(args, localDir, remoteDest)

	return args, nil
}

// sshCommand builds the remote shell rsync uses.
// ControlMaster=auto reuses one connection across rsync's ssh invocations.
// BatchMode=yes makes ssh fail instead of prompting, since no terminal is attached.
func sshCommand(opts Options) string {
	sshCmd := fmt.Sprintf("ssh -o ControlMaster=auto -o ControlPath=%s/%%h-%%p -o ControlPersist=60 -o BatchMode=yes",
		controlSocketDir)
	if opts.ConnectTimeout > 0 {
		secs := int(opts.ConnectTimeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		sshCmd += " -o ConnectTimeout=" + strconv.Itoa(secs)
	}
	if !opts.StrictHostKey {
		sshCmd += " -o StrictHostKeyChecking=no"
	}
	return sshCmd
}

// runRsync executes rsync, streaming to progress if provided.
func runRsync(ctx context.Context, rsyncPath string, args []string, hostName string, progress io.Writer) error {
	cmd := exec.CommandContext(ctx, rsyncPath, args...)
	localexec.SetProcessGroup(cmd)

	tail := localexec.NewTailBuffer(outputTail)
	var out io.Writer = tail
	if progress != nil {
		out = io.MultiWriter(tail, progress)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSync,
			"Couldn't capture rsync output",
			"Try running rsync manually to see what's happening.")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSync,
			"Couldn't capture rsync stderr",
			"Try running rsync manually to see what's happening.")
	}

	if err := cmd.Start(); err != nil {
		return errors.WrapWithCode(err, errors.ErrSync,
			"Couldn't start rsync",
			"Make sure rsync is installed and the paths are valid.")
	}

	// Both streams share one writer; lockedWriter keeps lines whole.
	lw := &lockedWriter{w: out}
	var wg gosync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); streamOutput(stdout, lw) }()
	go func() { defer wg.Done(); streamOutput(stderr, lw) }()
	// Pipes must be drained before Wait closes them
	wg.Wait()

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.WrapWithCode(ctxErr, errors.ErrSync,
			"Sync interrupted",
			"Remote files may be partially updated. Re-run the deploy to finish the mirror.")
	}
	if waitErr != nil {
		return handleRsyncError(waitErr, hostName, tail.String())
	}
	return nil
}

type lockedWriter struct {
	mu gosync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// streamOutput reads from r and writes each line to w.
// It handles both \n and \r as line delimiters since rsync uses \r for progress updates.
func streamOutput(r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanLinesWithCR)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			fmt.Fprintln(w, line)
		}
	}
}

// scanLinesWithCR is a split function that handles both \n and \r as line delimiters.
func scanLinesWithCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[0:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
