package deploy

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/rileyhilliard/sitepush/internal/config"
	"github.com/rileyhilliard/sitepush/internal/errors"
	"github.com/rileyhilliard/sitepush/internal/exec"
)

// publish creates the remote directory and mirrors the build output into it.
func (d *Deployer) publish(ctx context.Context, cfg *config.DeployConfig, res *Result) error {
	start := d.now()

	if !cfg.DryRun {
		if err := d.ensureRemoteDir(ctx, cfg); err != nil {
			d.display.RenderFailed("Sync failed", d.since(start))
			return err
		}
	}

	// A dry run exists to show what would change
	var progress io.Writer
	if cfg.DryRun || d.verbose {
		progress = d.stdout
	} else {
		d.display.RenderProgress(fmt.Sprintf("Syncing %s to %s:%s", cfg.BuildDir, cfg.SSHHost, cfg.RemotePath))
	}

	opts := SyncOptions(cfg, d.buildDirPath(cfg))
	d.log.Debug("rsync %s -> %s:%s (%d excludes)", opts.LocalDir, opts.Host, opts.RemoteDir, len(opts.Exclude))

	err := d.syncer.Sync(ctx, opts, progress)
	res.timed("sync", d.since(start))
	if err != nil {
		d.display.RenderFailed("Sync failed", d.since(start))
		var spErr *errors.Error
		if stderrors.As(err, &spErr) {
			return err
		}
		return errors.WrapWithCode(err, errors.ErrSync,
			"Sync to "+cfg.SSHHost+" failed",
			"Check the output above. Remote files may be partially updated.")
	}

	if cfg.DryRun {
		d.display.RenderSuccess("Previewed sync to "+cfg.SSHHost+":"+cfg.RemotePath, d.since(start))
	} else {
		d.display.RenderSuccess("Synced to "+cfg.SSHHost+":"+cfg.RemotePath, d.since(start))
	}
	return nil
}

func (d *Deployer) ensureRemoteDir(ctx context.Context, cfg *config.DeployConfig) error {
	cmd := MkdirCommand(cfg.RemotePath)
	d.log.Debug("remote: %s", cmd)

	tail := exec.NewTailBuffer(stderrTail)
	code, err := d.remote.Exec(ctx, cmd, tail, tail)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		var spErr *errors.Error
		if stderrors.As(err, &spErr) && spErr.Code == errors.ErrSSH {
			// Dial failures already explain themselves
			return errors.WrapWithCode(err, errors.ErrSync,
				fmt.Sprintf("Can't prepare %s on %s", cfg.RemotePath, cfg.SSHHost),
				spErr.Suggestion)
		}
		return errors.WrapWithCode(err, errors.ErrSync,
			fmt.Sprintf("Can't prepare %s on %s", cfg.RemotePath, cfg.SSHHost),
			"Check that the host is reachable: ssh "+cfg.SSHHost)
	}
	if code != 0 {
		return errors.New(errors.ErrSync,
			fmt.Sprintf("Couldn't create %s on %s (exit %d): %s", cfg.RemotePath, cfg.SSHHost, code, lastLine(tail.String())),
			"Make sure the SSH user can write to the parent directory.")
	}
	return nil
}

// normalizeOwner chowns the deployed tree. Failure is a warning.
func (d *Deployer) normalizeOwner(ctx context.Context, cfg *config.DeployConfig, res *Result) error {
	switch {
	case cfg.DryRun:
		d.display.RenderSkipped("Ownership", "dry run")
		return nil
	case cfg.Owner == "":
		d.display.RenderSkipped("Ownership", "no --owner set")
		return nil
	}

	start := d.now()
	cmd := ChownCommand(cfg.Owner, cfg.RemotePath)
	d.log.Debug("remote: %s", cmd)
	d.display.RenderProgress("Setting owner " + cfg.Owner)

	tail := exec.NewTailBuffer(stderrTail)
	code, err := d.remote.Exec(ctx, cmd, tail, tail)
	res.timed("ownership", d.since(start))

	switch {
	case ctx.Err() != nil:
		d.display.RenderFailed("Ownership interrupted", d.since(start))
		if err == nil {
			err = ctx.Err()
		}
		return err
	case err != nil:
		res.warn("chown %s %s failed: %s", cfg.Owner, cfg.RemotePath, firstLine(err.Error()))
		d.display.RenderWarning("Couldn't set owner, continuing", "could not run chown")
	case code != 0:
		res.warn("chown %s %s failed with exit code %d: %s", cfg.Owner, cfg.RemotePath, code, lastLine(tail.String()))
		d.display.RenderWarning("Couldn't set owner, continuing", fmt.Sprintf("exit %d", code))
	default:
		d.display.RenderSuccess("Owner set to "+cfg.Owner, d.since(start))
	}
	return nil
}
