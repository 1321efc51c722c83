package deploy

import (
	"context"
	"fmt"
	"io"

	"github.com/rileyhilliard/sitepush/internal/config"
	"github.com/rileyhilliard/sitepush/internal/errors"
	"github.com/rileyhilliard/sitepush/internal/exec"
	"github.com/rileyhilliard/sitepush/internal/ui"
)

// migrate runs the post-deploy command inside the remote path. It is the
// last step that can fail a run.
func (d *Deployer) migrate(ctx context.Context, cfg *config.DeployConfig, res *Result) error {
	if cfg.MigrateCommand == "" {
		d.display.RenderSkipped("Migrate", "no --migrate given")
		return nil
	}

	cmd := MigrateCommand(cfg.RemotePath, cfg.MigrateCommand)
	if cfg.DryRun {
		d.display.RenderSkipped("Migrate", "dry run")
		d.display.RenderSubStatus(ui.SymbolPending, "would run: "+cmd, "")
		return nil
	}

	start := d.now()
	d.display.CommandPrompt(cmd)

	tail := exec.NewTailBuffer(stderrTail)
	code, err := d.remote.Exec(ctx, cmd, d.stdout, io.MultiWriter(d.stderr, tail))
	res.timed("migrate", d.since(start))
	if err != nil {
		d.display.RenderFailed("Migrate failed", d.since(start))
		if ctx.Err() != nil {
			return err
		}
		return errors.WrapWithCode(err, errors.ErrMigrate,
			"Couldn't run the migrate command on "+cfg.SSHHost,
			"The new files are live. Run the migration by hand once the host is reachable.")
	}
	if code != 0 {
		d.display.RenderFailed("Migrate failed", d.since(start))
		suggestion := "The new files are live. Fix the migration and run it by hand, or deploy again."
		if hint, ok := exec.NotFoundHint(cfg.MigrateCommand, tail.String(), code, "on "+cfg.SSHHost); ok {
			suggestion = hint
		}
		return errors.New(errors.ErrMigrate,
			fmt.Sprintf("Migrate command exited with code %d", code),
			suggestion)
	}

	d.display.RenderSuccess("Migrated", d.since(start))
	return nil
}
