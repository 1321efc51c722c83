package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/rileyhilliard/sitepush/internal/config"
	"github.com/rileyhilliard/sitepush/internal/exec"
	"github.com/rileyhilliard/sitepush/internal/ui"
	"github.com/rileyhilliard/sitepush/internal/util"
)

// backup archives the current remote contents. A failed backup is a warning;
// only cancellation stops the run here.
func (d *Deployer) backup(ctx context.Context, cfg *config.DeployConfig, res *Result) error {
	archive := util.RemoteJoin(cfg.BackupDir(), config.BackupArchiveName(d.now()))

	if cfg.DryRun {
		d.display.RenderSkipped("Backup", "dry run")
		d.display.RenderSubStatus(ui.SymbolPending,
			fmt.Sprintf("would back up %s to %s", cfg.RemotePath, archive), "")
		return nil
	}

	start := d.now()
	d.display.RenderProgress("Backing up " + cfg.RemotePath)

	cmd := BackupCommand(cfg.RemotePath, cfg.BackupDir(), archive)
	d.log.Debug("backup: %s", cmd)

	tail := exec.NewTailBuffer(stderrTail)
	code, err := d.remote.Exec(ctx, cmd, tail, tail)
	res.timed("backup", d.since(start))

	switch {
	case ctx.Err() != nil:
		d.display.RenderFailed("Backup interrupted", d.since(start))
		if err == nil {
			err = ctx.Err()
		}
		return err
	case err != nil:
		res.warn("backup of %s failed: %s", cfg.RemotePath, firstLine(err.Error()))
		d.display.RenderWarning("Backup failed, continuing", "could not run tar")
	case code != 0:
		res.warn("backup of %s failed with exit code %d: %s", cfg.RemotePath, code, lastLine(tail.String()))
		d.display.RenderWarning("Backup failed, continuing", fmt.Sprintf("exit %d", code))
	default:
		res.BackupArchive = archive
		d.display.RenderSuccess("Backed up to "+archive, d.since(start))
	}
	return nil
}

// firstLine drops the suggestion part of a rendered error.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "✗ ")
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// lastLine returns the last non-empty line of command output.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return "no output"
	}
	return last
}
