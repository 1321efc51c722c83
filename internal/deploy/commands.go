package deploy

import (
	"fmt"

	"github.com/rileyhilliard/sitepush/internal/config"
	"github.com/rileyhilliard/sitepush/internal/sync"
	"github.com/rileyhilliard/sitepush/internal/util"
)

// Remote command builders. Paths are single-quoted; a leading ~/ is left
// bare so the remote shell still expands it.

// BackupCommand archives remotePath into archive, skipping the backup
// directory itself so archives never nest.
func BackupCommand(remotePath, backupDir, archive string) string {
	return fmt.Sprintf("mkdir -p %s && tar -czf %s -C %s --exclude=./%s .",
		util.ShellQuotePreserveTilde(backupDir),
		util.ShellQuotePreserveTilde(archive),
		util.ShellQuotePreserveTilde(remotePath),
		config.BackupDirName)
}

// MkdirCommand makes sure the deploy target exists before rsync writes to it.
func MkdirCommand(remotePath string) string {
	return "mkdir -p " + util.ShellQuotePreserveTilde(remotePath)
}

// ChownCommand hands the deployed tree to owner. sudo -n fails instead of
// prompting, since there is no terminal to type a password into.
func ChownCommand(owner, remotePath string) string {
	return fmt.Sprintf("sudo -n chown -R %s %s", util.ShellQuote(owner), util.ShellQuotePreserveTilde(remotePath))
}

// MigrateCommand runs migrate from inside remotePath.
func MigrateCommand(remotePath, migrate string) string {
	return fmt.Sprintf("cd %s && %s", util.ShellQuotePreserveTilde(remotePath), migrate)
}

// SyncOptions maps a deploy config onto one rsync mirror.
func SyncOptions(cfg *config.DeployConfig, localDir string) sync.Options {
	return sync.Options{
		Host:           cfg.SSHHost,
		LocalDir:       localDir,
		RemoteDir:      cfg.RemotePath,
		Exclude:        cfg.ExcludePatterns,
		DryRun:         cfg.DryRun,
		ConnectTimeout: cfg.SSHTimeout,
		StrictHostKey:  cfg.StrictHostKey,
	}
}
