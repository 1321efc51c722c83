package config

import (
	"time"

	"github.com/rileyhilliard/sitepush/internal/util"
)

const (
	// DefaultBuildCommand installs dependencies and builds the frontend.
	DefaultBuildCommand = "npm install && npm run build"
	// DefaultBuildDir is where the build command is expected to write its output.
	DefaultBuildDir = "dist"
	// DefaultOwner is the remote identity the deployed tree is chowned to.
	DefaultOwner = "www-data:www-data"
	// DefaultSSHTimeout bounds the SSH dial for remote commands.
	DefaultSSHTimeout = 10 * time.Second

	// BackupDirName is the directory under the remote path holding archives.
	BackupDirName = "backups"
	// BackupTimestampFormat names archives backup_YYYYMMDD_HHMMSS.tar.gz.
	BackupTimestampFormat = "20060102_150405"
)

// excludePatterns never reach the remote host. The backup directory is listed
// so rsync --delete leaves existing archives alone.
var excludePatterns = []string{
	".git",
	"node_modules",
	".env",
	BackupDirName,
	".DS_Store",
}

// ExcludePatterns returns a copy of the fixed rsync exclusion list.
func ExcludePatterns() []string {
	out := make([]string, len(excludePatterns))
	copy(out, excludePatterns)
	return out
}

// DeployConfig is everything a single deploy run needs. It is built once by
// the CLI, validated, and then only read.
type DeployConfig struct {
	// SSHHost is user@host or an SSH config alias.
	SSHHost string

	// RemotePath is the absolute (or ~/ relative) web root on the remote host.
	RemotePath string

	// BuildCommand runs through the local shell in the working directory.
	BuildCommand string

	// BuildDir is the local directory whose contents are mirrored.
	BuildDir string

	// MigrateCommand runs on the remote host inside RemotePath after the sync.
	// Empty means no migrate step.
	MigrateCommand string

	// DryRun previews the sync and skips every remote-mutating command.
	DryRun bool

	// Owner is passed to chown -R after the sync. Empty skips the step.
	Owner string

	// SSHTimeout bounds connection setup for remote commands and rsync.
	SSHTimeout time.Duration

	// StrictHostKey verifies host keys against ~/.ssh/known_hosts.
	StrictHostKey bool

	// ExcludePatterns are passed verbatim to rsync --exclude.
	ExcludePatterns []string
}

// Default returns a DeployConfig with every default filled in and no target.
func Default() *DeployConfig {
	return &DeployConfig{
		BuildCommand:    DefaultBuildCommand,
		BuildDir:        DefaultBuildDir,
		Owner:           DefaultOwner,
		SSHTimeout:      DefaultSSHTimeout,
		StrictHostKey:   true,
		ExcludePatterns: ExcludePatterns(),
	}
}

// BackupDir returns the remote directory holding backup archives.
func (c *DeployConfig) BackupDir() string {
	return util.RemoteJoin(c.RemotePath, BackupDirName)
}

// BackupArchiveName returns the archive file name for a backup taken at t.
func BackupArchiveName(t time.Time) string {
	return "backup_" + t.Format(BackupTimestampFormat) + ".tar.gz"
}

// File is the on-disk shape of .sitepush.yaml.
type File struct {
	Host       string `yaml:"host" mapstructure:"host"`
	RemotePath string `yaml:"remote_path" mapstructure:"remote_path"`
	Build      string `yaml:"build,omitempty" mapstructure:"build"`
	BuildDir   string `yaml:"build_dir,omitempty" mapstructure:"build_dir"`
	Migrate    string `yaml:"migrate,omitempty" mapstructure:"migrate"`
	Owner      string `yaml:"owner" mapstructure:"owner"`
}
