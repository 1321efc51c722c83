package config

import (
	"os"
	"path/filepath"

	"github.com/rileyhilliard/sitepush/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the project config file looked up in the working directory.
	ConfigFileName = ".sitepush.yaml"
	// EnvPrefix namespaces environment overrides, e.g. SITEPUSH_REMOTE_PATH.
	EnvPrefix = "SITEPUSH"
)

// Config keys and the CLI flags that override them.
const (
	KeyHost          = "host"
	KeyRemotePath    = "remote_path"
	KeyBuild         = "build"
	KeyBuildDir      = "build_dir"
	KeyMigrate       = "migrate"
	KeyDryRun        = "dry_run"
	KeyOwner         = "owner"
	KeySSHTimeout    = "ssh_timeout"
	KeyStrictHostKey = "strict_host_key"
)

// FlagNames maps config keys to their command-line flag names.
var FlagNames = map[string]string{
	KeyHost:       "host",
	KeyRemotePath: "remote-path",
	KeyBuild:      "build",
	KeyBuildDir:   "build-dir",
	KeyMigrate:    "migrate",
	KeyDryRun:     "dry-run",
	KeyOwner:      "owner",
	KeySSHTimeout: "ssh-timeout",
}

// InsecureHostKeyFlag disables host key verification when set.
const InsecureHostKeyFlag = "insecure-host-key"

// Find locates the config file:
// 1. Explicit path (from --config flag), which must exist
// 2. .sitepush.yaml in the current directory
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	local := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	return "", nil
}

// Load merges defaults, the config file at path (if non-empty), SITEPUSH_*
// environment variables and any changed flags, in increasing precedence.
// flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*DeployConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file "+path,
				"Check the file is valid YAML")
		}
	}

	if flags != nil {
		for key, name := range FlagNames {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.WrapWithCode(err, errors.ErrConfig,
						"Couldn't bind flag --"+name,
						"This shouldn't happen - please report this bug!")
				}
			}
		}
	}

	cfg := Default()
	cfg.SSHHost = v.GetString(KeyHost)
	cfg.RemotePath = v.GetString(KeyRemotePath)
	cfg.BuildCommand = v.GetString(KeyBuild)
	cfg.BuildDir = v.GetString(KeyBuildDir)
	cfg.MigrateCommand = v.GetString(KeyMigrate)
	cfg.DryRun = v.GetBool(KeyDryRun)
	cfg.Owner = v.GetString(KeyOwner)
	cfg.SSHTimeout = v.GetDuration(KeySSHTimeout)
	cfg.StrictHostKey = v.GetBool(KeyStrictHostKey)

	if flags != nil {
		if insecure, err := flags.GetBool(InsecureHostKeyFlag); err == nil && insecure {
			cfg.StrictHostKey = false
		}
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyBuild, DefaultBuildCommand)
	v.SetDefault(KeyBuildDir, DefaultBuildDir)
	v.SetDefault(KeyOwner, DefaultOwner)
	v.SetDefault(KeySSHTimeout, DefaultSSHTimeout.String())
	v.SetDefault(KeyStrictHostKey, true)
	v.SetDefault(KeyDryRun, false)
}
