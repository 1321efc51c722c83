package cli

import (
	"regexp"
	"strings"

	"github.com/rileyhilliard/sitepush/internal/config"
	"github.com/rileyhilliard/sitepush/internal/errors"
	"github.com/spf13/pflag"
)

// globalFlags are read directly rather than through the config loader.
type globalFlags struct {
	configPath string
	verbose    bool
	noColor    bool
}

// addDeployFlags registers the deploy options. Their values are read back
// through config.Load so flags, env and file share one precedence order.
func addDeployFlags(fs *pflag.FlagSet, gf *globalFlags) {
	fs.String(config.FlagNames[config.KeyHost], "", "SSH destination, user@server or an ~/.ssh/config alias (required)")
	fs.String(config.FlagNames[config.KeyRemotePath], "", "absolute directory on the server to publish into (required)")
	fs.String(config.FlagNames[config.KeyBuild], config.DefaultBuildCommand, "local build command, run through $SHELL -c")
	fs.String(config.FlagNames[config.KeyBuildDir], config.DefaultBuildDir, "directory the build writes its output to")
	fs.String(config.FlagNames[config.KeyMigrate], "", "command to run inside the remote path after syncing")
	fs.Bool(config.FlagNames[config.KeyDryRun], false, "show what would change without touching the server")
	fs.String(config.FlagNames[config.KeyOwner], config.DefaultOwner, "user:group to chown the published files to (empty to skip)")
	fs.Duration(config.FlagNames[config.KeySSHTimeout], config.DefaultSSHTimeout, "SSH connection timeout")
	fs.Bool(config.InsecureHostKeyFlag, false, "skip SSH host key verification")
	fs.StringVar(&gf.configPath, "config", "", "config file (default ./"+config.ConfigFileName+")")
}

// checkFlagValues rejects a value flag that swallowed the next option, as in
// "--host --dry-run". pflag accepts that as host="--dry-run".
func checkFlagValues(fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil || f.Value.Type() != "string" {
			return
		}
		if strings.HasPrefix(f.Value.String(), "--") {
			err = errors.NewUsage("missing value for --%s", f.Name)
		}
	})
	return err
}

// swallowedOption matches pflag's error for a typed flag (duration, bool
// with =) whose value was the next option, e.g. "--ssh-timeout --dry-run".
var swallowedOption = regexp.MustCompile(`^invalid argument "--[^"]*" for "(?:-., )?(--[^"]+)" flag`)

// translateFlagError rewrites pflag parse errors as usage errors.
func translateFlagError(err error) error {
	msg := err.Error()
	if m := swallowedOption.FindStringSubmatch(msg); m != nil {
		return errors.NewUsage("missing value for %s", m[1])
	}
	switch {
	case strings.HasPrefix(msg, "unknown flag: "):
		return errors.NewUsage("unknown option %s", strings.TrimPrefix(msg, "unknown flag: "))
	case strings.HasPrefix(msg, "unknown shorthand flag: "):
		return errors.NewUsage("unknown option %s", shorthandToken(strings.TrimPrefix(msg, "unknown shorthand flag: ")))
	case strings.HasPrefix(msg, "flag needs an argument: "):
		return errors.NewUsage("missing value for %s", shorthandToken(strings.TrimPrefix(msg, "flag needs an argument: ")))
	default:
		return errors.NewUsage("%s", msg)
	}
}

// shorthandToken turns pflag's "'x' in -x" into "-x". Long forms pass through.
func shorthandToken(s string) string {
	if _, token, ok := strings.Cut(s, " in "); ok {
		return token
	}
	return s
}
