package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/sitepush/internal/errors"
)

// Validate checks a merged DeployConfig before anything runs. Every failure is
// a usage error: the fix is always a different flag or config value.
func Validate(cfg *DeployConfig) error {
	var missing []string
	if strings.TrimSpace(cfg.SSHHost) == "" {
		missing = append(missing, "--"+FlagNames[KeyHost])
	}
	if strings.TrimSpace(cfg.RemotePath) == "" {
		missing = append(missing, "--"+FlagNames[KeyRemotePath])
	}
	if len(missing) > 0 {
		return errors.NewUsage("missing required option %s", strings.Join(missing, ", "))
	}

	if err := ValidateHost(cfg.SSHHost); err != nil {
		return errors.NewUsage("%s", err.Error())
	}

	if err := ValidateRemotePath(cfg.RemotePath); err != nil {
		return errors.NewUsage("%s", err.Error())
	}

	if strings.TrimSpace(cfg.BuildCommand) == "" {
		return errors.NewUsage("--build can't be empty")
	}

	if strings.TrimSpace(cfg.BuildDir) == "" {
		return errors.NewUsage("--build-dir can't be empty")
	}

	if cfg.SSHTimeout < 0 {
		return errors.NewUsage("--ssh-timeout can't be negative (got %s)", cfg.SSHTimeout)
	}

	if err := ValidateOwner(cfg.Owner); err != nil {
		return errors.NewUsage("%s", err.Error())
	}

	return nil
}

// ownerPattern is user or user:group, with names or numeric ids.
var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+(:[A-Za-z0-9._-]+)?$`)

// ValidateOwner checks a chown target. Empty is allowed and skips the step.
func ValidateOwner(owner string) error {
	if owner == "" {
		return nil
	}
	if strings.HasPrefix(owner, "-") || !ownerPattern.MatchString(owner) {
		return fmt.Errorf("--owner should look like user or user:group, got %q", owner)
	}
	return nil
}

// ValidateHost checks the SSH target looks like user@host or an alias.
func ValidateHost(host string) error {
	if strings.ContainsAny(host, " \t\n") {
		return fmt.Errorf("host %q can't contain whitespace", host)
	}
	if strings.HasPrefix(host, "-") {
		return fmt.Errorf("host %q can't start with '-'", host)
	}
	if at := strings.Index(host, "@"); at != -1 {
		if at == 0 || at == len(host)-1 {
			return fmt.Errorf("host %q should look like user@server", host)
		}
	}
	return nil
}

// ValidateRemotePath checks for common remote path mistakes.
// Tilde is allowed: the remote shell expands it.
func ValidateRemotePath(path string) error {
	if strings.Contains(path, "${") {
		return fmt.Errorf("remote path has an unexpanded variable: %s", path)
	}
	if !strings.HasPrefix(path, "/") && path != "~" && !strings.HasPrefix(path, "~/") {
		return fmt.Errorf("remote path must be absolute, got %q", path)
	}
	// rsync --delete into these would wipe the whole filesystem or home dir
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" || trimmed == "~" {
		return fmt.Errorf("refusing to deploy into %q - pick a dedicated directory", path)
	}
	return nil
}
