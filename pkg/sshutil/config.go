package sshutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// sshConfig is ~/.ssh/config cut off at its first Match block, which
// kevinburke/ssh_config can't parse. matchLine is 0 when there is none.
type sshConfig struct {
	cfg       *ssh_config.Config
	matchLine int
}

func loadSSHConfig(path string) (*sshConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	matchLine := 0
	for i, line := range lines {
		if fields := strings.Fields(line); len(fields) > 0 && strings.EqualFold(fields[0], "match") {
			lines, matchLine = lines[:i], i+1
			break
		}
	}

	cfg, err := ssh_config.Decode(strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		return nil, err
	}
	return &sshConfig{cfg: cfg, matchLine: matchLine}, nil
}

func (c *sshConfig) get(alias, key string) string {
	v, _ := c.cfg.Get(alias, key)
	return v
}

// HostEntry is a concrete Host block from ~/.ssh/config, offered as a
// deploy target by `sitepush init`.
type HostEntry struct {
	Alias    string
	Hostname string
	User     string
	Port     string
}

// Description summarizes where the alias points, e.g.
// "203.0.113.10, user: deploy, port: 2222".
func (h HostEntry) Description() string {
	var parts []string
	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}
	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}
	if h.Port != "" && h.Port != defaultPort {
		parts = append(parts, "port: "+h.Port)
	}
	if len(parts) == 0 {
		return h.Alias
	}
	return strings.Join(parts, ", ")
}

// ConfigHosts lists the aliases in ~/.ssh/config. A missing file yields none.
func ConfigHosts() ([]HostEntry, error) {
	return ConfigHostsFrom(userSSHPath("config"))
}

// ConfigHostsFrom lists the concrete aliases in the config file at path,
// sorted by name. Wildcard patterns are skipped.
func ConfigHostsFrom(path string) ([]HostEntry, error) {
	c, err := loadSSHConfig(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	var hosts []HostEntry
	for _, block := range c.cfg.Hosts {
		for _, pattern := range block.Patterns {
			alias := pattern.String()
			if strings.ContainsAny(alias, "*?!") || seen[alias] {
				continue
			}
			seen[alias] = true
			hosts = append(hosts, HostEntry{
				Alias:    alias,
				Hostname: c.get(alias, "HostName"),
				User:     c.get(alias, "User"),
				Port:     c.get(alias, "Port"),
			})
		}
	}

	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Alias < hosts[j].Alias })
	return hosts, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func userSSHPath(name string) string {
	return filepath.Join(homeDir(), ".ssh", name)
}

// expandHome resolves a leading ~/ against the local home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
