package sshutil

import (
	"net"
	"os"
	"strings"
)

const defaultPort = "22"

// Target is the machine a deploy connects to, with ~/.ssh/config applied.
type Target struct {
	// Alias is the host as given, without user or port.
	Alias        string
	Hostname     string
	Port         string
	User         string
	IdentityFile string
}

// Address returns host:port for dialing.
func (t Target) Address() string {
	return net.JoinHostPort(t.Hostname, t.Port)
}

// resolveTarget splits [user@]host[:port] and fills the rest from
// ~/.ssh/config. A user or port written in host beats the config file, as
// with ssh itself. matchLine is set when the alias had no config entry and
// the file has a Match block that could be hiding it.
func resolveTarget(host string) (t Target, matchLine int) {
	t.Port = defaultPort
	var explicitUser, explicitPort bool

	if user, rest, ok := strings.Cut(host, "@"); ok {
		t.User, host = user, rest
		explicitUser = true
	}
	if i := strings.LastIndex(host, ":"); i != -1 {
		if port := host[i+1:]; port != "" && strings.Trim(port, "0123456789") == "" {
			t.Port, host = port, host[:i]
			explicitPort = true
		}
	}
	t.Alias, t.Hostname = host, host

	if c, err := loadSSHConfig(userSSHPath("config")); err == nil {
		found := false
		if v := c.get(host, "HostName"); v != "" {
			t.Hostname, found = v, true
		}
		if v := c.get(host, "Port"); v != "" {
			found = true
			if !explicitPort {
				t.Port = v
			}
		}
		if v := c.get(host, "User"); v != "" {
			found = true
			if !explicitUser {
				t.User = v
			}
		}
		if v := c.get(host, "IdentityFile"); v != "" {
			t.IdentityFile, found = expandHome(v), true
		}
		if !found {
			matchLine = c.matchLine
		}
	}

	if t.User == "" {
		t.User = os.Getenv("USER")
	}
	if t.User == "" {
		t.User = "root"
	}
	return t, matchLine
}
