package sshutil

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"strings"

	"github.com/rileyhilliard/sitepush/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyError is a server key that known_hosts doesn't vouch for. Known
// is empty when the host has no entry at all.
type HostKeyError struct {
	Host  string // host:port as dialed
	Got   string // key type the server presented
	Known []string
	File  string
}

func (e *HostKeyError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("%s isn't in %s", e.Host, e.File)
	}
	return fmt.Sprintf("host key mismatch for %s: server sent %s, known_hosts has %s",
		e.Host, e.Got, strings.Join(e.Known, ", "))
}

// Suggestion tells the user how to record or replace the key.
func (e *HostKeyError) Suggestion() string {
	host, port, err := net.SplitHostPort(e.Host)
	if err != nil {
		host, port = e.Host, defaultPort
	}
	keyscan := "ssh-keyscan " + host
	if port != defaultPort {
		keyscan = fmt.Sprintf("ssh-keyscan -p %s %s", port, host)
	}

	if len(e.Known) == 0 {
		return fmt.Sprintf("Check the server's fingerprint, then record it:\n"+
			"  %s >> %s\n"+
			"Or connect once with ssh and accept the key.", keyscan, e.File)
	}
	return fmt.Sprintf("If the server was rebuilt, replace the old key:\n"+
		"  ssh-keygen -R '%s'\n"+
		"  %s >> %s\n"+
		"If it wasn't, don't deploy: the connection may be intercepted.",
		knownhosts.Normalize(e.Host), keyscan, e.File)
}

// hostKeyCallback checks server keys against ~/.ssh/known_hosts, the file
// rsync's ssh also reads, so both connections trust the same hosts.
func hostKeyCallback(strict bool) (ssh.HostKeyCallback, error) {
	if !strict {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // --insecure-host-key
	}

	file := userSSHPath("known_hosts")
	check, err := knownhosts.New(file)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.New(errors.ErrSSH,
				"No "+file+" to verify the server against",
				"Connect once with ssh to record the host key, or pass --insecure-host-key")
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Couldn't read "+file,
			"Fix or remove the malformed line it points at")
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if stderrors.As(err, &keyErr) {
			known := make([]string, 0, len(keyErr.Want))
			for _, k := range keyErr.Want {
				known = append(known, k.Key.Type())
			}
			return &HostKeyError{Host: hostname, Got: key.Type(), Known: known, File: file}
		}
		return err
	}, nil
}
