// Package sshutil connects to a deploy target over SSH and runs commands
// there. Settings come from ~/.ssh/config the way ssh(1) would apply them,
// keys from the agent and the usual key files, and host keys are checked
// against ~/.ssh/known_hosts.
package sshutil

import (
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/rileyhilliard/sitepush/internal/errors"
	"golang.org/x/crypto/ssh"
)

// DialOptions controls one connection.
type DialOptions struct {
	// Timeout bounds the TCP connect and the SSH handshake.
	Timeout time.Duration

	// StrictHostKey requires the server key to be in ~/.ssh/known_hosts.
	StrictHostKey bool

	// Warn receives non-fatal notes about ~/.ssh/config. Nil drops them.
	Warn func(msg string)
}

// DefaultDialOptions returns a 10s timeout with host key checking on.
func DefaultDialOptions() DialOptions {
	return DialOptions{Timeout: 10 * time.Second, StrictHostKey: true}
}

// Client is an open connection to a deploy target.
type Client struct {
	*ssh.Client
	Target Target
	host   string
}

// Dial connects to host, which may be an ~/.ssh/config alias, a hostname,
// user@host, or any of those with :port.
func Dial(host string, opts DialOptions) (*Client, error) {
	t, matchLine := resolveTarget(host)
	if matchLine > 0 && opts.Warn != nil {
		opts.Warn(fmt.Sprintf("no ~/.ssh/config entry for %s before the Match block on line %d; entries after it are ignored",
			t.Alias, matchLine))
	}

	auth, encrypted := authMethods(t)
	if len(auth) == 0 {
		return nil, noAuthError(t, encrypted)
	}

	hostKeys, err := hostKeyCallback(opts.StrictHostKey)
	if err != nil {
		return nil, err
	}

	addr := t.Address()
	conn, err := net.DialTimeout("tcp", addr, opts.Timeout)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach %s at %s", host, addr),
			dialHint(err, opts.Timeout))
	}

	// NewClientConn takes no context
	if opts.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(opts.Timeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            t.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         opts.Timeout,
	})
	if err != nil {
		conn.Close()
		return nil, handshakeError(host, t, err, encrypted)
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{Client: ssh.NewClient(sshConn, chans, reqs), Target: t, host: host}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns host as passed to Dial.
func (c *Client) GetHost() string {
	return c.host
}

func dialHint(err error, timeout time.Duration) string {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case stderrors.Is(err, syscall.ECONNREFUSED):
		return "Nothing is accepting SSH there. Check the port and that sshd is running."
	case stderrors.As(err, &dnsErr) && dnsErr.IsNotFound:
		return "The hostname doesn't resolve. Check --host and ~/.ssh/config."
	case stderrors.As(err, &netErr) && netErr.Timeout():
		return fmt.Sprintf("No answer within %s. The host may be down or a firewall is dropping SSH; raise --ssh-timeout for slow links.", timeout)
	default:
		return "Check that the host is up and reachable from this machine."
	}
}

func handshakeError(host string, t Target, err error, encrypted []string) error {
	var hostKeyErr *HostKeyError
	if stderrors.As(err, &hostKeyErr) {
		return errors.New(errors.ErrSSH, hostKeyErr.Error(), hostKeyErr.Suggestion())
	}

	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods") {
		hint := fmt.Sprintf("Add your public key to ~%s/.ssh/authorized_keys on the server", t.User)
		if len(encrypted) > 0 {
			hint = addKeysHint(encrypted)
		}
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("%s@%s rejected every key offered", t.User, t.Hostname),
			hint)
	}

	return errors.WrapWithCode(err, errors.ErrSSH,
		fmt.Sprintf("SSH handshake with %s failed", host),
		"Connect by hand to see more: ssh -v "+host)
}
