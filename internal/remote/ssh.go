// Package remote runs shell commands on the deploy target over SSH.
package remote

import (
	"context"
	"io"
	"sync"

	"github.com/rileyhilliard/sitepush/internal/config"
	"github.com/rileyhilliard/sitepush/internal/logger"
	"github.com/rileyhilliard/sitepush/pkg/sshutil"
)

// DialFunc opens a connection. Swapped out in tests.
type DialFunc func(host string, opts sshutil.DialOptions) (sshutil.SSHClient, error)

func dialSSH(host string, opts sshutil.DialOptions) (sshutil.SSHClient, error) {
	return sshutil.Dial(host, opts)
}

// SSH runs commands on one host over a single connection.
// The connection is opened on the first Exec, so a run that never reaches
// a remote step never dials.
type SSH struct {
	host string
	opts sshutil.DialOptions
	dial DialFunc
	log  logger.Logger

	mu     sync.Mutex
	client sshutil.SSHClient
}

// NewSSH prepares a lazily dialed connection to cfg.SSHHost using its
// timeout and host key policy. ~/.ssh/config warnings go to log.
func NewSSH(cfg *config.DeployConfig, log logger.Logger) *SSH {
	if log == nil {
		log = logger.Noop()
	}
	return &SSH{
		host: cfg.SSHHost,
		opts: sshutil.DialOptions{
			Timeout:       cfg.SSHTimeout,
			StrictHostKey: cfg.StrictHostKey,
			Warn:          func(msg string) { log.Warn("%s", msg) },
		},
		dial: dialSSH,
		log:  log,
	}
}

// WithDialer replaces the dial function.
func (s *SSH) WithDialer(dial DialFunc) *SSH {
	s.dial = dial
	return s
}

// Host returns the configured destination.
func (s *SSH) Host() string {
	return s.host
}

func (s *SSH) connect() (sshutil.SSHClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	s.log.Debug("dialing %s (timeout %s, strict host key %t)", s.host, s.opts.Timeout, s.opts.StrictHostKey)
	client, err := s.dial(s.host, s.opts)
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

// Exec runs command through the remote login shell and streams its output.
// The exit code is -1 when the command could not be run at all.
func (s *SSH) Exec(ctx context.Context, command string, stdout, stderr io.Writer) (int, error) {
	client, err := s.connect()
	if err != nil {
		return -1, err
	}

	s.log.Debug("remote: %s", command)
	code, err := client.ExecStream(ctx, command, stdout, stderr)
	if err != nil {
		return code, err
	}
	s.log.Debug("remote exit %d", code)
	return code, nil
}

// Close releases the connection if one was opened.
func (s *SSH) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
