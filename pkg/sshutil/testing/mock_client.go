// Package testing provides an in-memory SSHClient for tests.
package testing

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sync"

	"github.com/rileyhilliard/sitepush/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

type rule struct {
	pattern string
	re      *regexp.Regexp
	resp    CommandResponse
}

// MockClient simulates an SSH connection for testing.
// Commands succeed silently unless a response has been registered for them.
type MockClient struct {
	mu       sync.Mutex
	host     string
	closed   bool
	rules    []rule
	commands []string
}

var _ sshutil.SSHClient = (*MockClient)(nil)

// NewMockClient creates a new mock SSH client.
func NewMockClient(host string) *MockClient {
	return &MockClient{host: host}
}

// ExecStream records cmd and replays the first matching response.
func (m *MockClient) ExecStream(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return -1, errors.New("connection closed")
	}
	m.commands = append(m.commands, cmd)
	resp := m.lookup(cmd)
	m.mu.Unlock()

	if resp.Error != nil {
		return -1, resp.Error
	}
	if stdout != nil && len(resp.Stdout) > 0 {
		_, _ = stdout.Write(resp.Stdout)
	}
	if stderr != nil && len(resp.Stderr) > 0 {
		_, _ = stderr.Write(resp.Stderr)
	}
	return resp.ExitCode, nil
}

// lookup checks exact matches first, then patterns in registration order.
func (m *MockClient) lookup(cmd string) CommandResponse {
	for _, r := range m.rules {
		if r.pattern == cmd {
			return r.resp
		}
	}
	for _, r := range m.rules {
		if r.re != nil && r.re.MatchString(cmd) {
			return r.resp
		}
	}
	return CommandResponse{}
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	re, _ := regexp.Compile(pattern)
	m.rules = append(m.rules, rule{pattern: pattern, re: re, resp: resp})
}

// Commands returns every command run so far, in order.
func (m *MockClient) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}
