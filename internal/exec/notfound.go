package exec

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// commandNotFoundPatterns detect "command not found" output from common
// shells. They only apply to exit code 127.
var commandNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bash: (\S+): command not found`),
	regexp.MustCompile(`(?i)zsh: command not found: (\S+)`),
	regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`),
	regexp.MustCompile(`(?i)-bash: (\S+): No such file or directory`),
	regexp.MustCompile(`(?i)(\S+): not found`),
	regexp.MustCompile(`(?i)(\S+): command not found`),
}

// dependencyNotFoundPatterns detect a tool failing because something it
// shells out to is missing, e.g. an npm script calling a missing binary.
var dependencyNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)make: (\S+): No such file or directory`),
	regexp.MustCompile(`(?i)'(\S+)' is not recognized`),
	regexp.MustCompile(`(?i)/bin/sh: (\S+): not found`),
	regexp.MustCompile(`(?i)env: (\S+): No such file or directory`),
}

// IsCommandNotFound checks if the error output indicates a missing command.
// Returns the command name (if extractable) and whether it's a command-not-found error.
func IsCommandNotFound(stderr string, exitCode int) (string, bool) {
	if exitCode != 127 {
		return "", false
	}
	for _, pattern := range commandNotFoundPatterns {
		if matches := pattern.FindStringSubmatch(stderr); len(matches) > 1 {
			return matches[1], true
		}
	}
	return "", true
}

// IsDependencyNotFound checks if a tool failed because a dependency command is missing.
func IsDependencyNotFound(stderr string) (string, bool) {
	for _, pattern := range dependencyNotFoundPatterns {
		if matches := pattern.FindStringSubmatch(stderr); len(matches) > 1 {
			return matches[1], true
		}
	}
	return "", false
}

// NotFoundHint returns a suggestion when a command failed because an
// executable is missing. where names the machine ("locally", "on deploy@web").
// ok is false when the failure looks like something else.
func NotFoundHint(cmd, stderr string, exitCode int, where string) (hint string, ok bool) {
	name, notFound := IsCommandNotFound(stderr, exitCode)
	if !notFound {
		name, notFound = IsDependencyNotFound(stderr)
	}
	if !notFound {
		return "", false
	}

	if name == "" {
		if parts := strings.Fields(cmd); len(parts) > 0 {
			name = parts[0]
		} else {
			name = "command"
		}
	}

	return fmt.Sprintf("'%s' wasn't found %s. Install it or make sure it's on PATH for non-interactive shells.",
		name, where), true
}

// TailBuffer is an io.Writer that keeps only the last Max bytes written.
// It lets a stage stream output live while keeping enough of stderr to
// explain a failure.
type TailBuffer struct {
	Max int

	mu  sync.Mutex
	buf []byte
}

// NewTailBuffer creates a TailBuffer holding at most max bytes.
func NewTailBuffer(max int) *TailBuffer {
	return &TailBuffer{Max: max}
}

func (t *TailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.Max; over > 0 {
		t.buf = append([]byte(nil), t.buf[over:]...)
	}
	return len(p), nil
}

// String returns the retained bytes.
func (t *TailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
