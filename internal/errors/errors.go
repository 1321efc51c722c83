package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrUsage       = "USAGE"
	ErrConfig      = "CONFIG"
	ErrBuild       = "BUILD"
	ErrBuildOutput = "BUILD_OUTPUT"
	ErrSync        = "SYNC"
	ErrMigrate     = "MIGRATE"
	ErrSSH         = "SSH"
	ErrExec        = "EXEC"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// NewUsage creates a usage error. The CLI prints usage text alongside it.
func NewUsage(format string, args ...any) *Error {
	return &Error{
		Code:       ErrUsage,
		Message:    fmt.Sprintf(format, args...),
		Suggestion: "Run 'sitepush --help' to see all options",
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var spErr *Error
	if errors.As(err, &spErr) {
		return spErr.Code == code
	}
	return false
}

// ExitCode maps an error to the process exit status.
// Usage errors get their own status so scripts can tell bad invocations apart.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	if IsCode(err, ErrUsage) {
		return ExitUsage
	}
	return ExitFailure
}
