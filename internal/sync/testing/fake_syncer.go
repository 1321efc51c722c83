// Package testing provides test doubles for the sync package.
package testing

import (
	"context"
	"io"
	"sync"

	rsync "github.com/rileyhilliard/sitepush/internal/sync"
)

// FakeSyncer simulates rsync operations for testing.
// It records calls and returns configured results.
type FakeSyncer struct {
	mu sync.Mutex

	// CheckErr is returned from Check when set.
	CheckErr error

	// Configuration
	ShouldFail bool
	FailError  error

	// Lines written to the progress writer on each Sync
	ProgressLines []string

	// OnSync runs inside Sync before the result is returned.
	OnSync func(opts rsync.Options)

	// Call tracking
	Calls  []rsync.Options
	Checks int
}

// NewFakeSyncer creates a new fake syncer that succeeds by default.
func NewFakeSyncer() *FakeSyncer {
	return &FakeSyncer{}
}

// Check simulates the local rsync preflight.
func (f *FakeSyncer) Check() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Checks++
	return f.CheckErr
}

// Sync simulates a sync operation.
func (f *FakeSyncer) Sync(ctx context.Context, opts rsync.Options, progress io.Writer) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, opts)
	hook := f.OnSync
	lines := f.ProgressLines
	shouldFail, failErr := f.ShouldFail, f.FailError
	f.mu.Unlock()

	if hook != nil {
		hook(opts)
	}

	if progress != nil {
		for _, line := range lines {
			_, _ = progress.Write([]byte(line + "\n"))
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if shouldFail {
		return failErr
	}
	return nil
}

// SetFail configures the syncer to fail with the given error.
func (f *FakeSyncer) SetFail(err error) *FakeSyncer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ShouldFail = true
	f.FailError = err
	return f
}

// SetProgress configures progress lines to emit during sync.
func (f *FakeSyncer) SetProgress(lines ...string) *FakeSyncer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProgressLines = lines
	return f
}

// SyncCount returns how many times Sync was called.
func (f *FakeSyncer) SyncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// LastCall returns the most recent sync call, or nil if none.
func (f *FakeSyncer) LastCall() *rsync.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return nil
	}
	call := f.Calls[len(f.Calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (f *FakeSyncer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
	f.Checks = 0
}
