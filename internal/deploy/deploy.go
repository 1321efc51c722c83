// Package deploy runs the build, backup, sync and migrate steps of a deploy
// in order. Every external effect goes through the Shell, Remote and Syncer
// interfaces so the sequence can be exercised without processes or hosts.
package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rileyhilliard/sitepush/internal/config"
	"github.com/rileyhilliard/sitepush/internal/logger"
	"github.com/rileyhilliard/sitepush/internal/sync"
	"github.com/rileyhilliard/sitepush/internal/ui"
	"github.com/rileyhilliard/sitepush/internal/util"
)

// Shell runs a local command. A non-zero exit is returned as the code with
// a nil error.
type Shell interface {
	Run(ctx context.Context, command, dir string, stdout, stderr io.Writer) (int, error)
}

// Remote runs a command on the deploy host. A non-zero exit is returned as
// the code with a nil error; err means the command could not be run.
type Remote interface {
	Exec(ctx context.Context, command string, stdout, stderr io.Writer) (int, error)
	Close() error
}

// Syncer mirrors the build output to the remote path.
type Syncer interface {
	Check() error
	Sync(ctx context.Context, opts sync.Options, progress io.Writer) error
}

// State is how far a run got.
type State string

const (
	StateParsed       State = "parsed"
	StateBuilt        State = "built"
	StateBackedUp     State = "backed_up"
	StateSynced       State = "synced"
	StatePermissioned State = "permissioned"
	StateMigrated     State = "migrated"
	StateDone         State = "done"
)

// StageTiming records how long one step took.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Result describes a finished or aborted run.
type Result struct {
	// State is the last state reached.
	State State

	// Reached lists every state in the order it was entered.
	Reached []State

	Timings []StageTiming

	// Warnings are failures that did not stop the run (backup, chown).
	Warnings []string

	// BackupArchive is the remote archive written this run, if any.
	BackupArchive string

	DryRun bool
}

func (r *Result) advance(s State) {
	r.State = s
	r.Reached = append(r.Reached, s)
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Result) timed(stage string, d time.Duration) {
	r.Timings = append(r.Timings, StageTiming{Stage: stage, Duration: d})
}

// Deployer runs one deploy at a time.
type Deployer struct {
	shell  Shell
	remote Remote
	syncer Syncer

	now     func() time.Time
	stdout  io.Writer
	stderr  io.Writer
	display *ui.PhaseDisplay
	log     logger.Logger
	workDir string
	verbose bool
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithClock sets the time source used for backup names and timings.
func WithClock(now func() time.Time) Option {
	return func(d *Deployer) { d.now = now }
}

// WithOutput sets where build, rsync and migrate output goes.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(d *Deployer) {
		d.stdout = stdout
		d.stderr = stderr
	}
}

// WithDisplay sets the step renderer.
func WithDisplay(display *ui.PhaseDisplay) Option {
	return func(d *Deployer) { d.display = display }
}

// WithLogger sets the debug logger.
func WithLogger(log logger.Logger) Option {
	return func(d *Deployer) { d.log = log }
}

// WithWorkDir sets the directory the build runs in and BuildDir is
// resolved against. Defaults to the process working directory.
func WithWorkDir(dir string) Option {
	return func(d *Deployer) { d.workDir = dir }
}

// WithVerbose streams rsync's per-file output on real runs too. Dry runs
// always show it.
func WithVerbose(verbose bool) Option {
	return func(d *Deployer) { d.verbose = verbose }
}

// New creates a Deployer. Output defaults to os.Stdout and os.Stderr.
func New(shell Shell, remote Remote, syncer Syncer, opts ...Option) *Deployer {
	d := &Deployer{
		shell:  shell,
		remote: remote,
		syncer: syncer,
		now:    time.Now,
		stdout: os.Stdout,
		stderr: os.Stderr,
		log:    logger.Noop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.display == nil {
		d.display = ui.NewPhaseDisplay(d.stdout)
	}
	return d
}

// Run executes the deploy described by cfg, which must already be
// validated. The returned Result is never nil; on error it shows how far the
// run got. Backup and ownership failures are recorded as warnings and do
// not fail the run.
func (d *Deployer) Run(ctx context.Context, cfg *config.DeployConfig) (*Result, error) {
	res := &Result{DryRun: cfg.DryRun}
	res.advance(StateParsed)

	defer func() {
		if err := d.remote.Close(); err != nil {
			d.log.Debug("closing remote connection: %v", err)
		}
	}()

	start := d.now()
	d.log.Debug("deploying %s to %s:%s (dry run %t)", cfg.BuildDir, cfg.SSHHost, cfg.RemotePath, cfg.DryRun)

	// Fail before building if the sync step can't possibly run
	if err := d.syncer.Check(); err != nil {
		return res, err
	}

	if err := d.build(ctx, cfg, res); err != nil {
		return res, err
	}
	res.advance(StateBuilt)

	if err := d.backup(ctx, cfg, res); err != nil {
		return res, err
	}
	res.advance(StateBackedUp)

	if err := d.publish(ctx, cfg, res); err != nil {
		return res, err
	}
	res.advance(StateSynced)

	if err := d.normalizeOwner(ctx, cfg, res); err != nil {
		return res, err
	}
	res.advance(StatePermissioned)

	if err := d.migrate(ctx, cfg, res); err != nil {
		return res, err
	}
	res.advance(StateMigrated)

	res.advance(StateDone)
	d.summarize(cfg, res, d.now().Sub(start))
	return res, nil
}

func (d *Deployer) summarize(cfg *config.DeployConfig, res *Result, total time.Duration) {
	target := cfg.SSHHost + ":" + cfg.RemotePath
	if cfg.DryRun {
		d.display.RenderSuccess("Dry run complete for "+target+", nothing was changed", total)
	} else {
		d.display.RenderSuccess("Deployed to "+target, total)
	}
	if n := len(res.Warnings); n > 0 {
		d.display.RenderWarning(fmt.Sprintf("Finished with %d %s", n, util.Pluralize(n, "warning", "warnings")), "")
		for _, w := range res.Warnings {
			d.display.RenderSubStatus(ui.SymbolWarning, w, "")
		}
	}
}
