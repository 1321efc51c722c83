package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/sitepush/internal/config"
	"github.com/rileyhilliard/sitepush/internal/deploy"
	"github.com/rileyhilliard/sitepush/internal/errors"
	"github.com/rileyhilliard/sitepush/internal/exec"
	"github.com/rileyhilliard/sitepush/internal/logger"
	"github.com/rileyhilliard/sitepush/internal/remote"
	"github.com/rileyhilliard/sitepush/internal/sync"
	"github.com/rileyhilliard/sitepush/internal/ui"
	"github.com/rileyhilliard/sitepush/pkg/sshutil"
	"github.com/spf13/cobra"
)

// Runner executes a validated deploy.
type Runner interface {
	Run(ctx context.Context, cfg *config.DeployConfig) (*deploy.Result, error)
}

// RunnerOptions carries CLI settings into a Runner.
type RunnerOptions struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Log     logger.Logger
	Verbose bool
}

// App holds the CLI's collaborators. Tests replace NewRunner, Interactive
// and Dial to keep commands from touching processes or the network.
type App struct {
	Stdout io.Writer
	Stderr io.Writer

	NewRunner   func(cfg *config.DeployConfig, opts RunnerOptions) Runner
	Interactive func() bool
	Dial        func(host string, opts sshutil.DialOptions) (sshutil.SSHClient, error)
}

// NewApp returns an App wired to the real shell, SSH and rsync.
func NewApp() *App {
	return &App{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		NewRunner:   newDeployRunner,
		Interactive: func() bool { return ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stdout) },
		Dial: func(host string, opts sshutil.DialOptions) (sshutil.SSHClient, error) {
			return sshutil.Dial(host, opts)
		},
	}
}

func newDeployRunner(cfg *config.DeployConfig, opts RunnerOptions) Runner {
	return deploy.New(
		exec.Local{},
		remote.NewSSH(cfg, opts.Log),
		sync.New(),
		deploy.WithOutput(opts.Stdout, opts.Stderr),
		deploy.WithDisplay(ui.NewPhaseDisplay(opts.Stdout)),
		deploy.WithLogger(opts.Log),
		deploy.WithVerbose(opts.Verbose),
	)
}

// Execute runs the CLI with the process arguments and returns the exit code.
// SIGINT and SIGTERM cancel the running step; a second signal kills the
// process outright.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()
	defer sshutil.CloseAgent()

	return NewApp().Execute(ctx, os.Args[1:])
}

// Execute runs the CLI with args and returns the exit code.
func (a *App) Execute(ctx context.Context, args []string) int {
	root := a.NewRootCommand()
	root.SetArgs(args)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return errors.ExitOK
	}
	return a.report(ctx, cmd, err)
}

// report prints err and maps it to an exit code. Usage errors are followed
// by the usage text of the command that failed.
func (a *App) report(ctx context.Context, cmd *cobra.Command, err error) int {
	code := errors.ExitCode(err)
	if ctx.Err() != nil {
		code = errors.ExitInterrupted
	}
	if code == errors.ExitInterrupted {
		fmt.Fprintf(a.Stderr, "\n%s Interrupted\n", ui.SymbolFail)
		return code
	}

	var spErr *errors.Error
	if stderrors.As(err, &spErr) {
		fmt.Fprint(a.Stderr, err.Error())
	} else {
		fmt.Fprintf(a.Stderr, "%s %v\n", ui.SymbolFail, err)
	}

	if errors.IsCode(err, errors.ErrUsage) && cmd != nil {
		fmt.Fprintln(a.Stderr)
		fmt.Fprint(a.Stderr, cmd.UsageString())
	}
	return code
}

// NewRootCommand builds the command tree.
func (a *App) NewRootCommand() *cobra.Command {
	var gf globalFlags

	root := &cobra.Command{
		Use:   "sitepush",
		Short: "Build a static site and publish it to a server over SSH",
		Long: `sitepush builds your frontend, backs up what's live, and mirrors the build
output to a directory on your server with rsync.

Steps, in order:
  1. run the build command locally and check the build directory exists
  2. archive the remote directory to <remote-path>/backups/backup_<time>.tar.gz
  3. rsync the build directory to the remote path, deleting stale files
  4. chown the remote path to --owner
  5. run --migrate inside the remote path, if given

A failed backup or chown is reported as a warning; anything else stops the deploy.`,
		Example: `  sitepush --host deploy@web1 --remote-path /var/www/site
  sitepush --host web1 --remote-path /var/www/site --dry-run
  sitepush --host deploy@web1 --remote-path /srv/app --build "pnpm build" --build-dir build
  sitepush --host deploy@web1 --remote-path /srv/app --migrate "php artisan migrate --force"`,
		Args:          rejectPositional,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDeploy(cmd, &gf)
		},
	}
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return translateFlagError(err)
	})

	addDeployFlags(root.Flags(), &gf)
	root.PersistentFlags().BoolVarP(&gf.verbose, "verbose", "v", false, "show debug logs and rsync's per-file output")
	root.PersistentFlags().BoolVar(&gf.noColor, "no-color", false, "disable colored output")

	root.AddCommand(a.newInitCommand(&gf), a.newVersionCommand())
	return root
}

// rejectPositional treats any bare argument as an unknown option.
func rejectPositional(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errors.NewUsage("unknown option %s", args[0])
	}
	return nil
}

// setupOutput applies --no-color and returns the logger for this run.
func (a *App) setupOutput(gf *globalFlags) logger.Logger {
	ui.ConfigureColors(a.Stdout, gf.noColor)
	return logger.Configure(a.Stderr, gf.verbose)
}
