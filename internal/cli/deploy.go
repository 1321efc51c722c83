package cli

import (
	"github.com/rileyhilliard/sitepush/internal/config"
	"github.com/spf13/cobra"
)

// runDeploy merges options, validates them, and hands off to the Runner.
// Nothing external runs until validation passes.
func (a *App) runDeploy(cmd *cobra.Command, gf *globalFlags) error {
	if err := checkFlagValues(cmd.Flags()); err != nil {
		return err
	}

	log := a.setupOutput(gf)

	path, err := config.Find(gf.configPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	if path != "" {
		log.Debug("using config file %s", path)
	}

	runner := a.NewRunner(cfg, RunnerOptions{
		Stdout:  a.Stdout,
		Stderr:  a.Stderr,
		Log:     log,
		Verbose: gf.verbose,
	})

	_, err = runner.Run(cmd.Context(), cfg)
	return err
}
