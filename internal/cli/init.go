package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/sitepush/internal/config"
	"github.com/rileyhilliard/sitepush/internal/errors"
	"github.com/rileyhilliard/sitepush/internal/ui"
	"github.com/rileyhilliard/sitepush/pkg/sshutil"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	File           config.File
	Overwrite      bool // Overwrite an existing config without asking
	NonInteractive bool // Skip prompts, take everything from flags
	Check          bool // Dial the host before writing
}

func (a *App) newInitCommand(gf *globalFlags) *cobra.Command {
	var opts InitOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a " + config.ConfigFileName + " in the current directory",
		Long: `Create a ` + config.ConfigFileName + ` so future deploys only need 'sitepush'.

On a terminal you're prompted for each value, with hosts from ~/.ssh/config
offered as suggestions. Otherwise pass --host and --remote-path.`,
		Example: `  sitepush init
  sitepush init --host deploy@web1 --remote-path /var/www/site --non-interactive`,
		Args: rejectPositional,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFlagValues(cmd.Flags()); err != nil {
				return err
			}
			a.setupOutput(gf)
			return a.runInit(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.File.Host, "host", "", "SSH destination, user@server or an ~/.ssh/config alias")
	f.StringVar(&opts.File.RemotePath, "remote-path", "", "absolute directory on the server to publish into")
	f.StringVar(&opts.File.Build, "build", config.DefaultBuildCommand, "local build command")
	f.StringVar(&opts.File.BuildDir, "build-dir", config.DefaultBuildDir, "directory the build writes its output to")
	f.StringVar(&opts.File.Migrate, "migrate", "", "command to run inside the remote path after syncing")
	f.StringVar(&opts.File.Owner, "owner", config.DefaultOwner, "user:group to chown the published files to")
	f.BoolVarP(&opts.Overwrite, "force", "f", false, "overwrite an existing "+config.ConfigFileName)
	f.BoolVar(&opts.NonInteractive, "non-interactive", false, "don't prompt, use flags only")
	f.BoolVar(&opts.Check, "check", false, "test the SSH connection before saving")

	return cmd
}

// runInit writes .sitepush.yaml in the working directory.
func (a *App) runInit(cmd *cobra.Command, opts InitOptions) error {
	out := a.Stdout
	interactive := !opts.NonInteractive && a.Interactive()

	if _, err := os.Stat(config.ConfigFileName); err == nil && !opts.Overwrite {
		if !interactive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", config.ConfigFileName),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("'%s' already exists. Overwrite?", config.ConfigFileName)).
				Value(&overwrite),
		))
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	file := opts.File
	if interactive {
		if err := promptFile(&file); err != nil {
			return err
		}
	}

	if err := validateFile(file); err != nil {
		return err
	}

	if opts.Check {
		if err := a.checkConnection(cmd, file.Host, out); err != nil {
			return err
		}
	}

	if err := writeConfigFile(config.ConfigFileName, file); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s Created %s\n\n", ui.SymbolComplete, config.ConfigFileName)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  sitepush --dry-run   - Preview what would change")
	fmt.Fprintln(out, "  sitepush             - Build and deploy")
	return nil
}

// validateFile applies the deploy validation rules to the values init is
// about to save.
func validateFile(f config.File) error {
	cfg := config.Default()
	cfg.SSHHost = f.Host
	cfg.RemotePath = f.RemotePath
	cfg.BuildCommand = f.Build
	cfg.BuildDir = f.BuildDir
	cfg.Owner = f.Owner
	return config.Validate(cfg)
}

// promptFile asks for each value, starting from whatever flags provided.
func promptFile(f *config.File) error {
	var suggestions []string
	hostDesc := "user@server or an alias from ~/.ssh/config"
	if hosts, err := sshutil.ConfigHosts(); err == nil && len(hosts) > 0 {
		lines := make([]string, 0, len(hosts))
		for _, h := range hosts {
			suggestions = append(suggestions, h.Alias)
			lines = append(lines, fmt.Sprintf("%s (%s)", h.Alias, h.Description()))
		}
		hostDesc = "Known hosts: " + strings.Join(lines, ", ")
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SSH host").
				Description(hostDesc).
				Placeholder("deploy@203.0.113.10").
				Suggestions(suggestions).
				Value(&f.Host).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("SSH host is required")
					}
					return config.ValidateHost(s)
				}),
			huh.NewInput().
				Title("Remote path").
				Description("Directory on the server the site is published into").
				Placeholder("/var/www/site").
				Value(&f.RemotePath).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("remote path is required")
					}
					return config.ValidateRemotePath(s)
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Build command").
				Value(&f.Build).
				Validate(requireValue("build command")),
			huh.NewInput().
				Title("Build directory").
				Description("Where the build writes its output").
				Value(&f.BuildDir).
				Validate(requireValue("build directory")),
			huh.NewInput().
				Title("Migrate command (optional)").
				Description("Runs inside the remote path after each deploy").
				Placeholder("php artisan migrate --force").
				Value(&f.Migrate),
			huh.NewInput().
				Title("Owner").
				Description("user:group the files are chowned to, empty to skip").
				Value(&f.Owner).
				Validate(config.ValidateOwner),
		),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility or use --non-interactive")
	}
	return nil
}

func requireValue(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// checkConnection dials host once so a typo is caught before it's saved.
func (a *App) checkConnection(cmd *cobra.Command, host string, out io.Writer) error {
	pd := ui.NewPhaseDisplay(out)
	pd.RenderProgress("Connecting to " + host)
	start := time.Now()

	client, err := a.Dial(host, sshutil.DefaultDialOptions())
	if err != nil {
		pd.RenderFailed("Couldn't connect to "+host, time.Since(start))
		return err
	}
	defer client.Close()

	code, err := client.ExecStream(cmd.Context(), "true", nil, nil)
	if err != nil {
		pd.RenderFailed("Couldn't run commands on "+host, time.Since(start))
		return err
	}
	if code != 0 {
		pd.RenderFailed("Couldn't run commands on "+host, time.Since(start))
		return errors.New(errors.ErrSSH,
			fmt.Sprintf("Connected to %s but a test command exited %d", host, code),
			"Check the remote user's login shell: ssh "+host)
	}
	pd.RenderSuccess("Connected to "+host, time.Since(start))
	return nil
}

// writeConfigFile encodes f as YAML under a short header comment.
func writeConfigFile(path string, f config.File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to generate config",
			"This shouldn't happen - please report this bug")
	}

	header := `# sitepush configuration
# Flags and SITEPUSH_* environment variables override these values.

`
	if err := os.WriteFile(path, []byte(header+string(data)), 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to write config file: %s", path),
			"Check directory permissions")
	}
	return nil
}
