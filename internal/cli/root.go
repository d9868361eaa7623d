package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/krunaldodiya/tcc-manager/internal/config"
	"github.com/krunaldodiya/tcc-manager/internal/engine"
	"github.com/krunaldodiya/tcc-manager/internal/hostexec"
)

// RootOptions holds global flags for all commands, plus the state
// PersistentPreRunE derives from them.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Runner overrides the process runner. Nil runs real processes with the
	// configured timeout.
	Runner hostexec.Runner

	// EngineOptions are appended when the engine is built.
	EngineOptions []engine.Option

	config     *config.Config
	configFile string
	logger     *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tcc-manager CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tcc-manager",
		Short: "Manage camera and microphone permissions",
		Long: `tcc-manager lists installed applications with their camera and
microphone authorization, and grants or revokes it.

Permissions are read from the user store first and the system store
second. Changes are written to the user store and verified by re-reading
it before they are reported as done.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "",
		"config file (default $"+config.EnvConfigPath+" or $XDG_CONFIG_HOME/tcc-manager/config.yaml)")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewRefreshCommand(opts))
	cmd.AddCommand(NewGrantCommand(opts))
	cmd.AddCommand(NewRevokeCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewDoctorCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// setup loads the configuration and installs the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, path, err := config.LoadResolved(o.ConfigPath)
	if err != nil {
		return o.formatter(cmd).Fail(ExitCommandError, "loading config", err)
	}
	o.config = cfg
	o.configFile = path

	level := ParseLevel(cfg.Logging.Level)
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.logger = NewLogger(cmd.ErrOrStderr(), cfg.Logging.Format, level)
	slog.SetDefault(o.logger)
	return nil
}

// formatter returns the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// buildApp wires the services for the loaded configuration.
func (o *RootOptions) buildApp(cmd *cobra.Command, extra ...engine.Option) (*App, error) {
	runner := o.Runner
	if runner == nil {
		runner = hostexec.NewExecRunner(
			hostexec.WithTimeout(o.config.Exec.Timeout),
			hostexec.WithLogger(o.logger),
		)
	}
	opts := append(slices.Clone(o.EngineOptions), extra...)
	app, err := BuildApp(o.config, runner, o.logger, opts...)
	if err != nil {
		return nil, o.formatter(cmd).Fail(ExitCommandError, "building services", err)
	}
	return app, nil
}

// warnUnavailableStores reports each store that cannot be read, once per
// command, before any permission is queried.
func (o *RootOptions) warnUnavailableStores(cmd *cobra.Command, app *App, out *OutputFormatter) {
	for _, st := range app.Preflight(cmd.Context()) {
		if st.Available {
			continue
		}
		o.logger.Warn("permission store unavailable", "scope", st.Scope, "path", st.Path, "error", st.Error)
		out.Warn(fmt.Sprintf("%s store unavailable at %s; its grants read as denied", st.Scope, st.Path))
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
