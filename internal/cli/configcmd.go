package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/krunaldodiya/tcc-manager/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or check configuration",
	}
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	cmd.AddCommand(newConfigCheckCommand(rootOpts))
	return cmd
}

func newConfigShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *opts.config
			cfg.Sync.VerifyDelayRaw = cfg.Sync.VerifyDelay.String()
			cfg.Exec.TimeoutRaw = cfg.Exec.Timeout.String()

			if opts.Format == "json" {
				return opts.formatter(cmd).Success(cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return opts.formatter(cmd).Fail(ExitFailure, "encoding config", err)
			}
			return enc.Close()
		},
	}
}

func newConfigCheckCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			if _, err := config.Load(args[0]); err != nil {
				return out.Fail(ExitCommandError, "invalid config", err)
			}
			if out.JSON() {
				return out.Success(map[string]any{"file": args[0], "valid": true})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", args[0])
			return nil
		},
	}
}
