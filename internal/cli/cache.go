package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/krunaldodiya/tcc-manager/internal/cache"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the cached application list",
	}
	cmd.AddCommand(newCacheShowCommand(rootOpts))
	cmd.AddCommand(newCacheClearCommand(rootOpts))
	cmd.AddCommand(newCacheSchemaCommand(rootOpts))
	return cmd
}

// CacheShowResult is the JSON payload of cache show.
type CacheShowResult struct {
	Path  string         `json:"path"`
	Valid bool           `json:"valid"`
	Apps  []ir.AppRecord `json:"apps"`
}

func newCacheShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cached application list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			c := cache.New(opts.config.Cache.Path, opts.logger)

			records, ok := c.Load()
			if out.JSON() {
				if records == nil {
					records = []ir.AppRecord{}
				}
				return out.Success(CacheShowResult{Path: c.Path(), Valid: ok, Apps: records})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cache: %s\n", c.Path())
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No valid cache document")
				return nil
			}
			writeTable(cmd.OutOrStdout(), records)
			return nil
		},
	}
}

func newCacheClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the cached application list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			c := cache.New(opts.config.Cache.Path, opts.logger)

			if err := c.Clear(); err != nil {
				return out.Fail(ExitFailure, "clearing cache", err)
			}
			if out.JSON() {
				return out.Success(map[string]any{"path": c.Path(), "cleared": true})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", c.Path())
			return nil
		},
	}
}

func newCacheSchemaCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the cache document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := cache.Schema()
			if err != nil {
				return opts.formatter(cmd).Fail(ExitFailure, "generating schema", err)
			}
			_, err = cmd.OutOrStdout().Write(schema)
			return err
		},
	}
}
