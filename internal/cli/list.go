package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/krunaldodiya/tcc-manager/internal/engine"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Refresh bool
	Granted bool // only apps with at least one grant
}

// ListResult is the JSON payload of list and refresh.
type ListResult struct {
	Apps   []ir.AppRecord `json:"apps"`
	Count  int            `json:"count"`
	Source string         `json:"source"` // "cache" or "store"
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications and their permissions",
		Long: `List installed applications with camera and microphone authorization.

The cached list is shown when one exists; --refresh rediscovers
applications and re-reads every permission first.

Examples:
  tcc-manager list
  tcc-manager list --refresh --granted
  tcc-manager list --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Refresh, "refresh", "r", false, "rediscover and re-read before listing")
	cmd.Flags().BoolVar(&opts.Granted, "granted", false, "only show apps with at least one grant")

	return cmd
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts, Refresh: true}

	return &cobra.Command{
		Use:   "refresh",
		Short: "Rediscover applications and re-read permissions",
		Long: `Rediscover installed applications, re-read camera and microphone
authorization for each, and rewrite the cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	rec := &engine.Recorder{}
	app, err := opts.buildApp(cmd, engine.WithObserver(rec))
	if err != nil {
		return err
	}
	opts.warnUnavailableStores(cmd, app, out)

	var records []ir.AppRecord
	if opts.Refresh {
		records, err = app.Engine.Refresh(cmd.Context())
	} else {
		records, err = app.Engine.Load(cmd.Context())
	}
	// the list is still valid when only persistence failed
	if err != nil && !engine.IsCacheError(err) {
		return out.Fail(ExitFailure, "listing applications", err)
	}
	if err != nil {
		out.VerboseLog("warning: %v", err)
	}

	source := "store"
	if events := rec.Events(); len(events) > 0 && events[0].Kind == engine.EventLoad && events[0].Detail == "cache" {
		source = "cache"
	}

	if opts.Granted {
		records = filterGranted(records)
	}

	if out.JSON() {
		if records == nil {
			records = []ir.AppRecord{}
		}
		return out.Success(ListResult{Apps: records, Count: len(records), Source: source})
	}

	writeTable(cmd.OutOrStdout(), records)
	out.VerboseLog("%d apps (from %s)", len(records), source)
	return nil
}

func filterGranted(records []ir.AppRecord) []ir.AppRecord {
	var out []ir.AppRecord
	for _, r := range records {
		if r.Permissions.Camera || r.Permissions.Microphone {
			out = append(out, r)
		}
	}
	return out
}

func writeTable(w io.Writer, records []ir.AppRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No applications found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCAMERA\tMICROPHONE\tPATH")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, mark(r.Permissions.Camera), mark(r.Permissions.Microphone), r.Path)
	}
	tw.Flush()
}
