package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/krunaldodiya/tcc-manager/internal/engine"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// ToggleOptions holds flags for the grant and revoke commands.
type ToggleOptions struct {
	*RootOptions
	Grant   bool
	Service ir.ServiceKind
	Trace   bool // include the engine event trace in the output
}

// ToggleOutput is the JSON payload of grant and revoke.
type ToggleOutput struct {
	App        ir.AppRecord   `json:"app"`
	Service    ir.ServiceKind `json:"service"`
	Granted    bool           `json:"granted"`
	Confirmed  bool           `json:"confirmed"`
	Reconciled bool           `json:"reconciled"`
	Events     []engine.Event `json:"events,omitempty"`
}

// NewGrantCommand creates the grant command.
func NewGrantCommand(rootOpts *RootOptions) *cobra.Command {
	return newToggleCommand(rootOpts, true)
}

// NewRevokeCommand creates the revoke command.
func NewRevokeCommand(rootOpts *RootOptions) *cobra.Command {
	return newToggleCommand(rootOpts, false)
}

func newToggleCommand(rootOpts *RootOptions, grant bool) *cobra.Command {
	opts := &ToggleOptions{RootOptions: rootOpts, Grant: grant}

	use, verb := "grant", "Grant"
	if !grant {
		use, verb = "revoke", "Revoke"
	}

	cmd := &cobra.Command{
		Use:   use + " <app>",
		Short: verb + " camera or microphone access",
		Long: verb + ` camera or microphone access for an application.

<app> is a bundle path or an application name (case-insensitive, with
or without ".app"). The change is written to the user store and, under
the verify policy, confirmed by re-reading the store before the command
returns.

Examples:
  tcc-manager ` + use + ` Zoom --service camera
  tcc-manager ` + use + ` /Applications/Zoom.app -s microphone --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToggle(opts, cmd, args[0])
		},
	}

	cmd.Flags().VarP(&opts.Service, "service", "s", "service to change (camera|microphone)")
	_ = cmd.MarkFlagRequired("service")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "include the event trace in the output")

	return cmd
}

func runToggle(opts *ToggleOptions, cmd *cobra.Command, target string) error {
	out := opts.formatter(cmd)
	ctx := cmd.Context()

	rec := &engine.Recorder{}
	app, err := opts.buildApp(cmd, engine.WithObserver(rec))
	if err != nil {
		return err
	}
	opts.warnUnavailableStores(cmd, app, out)

	records, err := app.Engine.Load(ctx)
	if err != nil && !engine.IsCacheError(err) {
		return out.Fail(ExitFailure, "loading applications", err)
	}

	match, err := findApp(records, target)
	if err != nil {
		return out.Fail(ExitCommandError, "selecting application", err)
	}
	out.VerboseLog("%s %s for %s", mutatorVerb(opts.Grant), opts.Service.Label(), match.Path)

	res, err := app.Engine.Toggle(ctx, match.Path, opts.Service, opts.Grant)
	// optimistic toggles verify in the background
	app.Engine.Wait()
	if err != nil && !engine.IsCacheError(err) {
		return out.Fail(ExitFailure, fmt.Sprintf("%s failed", mutatorVerb(opts.Grant)), err)
	}

	result := ToggleOutput{
		App:        res.Record,
		Service:    opts.Service,
		Granted:    res.Record.Permissions.Get(opts.Service),
		Confirmed:  res.Confirmed,
		Reconciled: res.Reconciled,
	}
	if opts.Trace {
		result.Events = rec.Events()
	}

	if out.JSON() {
		return out.SuccessOp(res.OpID, result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %s %s\n", res.Record.Name, opts.Service.Label(), mark(result.Granted))
	if result.Reconciled {
		fmt.Fprintln(w, "The store did not confirm the change in time; showing the value it reports now.")
	}
	if opts.Trace {
		for _, ev := range result.Events {
			fmt.Fprintf(w, "  %3d %-9s %s\n", ev.Seq, ev.Kind, eventSummary(ev))
		}
	}
	return nil
}

func mutatorVerb(grant bool) string {
	if grant {
		return "grant"
	}
	return "revoke"
}

// findApp picks the record a command-line argument names: an exact bundle
// path, or a unique case-insensitive application name.
func findApp(records []ir.AppRecord, target string) (ir.AppRecord, error) {
	if strings.Contains(target, "/") {
		clean := filepath.Clean(target)
		for _, r := range records {
			if r.Path == clean {
				return r, nil
			}
		}
		return ir.AppRecord{}, unknownApp(target)
	}

	name := norm.NFC.String(strings.TrimSuffix(target, ir.BundleExtension))
	var matches []ir.AppRecord
	for _, r := range records {
		if strings.EqualFold(r.Name, name) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return ir.AppRecord{}, unknownApp(target)
	case 1:
		return matches[0], nil
	}

	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = m.Path
	}
	return ir.AppRecord{}, &engine.SyncError{
		Code:    engine.ErrCodeUnknownApp,
		Message: fmt.Sprintf("%q matches %d applications (%s); pass the bundle path", target, len(matches), strings.Join(paths, ", ")),
	}
}

func unknownApp(target string) error {
	return &engine.SyncError{
		Code:    engine.ErrCodeUnknownApp,
		Message: fmt.Sprintf("no application matches %q", target),
		Path:    target,
	}
}

func eventSummary(ev engine.Event) string {
	var parts []string
	if ev.Service != "" {
		parts = append(parts, ev.Service)
	}
	if ev.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", ev.Attempt))
	}
	if ev.Granted != nil {
		parts = append(parts, fmt.Sprintf("granted=%t", *ev.Granted))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("count=%d", ev.Count))
	}
	if ev.Detail != "" {
		parts = append(parts, ev.Detail)
	}
	return strings.Join(parts, " ")
}
