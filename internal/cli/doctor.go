package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/krunaldodiya/tcc-manager/internal/store"
)

// DoctorReport is the JSON payload of doctor.
type DoctorReport struct {
	ConfigFile string              `json:"config_file,omitempty"`
	Stores     []store.StoreStatus `json:"stores"`
	Reader     string              `json:"reader"`
	Mutation   string              `json:"mutation"`
	Helper     string              `json:"helper,omitempty"`
	HelperErr  string              `json:"helper_error,omitempty"`
	CachePath  string              `json:"cache_path"`
	Healthy    bool                `json:"healthy"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check store access and helper availability",
		Long: `Probe both authorization stores and locate the mutation helper.

An unreadable store is reported, not fatal: queries against it read as
"not granted". Reading the stores usually requires Full Disk Access for
the terminal running tcc-manager.

Exits 1 when any check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(rootOpts, cmd)
		},
	}
}

func runDoctor(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	app, err := opts.buildApp(cmd)
	if err != nil {
		return err
	}
	cfg := app.Config

	report := DoctorReport{
		ConfigFile: opts.configFile,
		Reader:     cfg.Store.Strategy,
		Mutation:   cfg.Mutation.Strategy,
		CachePath:  app.Cache.Path(),
		Healthy:    true,
	}

	report.Stores = app.Preflight(cmd.Context())
	if store.AnyUnavailable(report.Stores) {
		report.Healthy = false
	}
	if report.Stores == nil {
		report.Stores = []store.StoreStatus{}
	}

	if app.Helper != nil {
		path, err := app.Helper.Path()
		if err != nil {
			report.HelperErr = err.Error()
			report.Healthy = false
		} else {
			report.Helper = path
		}
	}

	if out.JSON() {
		if err := out.Success(report); err != nil {
			return err
		}
	} else {
		writeDoctor(cmd, report)
	}
	if !report.Healthy {
		return NewExitError(ExitFailure, "doctor found problems")
	}
	return nil
}

func writeDoctor(cmd *cobra.Command, r DoctorReport) {
	w := cmd.OutOrStdout()
	ok := color.GreenString("ok")
	fail := color.New(color.FgRed, color.Bold).Sprint("FAIL")

	cfgFile := r.ConfigFile
	if cfgFile == "" {
		cfgFile = "(defaults)"
	}
	fmt.Fprintf(w, "config      %s\n", cfgFile)
	fmt.Fprintf(w, "reader      %s\n", r.Reader)
	for _, st := range r.Stores {
		status := ok
		if !st.Available {
			status = fail + " " + st.Error
		}
		fmt.Fprintf(w, "  %-8s  %s  %s\n", st.Scope, st.Path, status)
	}
	fmt.Fprintf(w, "mutation    %s\n", r.Mutation)
	switch {
	case r.HelperErr != "":
		fmt.Fprintf(w, "  helper    %s %s\n", fail, r.HelperErr)
	case r.Helper != "":
		fmt.Fprintf(w, "  helper    %s  %s\n", r.Helper, ok)
	}
	fmt.Fprintf(w, "cache       %s\n", r.CachePath)
}
