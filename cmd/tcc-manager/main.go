// Command tcc-manager lists and changes camera and microphone permissions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/krunaldodiya/tcc-manager/internal/cli"
)

// Version is set at build time.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := cli.NewRootCommand()
	cmd.Version = version

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	// commands that already reported in their output format carry an
	// ExitError; anything else (flag parsing, cobra usage) is printed here
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Err == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	cancel()
	os.Exit(cli.GetExitCode(err))
}
