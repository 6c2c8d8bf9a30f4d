package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/ctfclient/internal/client/cli"
	"github.com/iudanet/ctfclient/internal/client/iocli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.New(iocli.NewStdio(),
		cli.WithVersion(fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit)),
	)
	if err := app.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", cli.ErrorMessage(err))
		stop()
		os.Exit(1)
	}
}
