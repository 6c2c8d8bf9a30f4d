package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/ctfclient/internal/config"
	"github.com/iudanet/ctfclient/internal/fakeapi"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

type serverFlags struct {
	addr     string
	apiBase  string
	secret   string
	logLevel string
	user     string
	password string
	tokenTTL time.Duration
	eventIn  time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags serverFlags

	cmd := &cobra.Command{
		Use:          "devserver",
		Short:        "In-memory RACTF compatible server for local development",
		Version:      fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", "localhost:8000", "listen address")
	cmd.Flags().StringVar(&flags.apiBase, "api-base", config.DefaultAPIBase, "API path prefix")
	cmd.Flags().StringVar(&flags.secret, "secret", "ractf-dev-secret", "JWT signing secret")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&flags.user, "user", "demo", "seeded verified account, empty disables seeding")
	cmd.Flags().StringVar(&flags.password, "password", "demo-password", "password of the seeded account")
	cmd.Flags().DurationVar(&flags.tokenTTL, "token-ttl", fakeapi.DefaultTokenTTL, "session token lifetime")
	cmd.Flags().DurationVar(&flags.eventIn, "event-in", time.Hour, "time until the competition_end countdown")
	return cmd
}

func run(ctx context.Context, flags serverFlags) error {
	level, err := config.ParseLevel(flags.logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	srv := fakeapi.New(
		fakeapi.WithLogger(logger),
		fakeapi.WithAPIBase(flags.apiBase),
		fakeapi.WithSecret([]byte(flags.secret)),
		fakeapi.WithTokenTTL(flags.tokenTTL),
		fakeapi.WithVersion(Version),
	)
	defer srv.Close()

	now := time.Now()
	srv.Platform().SetCountdown("registration_open", now.Add(-24*time.Hour))
	srv.Platform().SetCountdown("competition_start", now.Add(-time.Hour))
	srv.Platform().SetCountdown("competition_end", now.Add(flags.eventIn))

	if flags.user != "" {
		if _, err := srv.Platform().SeedAccount(flags.user, flags.password, flags.user+"@example.com"); err != nil {
			return err
		}
		logger.Info("seeded account", "username", flags.user)
	}

	httpServer := &http.Server{
		Addr:              flags.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("devserver listening", "addr", flags.addr, "api_base", srv.APIBase(), "version", Version)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}
