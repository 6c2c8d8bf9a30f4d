// Package cli is the command-line front-end. Every command is a "page":
// it reads the session store and dispatches user actions to it.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/iudanet/ctfclient/internal/client/api"
	"github.com/iudanet/ctfclient/internal/client/countdown"
	"github.com/iudanet/ctfclient/internal/client/iocli"
	"github.com/iudanet/ctfclient/internal/client/plugin"
	"github.com/iudanet/ctfclient/internal/client/session"
	"github.com/iudanet/ctfclient/internal/client/storage"
	"github.com/iudanet/ctfclient/internal/client/storage/boltdb"
	"github.com/iudanet/ctfclient/internal/client/storage/sqlite"
	"github.com/iudanet/ctfclient/internal/config"
)

// Command annotations
const (
	annotationAuth    = "auth"
	annotationSession = "session"

	authRequired = "required"
	sessionNone  = "none"
)

// ErrNotLoggedIn is returned by commands behind the auth guard
var ErrNotLoggedIn = errors.New("not authenticated, run 'ctfclient login' first")

type globalFlags struct {
	configPath string
	serverURL  string
	dbPath     string
	store      string
	logLevel   string
	offline    bool
}

// Cli wires the configuration, the persisted mirror and the session store
// for the lifetime of one command
type Cli struct {
	io        iocli.IO
	logOut    io.Writer
	environ   map[string]string
	logger    *slog.Logger
	mirror    storage.MirrorStorage
	client    *api.Client
	store     *session.Store
	plugins   *plugin.Registry
	countdown *countdown.Tracker
	version   string
	cfg       config.Config
	flags     globalFlags
}

// Option настраивает Cli
type Option func(*Cli)

// WithEnviron replaces the process environment used for CTF_* settings
func WithEnviron(environ map[string]string) Option {
	return func(c *Cli) { c.environ = environ }
}

// WithVersion sets the string printed by --version
func WithVersion(version string) Option {
	return func(c *Cli) { c.version = version }
}

// WithLogOutput sets where logs go, stderr by default
func WithLogOutput(w io.Writer) Option {
	return func(c *Cli) { c.logOut = w }
}

// New создает CLI поверх stdio
func New(stdio iocli.IO, opts ...Option) *Cli {
	c := &Cli{
		io:      stdio,
		logOut:  os.Stderr,
		version: "dev",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs the command line args and releases everything it opened
func (c *Cli) Execute(ctx context.Context, args []string) error {
	root := c.Command()
	root.SetArgs(args)
	defer c.close()
	return root.ExecuteContext(ctx)
}

// Command builds the command tree
func (c *Cli) Command() *cobra.Command {
	root := &cobra.Command{
		Use:               "ctfclient",
		Short:             "Terminal client for RACTF competitions",
		Version:           c.version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.SetOut(c.io)
	root.SetErr(c.io)

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.configPath, "config", config.DefaultPath(), "config file")
	pf.StringVar(&c.flags.serverURL, "server", "", "server URL (default "+config.DefaultServerURL+")")
	pf.StringVar(&c.flags.dbPath, "db", "", "path to the session database")
	pf.StringVar(&c.flags.store, "store", "", "session storage backend: bolt or sqlite")
	pf.StringVar(&c.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&c.flags.offline, "offline", false, "do not contact the server on startup")

	root.AddCommand(
		c.registerCmd(),
		c.verifyEmailCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.statusCmd(),
		c.syncCmd(),
		c.challengesCmd(),
		c.challengeCmd(),
		c.attemptCmd(),
		c.teamCmd(),
		c.twoFactorCmd(),
		c.settingsCmd(),
		c.countdownCmd(),
		c.configCmd(),
	)
	return root
}

// setup загружает конфигурацию, открывает хранилище и запускает сессию
func (c *Cli) setup(cmd *cobra.Command, _ []string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}

	level, err := config.ParseLevel(c.cfg.LogLevel)
	if err != nil {
		return err
	}
	c.logger = slog.New(slog.NewTextHandler(c.logOut, &slog.HandlerOptions{Level: level}))

	if annotation(cmd, annotationSession) == sessionNone {
		return nil
	}

	ctx := cmd.Context()
	if err := c.openSession(ctx); err != nil {
		return err
	}

	if annotation(cmd, annotationAuth) == authRequired {
		if !c.store.Authenticated() {
			return ErrNotLoggedIn
		}
		if !c.store.Ready() {
			c.printOffline(ctx)
		}
	}
	return nil
}

func (c *Cli) loadConfig() error {
	cfg, err := config.Load(c.flags.configPath, c.environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.flags.serverURL != "" {
		cfg.ServerURL = c.flags.serverURL
	}
	if c.flags.dbPath != "" {
		cfg.DBPath = c.flags.dbPath
	}
	if c.flags.store != "" {
		cfg.Store = c.flags.store
	}
	if c.flags.logLevel != "" {
		cfg.LogLevel = c.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

func (c *Cli) openSession(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(c.cfg.DBPath), 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	mirror, err := openMirror(ctx, c.cfg)
	if err != nil {
		return err
	}
	c.mirror = mirror

	c.client = api.NewClient(c.cfg.BaseURL(),
		api.WithAuthScheme(c.cfg.AuthScheme),
		api.WithTimeout(c.cfg.Timeout),
		api.WithLogger(c.logger),
		api.WithTokenSource(api.TokenSourceFunc(func(context.Context) (string, error) {
			return c.store.Token(), nil
		})),
	)

	opts := []session.Option{
		session.WithLogger(c.logger),
		session.WithNavigator(session.NavigatorFunc(c.navigate)),
		session.WithProcessLock(flock.New(c.cfg.ResolvedLockPath())),
	}
	if c.flags.offline {
		opts = append(opts, session.WithOfflineStart())
	}
	c.store = session.New(c.client, mirror, opts...)

	c.plugins = plugin.NewRegistry()
	if err := plugin.RegisterBuiltins(c.plugins); err != nil {
		return fmt.Errorf("failed to register plugins: %w", err)
	}
	c.countdown = countdown.NewTracker(c.client, countdown.WithLogger(c.logger))

	if err := c.store.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	return nil
}

func openMirror(ctx context.Context, cfg config.Config) (storage.MirrorStorage, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return sqlite.New(ctx, cfg.DBPath)
	default:
		return boltdb.New(ctx, cfg.DBPath)
	}
}

func (c *Cli) close() {
	if c.store != nil {
		c.store.Close()
	}
	if c.mirror != nil {
		if err := c.mirror.Close(); err != nil {
			c.logger.Error("failed to close database", "error", err)
		}
	}
}

// navigate prints the next step the store asks for
func (c *Cli) navigate(view session.View) {
	switch view {
	case session.ViewHome:
		c.io.Println("Run 'ctfclient challenges' to see the challenges.")
	case session.ViewRegisterEmail:
		c.io.Println("Check your inbox and run 'ctfclient verify-email <token>' to activate the account.")
	case session.ViewLogin:
		c.io.Println("Run 'ctfclient login' to sign in.")
	}
}

func (c *Cli) printOffline(ctx context.Context) {
	last, err := c.mirror.LastSync(ctx)
	switch {
	case err != nil || last.IsZero():
		c.io.Println("⚠️  Offline: showing cached data.")
	default:
		c.io.Printf("⚠️  Offline: showing cached data from %s.\n", last.Local().Format("2006-01-02 15:04:05"))
	}
	c.io.Println()
}

// refresh reconciles after an action and reports what happened to the cache
func (c *Cli) refresh(ctx context.Context) error {
	err := c.store.Reconcile(ctx)
	if session.IsDegraded(err) || errors.Is(err, session.ErrSuperseded) {
		c.io.Println("⚠️  Server unreachable, cached data may be stale.")
		return nil
	}
	return err
}

func annotation(cmd *cobra.Command, key string) string {
	for ; cmd != nil; cmd = cmd.Parent() {
		if v, ok := cmd.Annotations[key]; ok {
			return v
		}
	}
	return ""
}

func requireAuth(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationAuth] = authRequired
	return cmd
}

// ErrorMessage returns the text shown to the user for a failed command
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionRevoked):
		return "Your session is no longer valid, please log in again."
	case api.IsTransport(err):
		return "Server unreachable: " + api.Message(err)
	default:
		return api.Message(err)
	}
}
