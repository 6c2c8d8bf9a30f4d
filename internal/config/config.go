// Package config loads client settings.
//
// Sources in increasing priority: built-in defaults, an optional TOML file,
// CTF_* environment variables and finally command-line flags, which the CLI
// applies on top of Load's result.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Mirror storage backends
const (
	StoreBolt   = "bolt"
	StoreSQLite = "sqlite"
)

// Defaults
const (
	DefaultServerURL  = "http://localhost:8000"
	DefaultAPIBase    = "/api/v0"
	DefaultAuthScheme = "Bearer"
	DefaultTimeout    = 30 * time.Second
	DefaultLogLevel   = "warn"
	DefaultFlagPrefix = "ractf"
	DefaultDirName    = ".ctfclient"
	EnvPrefix         = "CTF_"
)

// ErrInvalid is wrapped by every Validate failure
var ErrInvalid = errors.New("invalid configuration")

// Config is the client configuration
type Config struct {
	ServerURL  string        `env:"SERVER_URL"`
	APIBase    string        `env:"API_BASE"`
	DBPath     string        `env:"DB_PATH"`
	Store      string        `env:"STORE"`
	AuthScheme string        `env:"AUTH_SCHEME"`
	LogLevel   string        `env:"LOG_LEVEL"`
	LockPath   string        `env:"LOCK_PATH"`
	FlagPrefix string        `env:"FLAG_PREFIX"`
	Timeout    time.Duration `env:"TIMEOUT"`
}

// Default returns the built-in configuration. Paths live under the user's
// home directory, or the working directory if it cannot be determined.
func Default() Config {
	dir := DefaultDirName
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, DefaultDirName)
	}
	return Config{
		ServerURL:  DefaultServerURL,
		APIBase:    DefaultAPIBase,
		DBPath:     filepath.Join(dir, "session.db"),
		Store:      StoreBolt,
		AuthScheme: DefaultAuthScheme,
		LogLevel:   DefaultLogLevel,
		FlagPrefix: DefaultFlagPrefix,
		Timeout:    DefaultTimeout,
	}
}

// DefaultPath returns the config file looked up when none is given
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, DefaultDirName, "config.toml")
	}
	return filepath.Join(DefaultDirName, "config.toml")
}

// Load applies the file at path (skipped when path is empty, or when it is
// the default path and does not exist) and the environment over the defaults.
func Load(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			if !(errors.Is(err, os.ErrNotExist) && path == DefaultPath()) {
				return Config{}, err
			}
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	var file fileConfig
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, path, strings.Join(keys, ", "))
	}
	return file.apply(cfg)
}

// fileConfig mirrors Config with optional fields, only keys present in the
// file override defaults
type fileConfig struct {
	ServerURL  *string `toml:"server_url"`
	APIBase    *string `toml:"api_base"`
	DBPath     *string `toml:"db_path"`
	Store      *string `toml:"store"`
	AuthScheme *string `toml:"auth_scheme"`
	LogLevel   *string `toml:"log_level"`
	LockPath   *string `toml:"lock_path,omitempty"`
	FlagPrefix *string `toml:"flag_prefix"`
	Timeout    *string `toml:"timeout"`
}

func (f fileConfig) apply(cfg *Config) error {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&cfg.ServerURL, f.ServerURL)
	set(&cfg.APIBase, f.APIBase)
	set(&cfg.DBPath, f.DBPath)
	set(&cfg.Store, f.Store)
	set(&cfg.AuthScheme, f.AuthScheme)
	set(&cfg.LogLevel, f.LogLevel)
	set(&cfg.LockPath, f.LockPath)
	set(&cfg.FlagPrefix, f.FlagPrefix)

	if f.Timeout != nil {
		d, err := time.ParseDuration(*f.Timeout)
		if err != nil {
			return fmt.Errorf("%w: timeout: %w", ErrInvalid, err)
		}
		cfg.Timeout = d
	}
	return nil
}

// WriteTOML writes the configuration in the config file format
func (c Config) WriteTOML(w io.Writer) error {
	timeout := c.Timeout.String()
	file := fileConfig{
		ServerURL:  &c.ServerURL,
		APIBase:    &c.APIBase,
		DBPath:     &c.DBPath,
		Store:      &c.Store,
		AuthScheme: &c.AuthScheme,
		LogLevel:   &c.LogLevel,
		FlagPrefix: &c.FlagPrefix,
		Timeout:    &timeout,
	}
	if c.LockPath != "" {
		file.LockPath = &c.LockPath
	}
	if err := toml.NewEncoder(w).Encode(file); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate checks field values
func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: server url %q must be an absolute http(s) URL", ErrInvalid, c.ServerURL)
	}
	if c.APIBase != "" && !strings.HasPrefix(c.APIBase, "/") {
		return fmt.Errorf("%w: api base %q must start with /", ErrInvalid, c.APIBase)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: db path cannot be empty", ErrInvalid)
	}
	switch c.Store {
	case StoreBolt, StoreSQLite:
	default:
		return fmt.Errorf("%w: store must be %q or %q, got %q", ErrInvalid, StoreBolt, StoreSQLite, c.Store)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalid)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// BaseURL joins the server URL and the API base
func (c Config) BaseURL() string {
	return strings.TrimRight(c.ServerURL, "/") + c.APIBase
}

// ResolvedLockPath returns the lock file guarding the mirror database
func (c Config) ResolvedLockPath() string {
	if c.LockPath != "" {
		return c.LockPath
	}
	return c.DBPath + ".lock"
}

// ParseLevel maps a level name to slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: unknown log level %q", ErrInvalid, level)
	}
}
