/*
Package config loads server settings.

PRECEDENCE (lowest to highest):
  1. Built-in defaults
  2. .env file in the working directory (optional)
  3. Process environment
  4. Command-line flags

ENVIRONMENT:
  PORT               HTTP port (default 8080)
  DB_PATH            SQLite path, ":memory:" allowed (default studio-finance.db)
  LOG_LEVEL          debug|info|warn|error (default info)
  LOG_FORMAT         json|console (default json)
  SNAPSHOT_ENABLED   run the payable snapshot job (default true)
  SNAPSHOT_INTERVAL  Go duration between snapshot runs (default 1h)
  CORS_ORIGINS       comma-separated allowed origins (default *)
*/
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all server settings.
type Config struct {
	Port             int           `validate:"min=1,max=65535"`
	DBPath           string        `validate:"required"`
	LogLevel         string        `validate:"oneof=debug info warn error"`
	LogFormat        string        `validate:"oneof=json console"`
	SnapshotEnabled  bool
	SnapshotInterval time.Duration `validate:"min=1s"`
	CORSOrigins      []string      `validate:"min=1"`

	// EnvFileLoaded reports whether a .env file was found.
	EnvFileLoaded bool
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Port:             8080,
		DBPath:           "studio-finance.db",
		LogLevel:         "info",
		LogFormat:        "json",
		SnapshotEnabled:  true,
		SnapshotInterval: time.Hour,
		CORSOrigins:      []string{"*"},
	}
}

// Load reads .env, the environment and then args, and validates the result.
func Load(args []string) (Config, error) {
	cfg := Default()
	cfg.EnvFileLoaded = godotenv.Load() == nil

	if err := cfg.loadFromEnv(); err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json or console)")
	fs.BoolVar(&cfg.SnapshotEnabled, "snapshots", cfg.SnapshotEnabled, "Run the payable snapshot job")
	fs.DurationVar(&cfg.SnapshotInterval, "snapshot-interval", cfg.SnapshotInterval, "Interval between payable snapshots")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Port = port
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv("SNAPSHOT_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SNAPSHOT_ENABLED: %w", err)
		}
		c.SnapshotEnabled = enabled
	}
	if v := os.Getenv("SNAPSHOT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SNAPSHOT_INTERVAL: %w", err)
		}
		c.SnapshotInterval = d
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORSOrigins = origins
	}
	return nil
}
