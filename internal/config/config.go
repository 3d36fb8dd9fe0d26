// Package config loads runtime configuration from command-line flags, an
// optional YAML file, a .env file and EXAMPREP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // Timezones resolve without a system zoneinfo database.

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/examprep/internal/sm2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "EXAMPREP_"

// Config is the runtime configuration of the examprep server.
type Config struct {
	DB              string        `koanf:"db" validate:"required"`
	Address         string        `koanf:"address" validate:"required"`
	ReposDir        string        `koanf:"repos_dir" validate:"required"`
	Sources         []string      `koanf:"sources" validate:"dive,required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	DueLimit        int           `koanf:"due_limit" validate:"gte=1,lte=500"`
	MaxNewPerDay    int           `koanf:"max_new_per_day" validate:"gte=0"`
	MaxInterval     int           `koanf:"max_interval" validate:"gte=0"`
	Timezone        string        `koanf:"timezone" validate:"required,timezone"`
	CORSOrigins     []string      `koanf:"cors_origins" validate:"dive,required"`
	LogLevel        string        `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat       string        `koanf:"log_format" validate:"oneof=text json"`
}

// flagKeys maps configuration flags to their koanf keys. Flags not listed
// here (such as one-shot actions) are not configuration.
var flagKeys = map[string]string{
	"db":               "db",
	"address":          "address",
	"repos-dir":        "repos_dir",
	"source":           "sources",
	"shutdown-timeout": "shutdown_timeout",
	"due-limit":        "due_limit",
	"max-new-per-day":  "max_new_per_day",
	"max-interval":     "max_interval",
	"timezone":         "timezone",
	"cors-origin":      "cors_origins",
	"log-level":        "log_level",
	"log-format":       "log_format",
}

// listKeys are read from the environment as comma-separated lists.
var listKeys = map[string]bool{"sources": true, "cors_origins": true}

// NewFlagSet returns a flag set holding every configuration flag and its
// default. Callers may add their own flags before passing it to Load.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Path to a YAML configuration file")
	fs.String("db", "examprep.db", "Path to the SQLite database file")
	fs.String("address", ":8080", "HTTP listen address")
	fs.String("repos-dir", "repos", "Directory for cloned git sources")
	fs.StringSlice("source", nil, "Question source to register at startup (repeatable)")
	fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	fs.Int("due-limit", 20, "Default number of cards returned by the due endpoint")
	fs.Int("max-new-per-day", sm2.DefaultMaxNewPerDay, "Never-reviewed questions offered per day")
	fs.Int("max-interval", 0, "Maximum review interval in days (0 = uncapped)")
	fs.String("timezone", "UTC", "IANA timezone that decides the current review day")
	fs.StringSlice("cors-origin", []string{"*"}, "Allowed CORS origin (repeatable)")
	fs.String("log-level", "info", "Log level: debug, info, warn or error")
	fs.String("log-format", "text", "Log format: text or json")
	return fs
}

// Load parses args into fs and builds the configuration. Precedence, lowest
// first: flag defaults, the YAML file, the environment (including .env),
// explicitly set flags.
func Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	err = k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Location returns the timezone that decides which day "today" is.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Scheduler builds the SM-2 scheduler described by the configuration.
func (c *Config) Scheduler() (*sm2.Scheduler, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return sm2.NewScheduler(sm2.Config{
		MaximumInterval: c.MaxInterval,
		MaxNewPerDay:    c.MaxNewPerDay,
		Location:        loc,
	})
}

// Logger builds a structured logger writing to w at the configured level and format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
