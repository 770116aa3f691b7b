// Package config loads server settings from an optional .env file, the
// environment and command-line flags, in increasing priority.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds the server settings.
type Config struct {
	Port             int
	DBPath           string
	Stage            string
	LogLevel         string
	ParamsPath       string // empty: embedded default tables
	RecalcInterval   time.Duration
	SchedulerEnabled bool
	CORSOrigins      []string
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Config {
	return Config{
		Port:             8080,
		DBPath:           "fiscal.db",
		Stage:            "dev",
		LogLevel:         "info",
		RecalcInterval:   time.Hour,
		SchedulerEnabled: true,
		CORSOrigins:      []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Load reads envFile when it exists, then the environment, then args.
// A missing envFile is not an error.
func Load(envFile string, args []string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "load %s", envFile)
		}
	}

	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("fiscal-engine", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.ParamsPath, "params", cfg.ParamsPath, "fiscal parameter table (JSON)")
	if err := fs.Parse(args); err != nil {
		return Config{}, errors.Wrap(err, "parse flags")
	}
	return cfg, nil
}

// FromEnv applies environment values on top of Defaults. lookup is usually
// os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "PORT")
		}
		cfg.Port = port
	}
	if v, ok := lookup("DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := lookup("STAGE"); ok && v != "" {
		cfg.Stage = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup("FISCAL_PARAMS_PATH"); ok {
		cfg.ParamsPath = v
	}
	if v, ok := lookup("RECALC_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "RECALC_INTERVAL")
		}
		if d <= 0 {
			return Config{}, errors.Errorf("RECALC_INTERVAL must be positive, got %s", d)
		}
		cfg.RecalcInterval = d
	}
	if v, ok := lookup("SCHEDULER_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "SCHEDULER_ENABLED")
		}
		cfg.SchedulerEnabled = enabled
	}
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	return cfg, nil
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
