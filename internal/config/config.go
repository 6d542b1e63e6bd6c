package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config is read once at process start and passed to components; nothing
// reads ambient environment state at call time.
type Config struct {
	AppEnv   string
	LogLevel slog.Level

	// DatabaseURL is the Postgres connection string (DATABASE_URL).
	DatabaseURL string

	// APIKey is the Weather Underground credential. Legacy Spanish variable
	// names are accepted as fallbacks for older deployments.
	APIKey string

	// DefaultStation is used when a request omits stationId.
	DefaultStation string

	// Stations is the ordered list the daily collector works through.
	Stations []string

	Port        string
	HTTPTimeout time.Duration
	PublicDir   string

	// CollectAt is an optional HH:MM UTC time for the in-process daily
	// collection job. Empty disables it; /cron/daily keeps working either way.
	CollectAt string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	appEnv := getenvDefault("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}
	cfg.AppEnv = appEnv

	level, err := parseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.APIKey = firstEnv("WU_API_KEY", "CLAVE_DE_API_WU", "CLAVE DE API WU")
	cfg.DefaultStation = firstEnv("STATION_ID", "ID_DE_ESTACION_WU", "ID DE ESTACIÓN WU")

	cfg.Stations = splitStations(getenvDefault("STATIONS", "IALFAR32"))

	cfg.Port = getenvDefault("PORT", "3000")

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.PublicDir = getenvDefault("PUBLIC_DIR", "public")

	cfg.CollectAt = strings.TrimSpace(os.Getenv("COLLECT_AT"))
	if cfg.CollectAt != "" {
		if _, err := time.Parse("15:04", cfg.CollectAt); err != nil {
			return nil, fmt.Errorf("invalid COLLECT_AT %q: expected HH:MM", cfg.CollectAt)
		}
	}

	return cfg, nil
}

// splitStations parses a comma-separated station list, trimming whitespace
// and discarding blank entries. Order is preserved; duplicates are allowed.
func splitStations(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// firstEnv returns the first non-empty value among the given variable names.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
