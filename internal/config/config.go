package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"moneypal/internal/core"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	DBPath string

	// Analytics
	WeekStart core.WeekStart

	// Logging
	LogLevel slog.Level
}

func Load() *Config {
	weekStart, _ := core.ParseWeekStart(getEnv("WEEK_START", "monday"))

	return &Config{
		Port:      getEnv("PORT", "8080"),
		DBPath:    getEnv("MONEYPAL_DB_PATH", "./data/moneypal.db"),
		WeekStart: weekStart,
		LogLevel:  parseLogLevel(getEnv("LOG_LEVEL", "info")),
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	} else {
		dir := filepath.Dir(c.DBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if ws := os.Getenv("WEEK_START"); ws != "" {
		if _, ok := core.ParseWeekStart(ws); !ok {
			errors = append(errors, fmt.Sprintf("invalid week start '%s': must be 'monday' or 'sunday'", ws))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
