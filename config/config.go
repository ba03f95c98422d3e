// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// CORS
	AllowedOrigins []string

	// Overrides the base tracked year for dues carryover walks.
	DuesBaseYear int
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/finance.db"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		DuesBaseYear:   getEnvInt("DUES_BASE_YEAR", 2025),
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	}

	if c.DuesBaseYear < 2000 || c.DuesBaseYear > 2100 {
		errs = append(errs, fmt.Sprintf("invalid dues base year %d", c.DuesBaseYear))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
