// Package config handles environment-based configuration loading and the
// hot-reloadable deployment file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Log levels accepted by BURROW_LOG_LEVEL.
const (
	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
)

// EnvConfig holds all environment-variable-driven settings (not hot-updatable).
type EnvConfig struct {
	// Directories and files
	StateDir   string
	ConfigFile string
	SeedFile   string

	// Network
	ListenAddress string

	// Ports
	Port            int
	APIMaxBodyBytes int

	// Core
	GatewayTimeout  time.Duration
	RenderCacheTTL  time.Duration
	RefreshSchedule string
	LogLevel        string

	// Auth
	AdminToken string
}

// Debug reports whether debug-level logging is enabled.
func (c *EnvConfig) Debug() bool {
	return c.LogLevel == LogLevelDebug
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error if any required variable is missing or any value is invalid.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Directories and files ---
	cfg.StateDir = envStr("BURROW_STATE_DIR", "/var/lib/burrow")
	cfg.ConfigFile = strings.TrimSpace(envStr("BURROW_CONFIG_FILE", ""))
	cfg.SeedFile = strings.TrimSpace(envStr("BURROW_SEED_FILE", ""))
	cfg.ListenAddress = strings.TrimSpace(envStr("BURROW_LISTEN_ADDRESS", "0.0.0.0"))

	// --- Ports ---
	cfg.Port = envInt("BURROW_PORT", 3004, &errs)
	cfg.APIMaxBodyBytes = envInt("BURROW_API_MAX_BODY_BYTES", 1<<20, &errs)

	// --- Core ---
	cfg.GatewayTimeout = envDuration("BURROW_GATEWAY_TIMEOUT", 5*time.Second, &errs)
	cfg.RenderCacheTTL = envDuration("BURROW_RENDER_CACHE_TTL", 0, &errs)
	cfg.RefreshSchedule = strings.TrimSpace(envStr("BURROW_REFRESH_SCHEDULE", ""))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(envStr("BURROW_LOG_LEVEL", LogLevelInfo)))

	// --- Auth (must be defined; empty means auth disabled) ---
	adminToken, hasAdminToken := os.LookupEnv("BURROW_ADMIN_TOKEN")
	cfg.AdminToken = adminToken

	// --- Validation ---
	if !hasAdminToken {
		errs = append(errs, "BURROW_ADMIN_TOKEN must be defined (can be empty)")
	}
	if cfg.StateDir == "" {
		errs = append(errs, "BURROW_STATE_DIR must not be empty")
	}
	if cfg.ListenAddress == "" {
		errs = append(errs, "BURROW_LISTEN_ADDRESS must not be empty")
	}

	validatePort("BURROW_PORT", cfg.Port, &errs)
	validatePositive("BURROW_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)

	if cfg.GatewayTimeout <= 0 {
		errs = append(errs, "BURROW_GATEWAY_TIMEOUT must be positive")
	}
	if cfg.RenderCacheTTL < 0 {
		errs = append(errs, "BURROW_RENDER_CACHE_TTL must not be negative")
	}
	if cfg.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(cfg.RefreshSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("BURROW_REFRESH_SCHEDULE: invalid cron expression %q: %v", cfg.RefreshSchedule, err))
		}
	}
	if cfg.LogLevel != LogLevelInfo && cfg.LogLevel != LogLevelDebug {
		errs = append(errs, fmt.Sprintf("BURROW_LOG_LEVEL: invalid value %q (allowed: %s, %s)", cfg.LogLevel, LogLevelInfo, LogLevelDebug))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
