package config

import (
	"strings"
	"testing"
	"time"
)

// setEnvs sets multiple env vars for the duration of the test.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// requiredEnvs returns the minimum env vars needed for LoadEnvConfig to succeed.
func requiredEnvs() map[string]string {
	return map[string]string{
		"BURROW_ADMIN_TOKEN": "admin-secret",
	}
}

func TestLoadEnvConfig_Defaults(t *testing.T) {
	setEnvs(t, requiredEnvs())

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertEqual(t, "StateDir", cfg.StateDir, "/var/lib/burrow")
	assertEqual(t, "ConfigFile", cfg.ConfigFile, "")
	assertEqual(t, "SeedFile", cfg.SeedFile, "")
	assertEqual(t, "ListenAddress", cfg.ListenAddress, "0.0.0.0")
	assertEqual(t, "Port", cfg.Port, 3004)
	assertEqual(t, "APIMaxBodyBytes", cfg.APIMaxBodyBytes, 1<<20)
	assertEqual(t, "GatewayTimeout", cfg.GatewayTimeout, 5*time.Second)
	assertEqual(t, "RenderCacheTTL", cfg.RenderCacheTTL, time.Duration(0))
	assertEqual(t, "RefreshSchedule", cfg.RefreshSchedule, "")
	assertEqual(t, "LogLevel", cfg.LogLevel, LogLevelInfo)
	assertEqual(t, "AdminToken", cfg.AdminToken, "admin-secret")
	if cfg.Debug() {
		t.Fatal("Debug should be off by default")
	}
}

func TestLoadEnvConfig_Overrides(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{
		"BURROW_STATE_DIR":          "/tmp/burrow",
		"BURROW_CONFIG_FILE":        " /etc/burrow/config.yml ",
		"BURROW_SEED_FILE":          "/etc/burrow/seed.yml",
		"BURROW_LISTEN_ADDRESS":     "127.0.0.1",
		"BURROW_PORT":               "9000",
		"BURROW_API_MAX_BODY_BYTES": "4096",
		"BURROW_GATEWAY_TIMEOUT":    "750ms",
		"BURROW_RENDER_CACHE_TTL":   "30s",
		"BURROW_REFRESH_SCHEDULE":   "*/5 * * * *",
		"BURROW_LOG_LEVEL":          "DEBUG",
	})

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEqual(t, "StateDir", cfg.StateDir, "/tmp/burrow")
	assertEqual(t, "ConfigFile", cfg.ConfigFile, "/etc/burrow/config.yml")
	assertEqual(t, "SeedFile", cfg.SeedFile, "/etc/burrow/seed.yml")
	assertEqual(t, "ListenAddress", cfg.ListenAddress, "127.0.0.1")
	assertEqual(t, "Port", cfg.Port, 9000)
	assertEqual(t, "APIMaxBodyBytes", cfg.APIMaxBodyBytes, 4096)
	assertEqual(t, "GatewayTimeout", cfg.GatewayTimeout, 750*time.Millisecond)
	assertEqual(t, "RenderCacheTTL", cfg.RenderCacheTTL, 30*time.Second)
	assertEqual(t, "RefreshSchedule", cfg.RefreshSchedule, "*/5 * * * *")
	if !cfg.Debug() {
		t.Fatal("expected debug logging")
	}
}

func TestLoadEnvConfig_EmptyAdminTokenAllowed(t *testing.T) {
	t.Setenv("BURROW_ADMIN_TOKEN", "")
	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEqual(t, "AdminToken", cfg.AdminToken, "")
}

func TestLoadEnvConfig_MissingAdminToken(t *testing.T) {
	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error when BURROW_ADMIN_TOKEN is not defined")
	}
	if !strings.Contains(err.Error(), "BURROW_ADMIN_TOKEN") {
		t.Fatalf("error should mention BURROW_ADMIN_TOKEN: %v", err)
	}
}

func TestLoadEnvConfig_AccumulatesErrors(t *testing.T) {
	setEnvs(t, requiredEnvs())
	setEnvs(t, map[string]string{
		"BURROW_PORT":             "70000",
		"BURROW_GATEWAY_TIMEOUT":  "soon",
		"BURROW_RENDER_CACHE_TTL": "-1s",
		"BURROW_REFRESH_SCHEDULE": "every minute",
		"BURROW_LOG_LEVEL":        "trace",
		"BURROW_LISTEN_ADDRESS":   "  ",
	})

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"BURROW_PORT",
		"BURROW_GATEWAY_TIMEOUT: invalid duration",
		"BURROW_RENDER_CACHE_TTL",
		"BURROW_REFRESH_SCHEDULE",
		"BURROW_LOG_LEVEL",
		"BURROW_LISTEN_ADDRESS",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q:\n%v", want, err)
		}
	}
}

func TestLoadEnvConfig_InvalidInteger(t *testing.T) {
	setEnvs(t, requiredEnvs())
	t.Setenv("BURROW_API_MAX_BODY_BYTES", "lots")
	_, err := LoadEnvConfig()
	if err == nil || !strings.Contains(err.Error(), `BURROW_API_MAX_BODY_BYTES: invalid integer "lots"`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertEqual[T comparable](t *testing.T, name string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}
