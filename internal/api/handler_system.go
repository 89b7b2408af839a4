package api

import (
	"net/http"
	"sync/atomic"

	"github.com/burrowhq/burrow/internal/config"
	"github.com/burrowhq/burrow/internal/service"
)

// HandleSystemInfo returns a handler for GET /api/v1/system/info.
func HandleSystemInfo(info service.SystemInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, info)
	}
}

// HandleSystemConfig returns a handler for GET /api/v1/system/config.
// It serves the deployment file currently in effect.
func HandleSystemConfig(fileCfg *atomic.Pointer[config.FileConfig]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fileCfg == nil {
			WriteJSON(w, http.StatusOK, nil)
			return
		}
		WriteJSON(w, http.StatusOK, fileCfg.Load())
	}
}

// HandleSystemDefaultConfig returns a handler for GET /api/v1/system/config/default.
func HandleSystemDefaultConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, config.NewDefaultFileConfig())
	}
}

type envConfigResponse struct {
	StateDir        string `json:"state_dir"`
	ConfigFile      string `json:"config_file"`
	SeedFile        string `json:"seed_file"`
	ListenAddress   string `json:"listen_address"`
	Port            int    `json:"port"`
	APIMaxBodyBytes int    `json:"api_max_body_bytes"`
	GatewayTimeout  string `json:"gateway_timeout"`
	RenderCacheTTL  string `json:"render_cache_ttl"`
	RefreshSchedule string `json:"refresh_schedule"`
	LogLevel        string `json:"log_level"`
	AuthEnabled     bool   `json:"auth_enabled"`
}

// HandleSystemEnvConfig returns a handler for GET /api/v1/system/config/env.
// The admin token is never echoed.
func HandleSystemEnvConfig(envCfg *config.EnvConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if envCfg == nil {
			WriteJSON(w, http.StatusOK, nil)
			return
		}
		WriteJSON(w, http.StatusOK, envConfigResponse{
			StateDir:        envCfg.StateDir,
			ConfigFile:      envCfg.ConfigFile,
			SeedFile:        envCfg.SeedFile,
			ListenAddress:   envCfg.ListenAddress,
			Port:            envCfg.Port,
			APIMaxBodyBytes: envCfg.APIMaxBodyBytes,
			GatewayTimeout:  envCfg.GatewayTimeout.String(),
			RenderCacheTTL:  envCfg.RenderCacheTTL.String(),
			RefreshSchedule: envCfg.RefreshSchedule,
			LogLevel:        envCfg.LogLevel,
			AuthEnabled:     envCfg.AdminToken != "",
		})
	}
}
