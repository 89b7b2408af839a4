package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/burrowhq/burrow/internal/config"
	"github.com/burrowhq/burrow/internal/service"
)

// Server wraps the HTTP server and mux for the burrow API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new API server wired with all routes.
// cp may be nil if the control plane is not yet initialized.
func NewServer(
	port int,
	adminToken string,
	systemInfo service.SystemInfo,
	fileCfg *atomic.Pointer[config.FileConfig],
	envCfg *config.EnvConfig,
	cp *service.ControlPlaneService,
	apiMaxBodyBytes int64,
	metricsHandler http.Handler,
) *Server {
	return NewServerWithAddress(
		"",
		port,
		adminToken,
		systemInfo,
		fileCfg,
		envCfg,
		cp,
		apiMaxBodyBytes,
		metricsHandler,
	)
}

// NewServerWithAddress creates a new API server with an explicit listen address.
func NewServerWithAddress(
	listenAddress string,
	port int,
	adminToken string,
	systemInfo service.SystemInfo,
	fileCfg *atomic.Pointer[config.FileConfig],
	envCfg *config.EnvConfig,
	cp *service.ControlPlaneService,
	apiMaxBodyBytes int64,
	metricsHandler http.Handler,
) *Server {
	mux := http.NewServeMux()

	// Public (no auth)
	mux.Handle("GET /healthz", HandleHealthz())
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	// Authenticated routes
	authed := http.NewServeMux()
	authed.Handle("GET /api/v1/system/info", HandleSystemInfo(systemInfo))
	authed.Handle("GET /api/v1/system/config", HandleSystemConfig(fileCfg))
	authed.Handle("GET /api/v1/system/config/default", HandleSystemDefaultConfig())
	authed.Handle("GET /api/v1/system/config/env", HandleSystemEnvConfig(envCfg))

	if cp != nil {
		// Exit nodes and their documents.
		authed.Handle("GET /api/v1/exit-nodes", HandleListExitNodes(cp))
		authed.Handle("GET /api/v1/exit-nodes/{id}/traefik-config", HandleTraefikConfig(cp))
		authed.Handle("GET /api/v1/exit-nodes/{id}/traefik-config/status", HandleTraefikConfigStatus(cp))

		// Peers.
		authed.Handle("POST /api/v1/exit-nodes/{id}/peers", HandleAddPeer(cp))
		authed.Handle("DELETE /api/v1/exit-nodes/{id}/peers/{publicKey}", HandleRemovePeer(cp))
	}

	limitedAuthed := RequestBodyLimitMiddleware(apiMaxBodyBytes, authed)
	mux.Handle("/api/", AuthMiddleware(adminToken, limitedAuthed))

	srv := &http.Server{
		Addr:    net.JoinHostPort(listenAddress, strconv.Itoa(port)),
		Handler: mux,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
