package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/burrowhq/burrow/internal/api"
	"github.com/burrowhq/burrow/internal/buildinfo"
	"github.com/burrowhq/burrow/internal/compiler"
	"github.com/burrowhq/burrow/internal/config"
	"github.com/burrowhq/burrow/internal/gateway"
	"github.com/burrowhq/burrow/internal/metrics"
	"github.com/burrowhq/burrow/internal/refresh"
	"github.com/burrowhq/burrow/internal/service"
	"github.com/burrowhq/burrow/internal/state"
)

type burrowApp struct {
	envCfg    *config.EnvConfig
	fileCfg   *atomic.Pointer[config.FileConfig]
	repo      *state.TopologyRepo
	collector *metrics.Collector
	compiler  *compiler.Compiler
	cp        *service.ControlPlaneService
	worker    *refresh.Worker
	watcher   *config.FileWatcher
	apiSrv    *api.Server
}

func run() error {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}
	if config.IsWeakToken(envCfg.AdminToken) {
		log.Println("[config] WARNING: BURROW_ADMIN_TOKEN is weak; use a long random token")
	} else if envCfg.AdminToken == "" {
		log.Println("[config] WARNING: BURROW_ADMIN_TOKEN is empty; API authentication is disabled")
	}

	fileCfg, err := config.LoadFileConfig(envCfg.ConfigFile)
	if err != nil {
		return err
	}

	repo, dbCloser, err := state.PersistenceBootstrap(envCfg.StateDir, envCfg.SeedFile)
	if err != nil {
		return fmt.Errorf("persistence bootstrap: %w", err)
	}
	log.Println("Persistence bootstrap complete")

	app, err := newBurrowApp(envCfg, fileCfg, repo)
	if err != nil {
		_ = dbCloser.Close()
		return err
	}

	serverErrCh := app.startServers()
	runtimeErr := waitForShutdown(serverErrCh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.shutdown(ctx, dbCloser)

	if runtimeErr != nil {
		return fmt.Errorf("runtime server error: %w", runtimeErr)
	}
	return nil
}

func newBurrowApp(envCfg *config.EnvConfig, fileCfg *config.FileConfig, repo *state.TopologyRepo) (*burrowApp, error) {
	app := &burrowApp{
		envCfg:    envCfg,
		fileCfg:   &atomic.Pointer[config.FileConfig]{},
		repo:      repo,
		collector: metrics.NewCollector(nil),
	}
	app.fileCfg.Store(fileCfg)
	app.compiler = compiler.New(repo, fileCfg.ToCompilerOptions(envCfg.Debug()))

	gatewayTimeout := envCfg.GatewayTimeout
	peers := gateway.NewController(repo, func() time.Duration { return gatewayTimeout })
	peers.OnCall = app.collector.ObservePeerCall

	app.cp = service.NewControlPlaneService(service.ServiceConfig{
		ExitNodes:      repo,
		Compiler:       app.compiler,
		Peers:          peers,
		Recorder:       app.collector,
		RenderCacheTTL: envCfg.RenderCacheTTL,
	})

	if envCfg.ConfigFile != "" {
		watcher, err := config.NewFileWatcher(envCfg.ConfigFile, config.DefaultReloadDebounce, app.applyFileConfig)
		if err != nil {
			app.cp.Close()
			return nil, err
		}
		app.watcher = watcher
		log.Printf("[config] watching %s for changes", envCfg.ConfigFile)
	}

	if envCfg.RefreshSchedule != "" {
		app.worker = refresh.NewWorker(refresh.WorkerConfig{
			Refresher: app.cp,
			Recorder:  app.collector,
			Schedule:  envCfg.RefreshSchedule,
			Timeout:   time.Minute,
		})
	}

	app.apiSrv = api.NewServerWithAddress(
		envCfg.ListenAddress,
		envCfg.Port,
		envCfg.AdminToken,
		service.SystemInfo{
			Version:   buildinfo.Version,
			GitCommit: buildinfo.GitCommit,
			BuildTime: buildinfo.BuildTime,
			StartedAt: time.Now().UTC(),
		},
		app.fileCfg,
		envCfg,
		app.cp,
		int64(envCfg.APIMaxBodyBytes),
		app.collector.Handler(),
	)
	return app, nil
}

// applyFileConfig swaps in a reloaded deployment file. Invalid files are
// logged and the previous configuration stays in effect.
func (a *burrowApp) applyFileConfig(cfg *config.FileConfig, err error) {
	a.collector.RecordConfigReload(err)
	if err != nil {
		log.Printf("[config] reload rejected, keeping previous config: %v", err)
		return
	}
	a.fileCfg.Store(cfg)
	a.compiler.SetOptions(cfg.ToCompilerOptions(a.envCfg.Debug()))
	a.cp.InvalidateRenders()
	log.Println("[config] reloaded")
}

func (a *burrowApp) startServers() <-chan error {
	serverErrCh := make(chan error, 1)
	reportServerErr := func(name string, err error) {
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		wrapped := fmt.Errorf("%s: %w", name, err)
		select {
		case serverErrCh <- wrapped:
		default:
		}
	}

	if a.worker != nil {
		a.worker.Start()
		log.Printf("[refresh] scheduled with %q", a.envCfg.RefreshSchedule)
	}

	go func() {
		log.Printf("burrow API server starting on %s", formatListenURL(a.envCfg.ListenAddress, a.envCfg.Port))
		reportServerErr("api server", a.apiSrv.ListenAndServe())
	}()

	return serverErrCh
}

func waitForShutdown(serverErrCh <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down...", sig)
		return nil
	case err := <-serverErrCh:
		log.Printf("Received server runtime error (%v), shutting down...", err)
		return err
	}
}

func formatListenAddress(listenAddress string, port int) string {
	return net.JoinHostPort(listenAddress, strconv.Itoa(port))
}

func formatListenURL(listenAddress string, port int) string {
	return "http://" + formatListenAddress(listenAddress, port)
}

func (a *burrowApp) shutdown(ctx context.Context, dbCloser io.Closer) {
	if err := a.apiSrv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("burrow API server stopped")

	// Stop background sources before closing the store they read.
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			log.Printf("Config watcher stop error: %v", err)
		}
		log.Println("Config watcher stopped")
	}
	if a.worker != nil {
		a.worker.Stop()
		log.Println("Refresh worker stopped")
	}
	a.cp.Close()

	if dbCloser != nil {
		if err := dbCloser.Close(); err != nil {
			log.Printf("Persistence close error: %v", err)
		}
	}
	log.Println("Server stopped")
}
