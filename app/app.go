// Package app assembles the server from its configuration and runs it until
// a signal or context cancellation asks it to stop.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Amogh-2404/Tez/config"
	"github.com/Amogh-2404/Tez/core"
	"github.com/Amogh-2404/Tez/core/cache"
	tezhttp "github.com/Amogh-2404/Tez/core/http"
	"github.com/Amogh-2404/Tez/core/middleware"
	"github.com/Amogh-2404/Tez/core/observability"
	"github.com/Amogh-2404/Tez/core/pools"
	"github.com/Amogh-2404/Tez/core/router"
	"github.com/Amogh-2404/Tez/core/static"
)

// ShutdownTimeout bounds how long Run waits for sessions after a stop
// request.
const ShutdownTimeout = 30 * time.Second

// App is one configured server instance.
type App struct {
	cfg config.Config
	log zerolog.Logger

	engine      *core.Engine
	router      *router.Router
	metrics     *observability.Metrics
	routeCache  *cache.Cache[tezhttp.Response]
	staticCache *cache.Cache[tezhttp.Response]

	admin *http.Server
}

// New builds every component described by cfg. A route table that cannot
// be loaded is logged and replaced by an empty one; the server still starts.
func New(cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		cfg:     cfg,
		log:     logger,
		metrics: observability.NewMetrics(),
	}

	if prev := pools.ApplyGCConfig(pools.GCConfig{
		Percent:     cfg.GC.Percent,
		MemoryLimit: cfg.GC.MemLimit,
	}); prev >= 0 {
		logger.Info().Int("previous", prev).Int("percent", cfg.GC.Percent).Msg("GC percent adjusted")
	}

	a.routeCache = cache.New[tezhttp.Response](cfg.Routes.Cache.Capacity, cfg.Routes.Cache.TTL)
	a.staticCache = cache.New[tezhttp.Response](cfg.Static.Cache.Capacity, cfg.Static.Cache.TTL)
	a.metrics.RegisterCache("route", a.routeCache.Stats)
	a.metrics.RegisterCache("static", a.staticCache.Stats)

	table, err := router.LoadTable(cfg.Routes.File)
	if err != nil {
		logger.Warn().Err(err).Str("file", cfg.Routes.File).Msg("Route table not loaded, serving builtins only")
	} else {
		logger.Info().Str("file", table.Source()).Int("routes", table.Len()).Msg("Route table loaded")
	}

	componentLog := func(name string) zerolog.Logger {
		return logger.With().Str("component", name).Logger()
	}

	a.router = router.New(table, a.routeCache, router.WithLogger(componentLog("router")))
	router.RegisterBuiltins(a.router)

	resolver, err := static.NewResolver(cfg.Static.Root, a.staticCache, static.WithLogger(componentLog("static")))
	if err != nil {
		return nil, fmt.Errorf("static files: %w", err)
	}

	var accessLog *middleware.AccessLog
	if cfg.Log.Access != "" {
		accessLog = middleware.NewAccessLog(cfg.Log.Access)
	}

	engineLog := componentLog("engine")
	a.engine = core.NewEngine(core.Options{
		Workers:   cfg.Server.Workers,
		Router:    a.router,
		Static:    resolver,
		AccessLog: accessLog,
		Metrics:   a.metrics,
		Logger:    &engineLog,
	})

	if cfg.Admin.Addr != "" {
		a.admin = &http.Server{
			Addr:              cfg.Admin.Addr,
			Handler:           a.AdminHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return a, nil
}

// Engine returns the connection engine.
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Router returns the router, for registering extra handlers before Run.
func (a *App) Router() *router.Router {
	return a.router
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down within ShutdownTimeout.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.engine.Listen(a.cfg.Server.Addr); err != nil {
		if serr := a.shutdown(); serr != nil {
			a.log.Warn().Err(serr).Msg("Cleanup after failed listen")
		}
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		if err := a.engine.Serve(); err != nil {
			errCh <- fmt.Errorf("engine: %w", err)
		}
	}()

	if a.admin != nil {
		ln, err := net.Listen("tcp", a.admin.Addr)
		if err != nil {
			a.shutdown()
			return fmt.Errorf("admin listen %s: %w", a.admin.Addr, err)
		}
		a.log.Info().Str("addr", ln.Addr().String()).Msg("Admin server listening")

		go func() {
			if err := a.admin.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("admin: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("Stop requested, shutting down")
	case runErr = <-errCh:
		a.log.Error().Err(runErr).Msg("Server failed, shutting down")
	}

	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.admin != nil {
		if err := a.admin.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("admin shutdown: %w", err))
		}
	}
	if err := a.engine.Shutdown(ctx); err != nil && !errors.Is(err, core.ErrServerClosed) {
		errs = append(errs, fmt.Errorf("engine shutdown: %w", err))
	}

	return errors.Join(errs...)
}
