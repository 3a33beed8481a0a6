// cmd/web/main.go
//
// hostmap – HTTP entry point.
//
// Request life-cycle
// ------------------
//
//  1. Load config (conf/.env → conf/hostmap.yaml → HOSTMAP_* env).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Assemble the service graph (internal/app): Vault, control-plane DB,
//     optional redis tier, domain registry, site directory, resolver,
//     redirect engine.
//
//  4. Expose Prometheus /metrics, /healthz, and the /v1 admin API.
//
//  5. Every other request runs the domain pipeline:
//
//     • request facts            – requestinfo.Enrich
//     • HTTPS enforcement        – middleware.ForceHTTPS (optional)
//     • resolve → decide         – middleware.Domains
//     • serve                    – 204 + tenant and rewrite headers for the front proxy
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/hostmap/internal/acl"
	"github.com/yanizio/hostmap/internal/api"
	"github.com/yanizio/hostmap/internal/app"
	"github.com/yanizio/hostmap/internal/config"
	"github.com/yanizio/hostmap/internal/database"
	"github.com/yanizio/hostmap/internal/logger"
	"github.com/yanizio/hostmap/internal/middleware"
	"github.com/yanizio/hostmap/internal/requestinfo"
	"github.com/yanizio/hostmap/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("hostmap: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logOut, err := logger.New(cfg.Paths.Root, logger.Options{
		Level:      cfg.Log.Level,
		Dir:        cfg.Log.Dir,
		Console:    cfg.Log.Console,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer logOut.Sync()

	//
	// ── 1.  Service graph ───────────────────────────────────────────────
	//
	logOut.Info("connecting to global DB")
	a, err := app.New(ctx, cfg, logOut)
	if err != nil {
		logOut.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.Close()
	logOut.Info("global DB online")

	// Active-site count as an early sanity check.
	if n, err := database.CountActiveSites(ctx, a.DB); err == nil {
		logOut.Info("active sites found", zap.Int("count", n))
	} else {
		logOut.Warn("active site count failed", zap.Error(err))
	}

	//
	// ── 2.  Router ──────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	if cfg.HTTP.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	apiH := api.New(a.Resolver, a.Engine, a.Registry, a.Directory, a.Info, logOut.Named("api"))
	if cfg.API.RequireToken {
		apiH.Guard(
			acl.Authenticate(a.DB.DB, logOut.Named("acl")),
			acl.RequireRole(acl.RoleReader, acl.RoleOperator),
			acl.RequireRole(acl.RoleOperator),
		)
	} else {
		logOut.Warn("admin API running without token auth")
	}
	r.With(middleware.Security).Mount("/v1", apiH.Routes())

	//
	// ── 3.  Domain pipeline (everything else) ──────────────────────────
	//
	pipeline := middleware.Domains(a.Resolver, a.Engine, a.Info, logOut.Named("domains"))(middleware.Sidecar())
	if cfg.HTTP.ForceHTTPS {
		pipeline = middleware.ForceHTTPS(a.Resolver, cfg.HTTP.TrustProxy)(pipeline)
	}
	r.Handle("/*", requestinfo.Enrich(a.Info, logOut)(pipeline))

	//
	// ── 4.  Serve until signalled ───────────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, r, server.Timeouts{
		Read:  cfg.HTTP.ReadTimeout,
		Write: cfg.HTTP.WriteTimeout,
		Idle:  cfg.HTTP.IdleTimeout,
	})
	return server.Run(ctx, srv, logOut)
}
