// internal/app/app.go
//
// Service assembly shared by cmd/web and cmd/hostctl.
//
// Boot order
// ----------
//
//  1. Vault client, only when a config value is a `vault:` reference.
//  2. Control-plane DB (password resolved through Vault when needed).
//  3. Optional redis shared tier.
//  4. Domain registry and site directory (read-through caches).
//  5. Resolver and redirect engine.
//
// Close releases everything in reverse order.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/hostmap/internal/cache"
	"github.com/yanizio/hostmap/internal/config"
	"github.com/yanizio/hostmap/internal/database"
	"github.com/yanizio/hostmap/internal/domain"
	"github.com/yanizio/hostmap/internal/redirect"
	"github.com/yanizio/hostmap/internal/registry"
	"github.com/yanizio/hostmap/internal/requestinfo"
	"github.com/yanizio/hostmap/internal/resolver"
	"github.com/yanizio/hostmap/internal/site"
	"github.com/yanizio/hostmap/internal/vault"
)

// App holds the wired service graph.
type App struct {
	Config    *config.Config
	DB        *sqlx.DB
	Registry  *registry.Registry
	Directory *site.Directory
	Resolver  *resolver.Resolver
	Engine    *redirect.Engine
	Info      requestinfo.Options
	Log       *zap.Logger

	shared *cache.Redis
}

// New builds the graph from cfg.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Log: log}

	//
	// ── 1.  Secrets ────────────────────────────────────────────────────
	//
	var kv vault.KV
	if vault.IsRef(cfg.Database.GlobalPassword) || vault.IsRef(cfg.Cache.Redis.Password) {
		cli, err := vault.New(ctx, log.Named("vault"))
		if err != nil {
			return nil, err
		}
		kv = cli
	}

	dbPass, err := vault.Resolve(ctx, kv, cfg.Database.GlobalPassword)
	if err != nil {
		return nil, fmt.Errorf("database password: %w", err)
	}

	//
	// ── 2.  Control-plane DB ───────────────────────────────────────────
	//
	a.DB, err = database.OpenWithOptions(ctx, cfg.Database.DSN(dbPass), database.Options{
		MaxOpen:         cfg.Database.MaxOpen,
		MaxIdle:         cfg.Database.MaxIdle,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		PingAttempts:    5,
		Logger:          log,
	})
	if err != nil {
		return nil, fmt.Errorf("connect global DB: %w", err)
	}

	//
	// ── 3.  Shared cache tier ──────────────────────────────────────────
	//
	if addr := cfg.Cache.Redis.Addr; addr != "" {
		pass, err := vault.Resolve(ctx, kv, cfg.Cache.Redis.Password)
		if err != nil {
			a.DB.Close()
			return nil, fmt.Errorf("redis password: %w", err)
		}
		rc := redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: cfg.Cache.Redis.DB})
		a.shared, err = cache.NewRedis(cache.RedisOptions{
			Client:       rc,
			ClientCloser: rc,
			Timeout:      cfg.Cache.Redis.Timeout,
			Prefix:       cfg.Cache.Redis.Prefix,
			Logger:       log.Named("redis"),
		})
		if err != nil {
			rc.Close()
			a.DB.Close()
			return nil, err
		}
	}

	//
	// ── 4.  Caches ─────────────────────────────────────────────────────
	//
	copts := cache.Options{
		Shards:        cfg.Cache.Shards,
		Size:          cfg.Cache.Size,
		TTL:           cfg.Cache.TTL,
		NegativeTTL:   cfg.Cache.NegativeTTL,
		CleanInterval: cfg.Cache.CleanInterval,
	}
	ropts := registry.Options{Cache: copts, Logger: log.Named("registry")}
	if a.shared != nil {
		ropts.Shared = a.shared
	}
	a.Registry = registry.New(domain.NewRepository(a.DB), ropts)
	a.Directory = site.NewDirectory(site.NewRepository(a.DB), copts, log.Named("site"))

	//
	// ── 5.  Decision pipeline ──────────────────────────────────────────
	//
	a.Resolver = resolver.New(a.Registry, a.Directory, resolver.Options{
		Defaults:       cfg.Policy,
		LocalhostAlias: cfg.Platform.LocalhostAlias,
		Logger:         log.Named("resolver"),
	})
	a.Engine = redirect.NewEngine(a.Registry, log.Named("redirect"))
	a.Info = requestinfo.Options{
		AdminPaths:       cfg.Platform.AdminPaths,
		AuthCookiePrefix: cfg.Platform.AuthCookiePrefix,
		TrustProxy:       cfg.HTTP.TrustProxy,
	}

	return a, nil
}

// Close releases caches, the shared tier, and the DB pool.
func (a *App) Close() error {
	var errs []error
	if a.Directory != nil {
		errs = append(errs, a.Directory.Close())
	}
	if a.Registry != nil {
		errs = append(errs, a.Registry.Close())
	}
	if a.shared != nil {
		errs = append(errs, a.shared.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
