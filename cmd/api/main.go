package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/fintechindex/internal/auth"
	"github.com/geocoder89/fintechindex/internal/config"
	"github.com/geocoder89/fintechindex/internal/db"
	httpx "github.com/geocoder89/fintechindex/internal/http"
	"github.com/geocoder89/fintechindex/internal/http/handlers"
	"github.com/geocoder89/fintechindex/internal/http/middlewares"
	"github.com/geocoder89/fintechindex/internal/notifications"
	"github.com/geocoder89/fintechindex/internal/observability"
	"github.com/geocoder89/fintechindex/internal/redisclient"
	"github.com/geocoder89/fintechindex/internal/repo/memory"
	"github.com/geocoder89/fintechindex/internal/repo/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	stores, pool, err := openStores(ctx, log, cfg, prom)
	if err != nil {
		log.Error("store init failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}

	seeded, err := db.EnsureAdminUser(ctx, stores.users, cfg)
	if err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}
	if seeded {
		log.Info("admin account created", "email", cfg.AdminEmail)
	}

	var limiter middlewares.Limiter
	var rdb *redisclient.Client
	if cfg.RedisAddr != "" {
		rdb = redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx); err != nil {
			log.Warn("redis unreachable, rate limiter will fall back to memory", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()

		limiter = middlewares.NewRedisLimiter(rdb.Raw(), cfg.RateLimitPerMinute, time.Minute, log)
	}

	sinks, err := notifications.SinksFromConfig(log, cfg)
	if err != nil {
		log.Error("notification sinks init failed", "err", err)
		os.Exit(1)
	}

	dispatcher := notifications.NewDispatcher(log, prom, sinks, notifications.DispatcherConfig{
		Admin: notifications.Recipients{
			Email: cfg.AdminContactEmail,
			Phone: cfg.AdminContactPhone,
		},
	})

	router := httpx.NewRouter(httpx.Deps{
		Log:       log,
		Cfg:       cfg,
		Prom:      prom,
		Gatherer:  reg,
		Tokens:    auth.NewManager(cfg.JWTSecret, cfg.JWTTTL),
		Users:     stores.users,
		Countries: stores.countries,
		Startups:  stores.startups,
		Notify:    dispatcher,
		Limiter:   limiter,
		Ping:      stores.ping,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// list reads may take up to READ_TIMEOUT
		WriteTimeout: cfg.ReadTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		// handlers are done, so no new notifications can be queued
		if err := dispatcher.Close(ctx); err != nil {
			log.Warn("notifications still in flight at shutdown", "err", err)
		}

		if rdb != nil {
			_ = rdb.Close()
		}
		if pool != nil {
			pool.Close()
		}

		if err := shutdownTracer(ctx); err != nil {
			log.Warn("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

type appStores struct {
	users     usersStore
	countries httpx.CountryStore
	startups  httpx.StartupStore
	ping      func(ctx context.Context) error
}

type usersStore interface {
	db.AdminSeedStore
	handlers.UserStore
}

// openStores returns the pool only for the postgres driver so shutdown can
// close it.
func openStores(ctx context.Context, log *slog.Logger, cfg config.Config, prom *observability.Prom) (appStores, *pgxpool.Pool, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory stores, data is lost on restart")

		users := memory.NewUsersRepo()
		return appStores{
			users:     users,
			countries: memory.NewCountryMetricsRepo(),
			startups:  memory.NewStartupsRepo(),
			ping:      users.Ping,
		}, nil, nil

	case "postgres", "":
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return appStores{}, nil, fmt.Errorf("connect: %w", err)
		}

		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return appStores{}, nil, fmt.Errorf("migrate: %w", err)
		}

		users := postgres.NewUsersRepo(pool, prom, cfg.ReadTimeout)
		return appStores{
			users:     users,
			countries: postgres.NewCountryMetricsRepo(pool, prom, cfg.ReadTimeout),
			startups:  postgres.NewStartupsRepo(pool, prom, cfg.ReadTimeout),
			ping:      users.Ping,
		}, pool, nil

	default:
		return appStores{}, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
