package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/opinix/trading-engine/internal/auth"
	"github.com/opinix/trading-engine/internal/config"
	"github.com/opinix/trading-engine/internal/engine"
	"github.com/opinix/trading-engine/internal/feed"
	"github.com/opinix/trading-engine/internal/httpapi"
	"github.com/opinix/trading-engine/internal/lifecycle"
	"github.com/opinix/trading-engine/internal/lock"
	"github.com/opinix/trading-engine/internal/notify"
	"github.com/opinix/trading-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", "err", err)
		os.Exit(1)
	}

	var cleanup []func()
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Redis client (cache + distributed settlement lock) ---
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.Error("invalid redis URL", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
	}

	// --- Store ---
	var st store.Store
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)

		pg := store.NewPostgresStore(pool)
		if cfg.Database.RunMigrations {
			if err := pg.Migrate(context.Background()); err != nil {
				slog.Error("migration failed", "err", err)
				os.Exit(1)
			}
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		if rdb != nil {
			st = store.NewCachedStore(st, rdb, cfg.Redis.CacheTTL)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("database URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// --- Settlement lock ---
	var locker lock.EventLocker
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, cfg.Redis.LockTTL)
		slog.Info("Redis settlement lock enabled")
	} else {
		locker = lock.NewLocalLocker()
	}

	// --- WebSocket hub ---
	hub := notify.NewHub()
	go hub.Run()

	// --- Services ---
	authSvc := auth.NewService(st, cfg.Auth.Secret, cfg.Auth.TokenTTL)
	eng := engine.New(st, locker, hub)

	var provider feed.Provider
	if cfg.Feed.BaseURL != "" {
		provider = feed.NewHTTPProvider(cfg.Feed.BaseURL)
	} else {
		provider = feed.NewStaticProvider()
	}
	lc := lifecycle.New(st, hub, provider)

	// --- Feed poller ---
	if cfg.Feed.CronSpec != "" {
		poller, err := feed.NewPoller(cfg.Feed.CronSpec, lc)
		if err != nil {
			slog.Error("invalid feed cron spec", "err", err)
			os.Exit(1)
		}
		poller.Start()
		cleanup = append(cleanup, poller.Stop)
		slog.Info("feed poller started", "spec", cfg.Feed.CronSpec)
	}

	// --- HTTP server ---
	api := httpapi.New(eng, lc, authSvc, hub)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("trading-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down trading-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("trading-engine stopped")
}
