package main

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openbasket/storefront/api/routes"
	"github.com/openbasket/storefront/internal/engine"
	"github.com/openbasket/storefront/internal/gateway"
	"github.com/openbasket/storefront/internal/localstore"
	"github.com/openbasket/storefront/internal/session"
	"github.com/openbasket/storefront/pkg/config"
	"github.com/openbasket/storefront/pkg/db"
	"github.com/openbasket/storefront/pkg/instance"
	"github.com/openbasket/storefront/pkg/logger"
	"github.com/openbasket/storefront/pkg/metrics"
	"github.com/openbasket/storefront/pkg/migrate"
	"github.com/openbasket/storefront/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.LocalStore, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open guest cart store", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing guest cart store", err)
		}
	}()

	if err := migrate.MaybeRun(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to migrate guest cart store", err)
		os.Exit(1)
	}
	if cfg.FeatureFlags.AutoMigrate && strings.EqualFold(cfg.LocalStore.Driver, config.DriverPostgres) {
		if err := dbClient.DB().AutoMigrate(localstore.Models()...); err != nil {
			logg.Error(context.Background(), "failed to migrate guest cart store", err)
			os.Exit(1)
		}
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(context.Background(), redisClient, cfg.Session, instance.DeviceID(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	marketplace, err := gateway.NewClient(cfg.Gateway, sessionManager)
	if err != nil {
		logg.Error(context.Background(), "failed to create marketplace client", err)
		os.Exit(1)
	}

	guestStore, err := localstore.New(dbClient.DB(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create guest cart store", err)
		os.Exit(1)
	}

	cartMetrics := metrics.NewCartMetrics(prometheus.DefaultRegisterer)

	eng, err := engine.New(guestStore, marketplace, cartMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation engine", err)
		os.Exit(1)
	}
	sessionManager.Subscribe(eng)

	if _, err := eng.Load(context.Background(), sessionManager.Mode()); err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "initial cart load failed, starting empty")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := "127.0.0.1:" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
		"mode": sessionManager.Mode().String(),
	})
	logg.Info(ctx, "starting storefront edge daemon")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, eng, prometheus.DefaultGatherer),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "storefront daemon stopped unexpectedly", err)
		os.Exit(1)
	}
}
