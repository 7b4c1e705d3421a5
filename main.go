package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"energy-server/auth"
	"energy-server/cache"
	"energy-server/confs"
	"energy-server/db"
	"energy-server/logging"
	"energy-server/notifiers"
	"energy-server/repositories"
	"energy-server/server"
	"energy-server/services"
	"energy-server/usecases"
	"energy-server/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	// load config
	cfg, err := confs.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error loading config")
	}
	logger := logging.Setup(cfg.LogLevel, !cfg.IsProduction())
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// connect to database Postgres
	database, err := db.Connect(cfg.Database, logging.Component(logger, "db"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer database.Close()

	var sessions cache.SessionCache
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := rc.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable")
		}
		defer rc.Close()
		sessions = rc
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis session cache")
	} else {
		mc := cache.NewMemoryCache()
		mc.StartJanitor(ctx, time.Minute)
		sessions = mc
		logger.Info().Msg("using in-memory session cache")
	}

	users := repositories.NewUserPgRepository(database)
	devices := repositories.NewDevicePgRepository(database)
	budgets := repositories.NewBudgetPgRepository(database)
	alerts := repositories.NewAlertPgRepository(database)

	manager := ws.NewManager()
	notifier := notifiers.Multi{notifiers.NewWSNotifier(manager)}
	if cfg.Cloud.Enabled {
		sns, err := notifiers.NewSNSNotifier(ctx, cfg.Cloud.Region, cfg.Cloud.SNSTopicArn, logging.Component(logger, "sns"))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure SNS")
		}
		notifier = append(notifier, sns)
		logger.Info().Str("topic", cfg.Cloud.SNSTopicArn).Msg("SNS alert notifications enabled")
	}

	aggregator := services.NewBudgetAggregator(budgets, devices, alerts, notifier, logging.Component(logger, "aggregator"))
	if err := aggregator.Start(ctx, cfg.AggregationSchedule); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.AggregationSchedule).Msg("failed to schedule aggregation")
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	srv := server.NewServer(server.Dependencies{
		Config:     cfg,
		Log:        logger,
		Auth:       usecases.NewAuthUseCase(users, sessions, tokens, cfg.SessionCacheTTL, logging.Component(logger, "auth")),
		Devices:    usecases.NewDeviceUseCase(devices, users, cfg.HighUsageThreshold, logging.Component(logger, "devices")),
		Budgets:    usecases.NewBudgetUseCase(budgets, users, aggregator, logging.Component(logger, "budgets")),
		Alerts:     usecases.NewAlertUseCase(alerts, notifier, logging.Component(logger, "alerts")),
		Aggregator: aggregator,
		WS:         manager,
	})

	// run server
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	aggregator.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
