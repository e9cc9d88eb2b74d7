package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/edusuite/portal/config"
	"github.com/edusuite/portal/internal/bootstrap"
	"github.com/edusuite/portal/internal/service"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	db, redisClient, err := initInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", cerr)
		}
	}()

	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	sessions, err := bootstrap.BuildSessionManager(bootstrap.SessionConfig{
		Config:      &cfg,
		RedisClient: redisClient,
		DB:          db,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build session manager: %w", err)
	}

	sso := bootstrap.BuildSSOProvider(&cfg, logger)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	startAuditSweeper(runCtx, &cfg, sessions, logger)

	server := bootstrap.StartHTTPServer(&bootstrap.HTTPServerConfig{
		Config:   &cfg,
		Sessions: sessions,
		SSO:      sso,
		Logger:   logger,
	})

	<-runCtx.Done()
	stop()

	return bootstrap.ShutdownHTTPServer(bootstrap.ShutdownConfig{
		Context: ctx,
		Server:  server,
		Logger:  logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting portal service",
		"portal_mode", cfg.Auth.PortalMode,
		"signin_mode", cfg.Auth.SignInMode,
		"db_host", cfg.Postgres.Host,
		"db_port", cfg.Postgres.Port,
		"db_name", cfg.Postgres.Name,
	)
}

// startAuditSweeper runs the session event retention sweep in the background.
func startAuditSweeper(
	ctx context.Context,
	cfg *config.AppConfig,
	sessions *bootstrap.SessionContainer,
	logger *slog.Logger,
) {
	if sessions.Auditor == nil {
		return
	}

	sweeper, err := service.NewAuditSweeper(service.AuditSweeperOptions{
		Purger:    sessions.Auditor,
		Retention: cfg.Session.AuditRetention,
		Logger:    logger,
	})
	if err != nil {
		logger.WarnContext(ctx, "audit sweeper disabled", "error", err)
		return
	}

	go func() {
		if err := sweeper.Run(ctx); err != nil {
			logger.ErrorContext(ctx, "audit sweeper exited", "error", err)
		}
	}()
}

// initInfrastructure connects shared dependencies used by the portal runtime.
//
//nolint:ireturn // returning redis.UniversalClient matches the adapter signatures.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}

	redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	})
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
			return nil, nil, fmt.Errorf("connect redis: %w", errors.Join(err, fmt.Errorf("close database: %w", cerr)))
		}
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	return db, redisClient, nil
}
