package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/lendledger/lendledger/internal/api/http"
	"github.com/lendledger/lendledger/internal/application/agreement"
	"github.com/lendledger/lendledger/internal/application/audit"
	"github.com/lendledger/lendledger/internal/application/auth"
	"github.com/lendledger/lendledger/internal/application/notification"
	"github.com/lendledger/lendledger/internal/application/repayment"
	"github.com/lendledger/lendledger/internal/application/user"
	"github.com/lendledger/lendledger/internal/config"
	"github.com/lendledger/lendledger/internal/infrastructure/postgres"
	"github.com/lendledger/lendledger/internal/infrastructure/redislock"
	"github.com/lendledger/lendledger/internal/infrastructure/schedule"
	"github.com/lendledger/lendledger/internal/infrastructure/sse"
	"github.com/lendledger/lendledger/internal/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db error")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, postgres.MigrationSource(cfg.MigrationsDir, migrations.Files)); err != nil {
		logger.Fatal().Err(err).Msg("migration error")
	}

	// repositories
	userRepo := postgres.NewUserRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// infrastructure
	sseHub := sse.NewHub()
	defer sseHub.Stop()

	var locker redislock.Locker = redislock.Local{}
	if cfg.RedisURL != "" {
		rdb, err := redislock.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis error")
		}
		defer rdb.Close()
		locker = redislock.NewRedisLocker(rdb, "lendledger:")
	}

	// services
	auditSvc := audit.NewService(auditRepo, logger, cfg.AuditSigningKey)
	notificationSvc := notification.NewService(sseHub, logger)
	agreementSvc := agreement.NewService(txRunner, auditSvc, notificationSvc, logger)
	repaymentSvc := repayment.NewService(txRunner, agreementSvc, auditSvc, notificationSvc, logger)
	authSvc := auth.NewService(userRepo, cfg.JWTSecret, cfg.JWTIssuer, logger)
	userSvc := user.NewService(userRepo, logger)

	// API server
	apiServer := httpapi.NewServer(agreementSvc, repaymentSvc, auditSvc, authSvc, userSvc, sseHub, pool, logger)

	httpServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     apiServer.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// background sweep
	var sweeper *schedule.Runner
	if cfg.OverdueEnabled {
		sweeper, err = schedule.NewRunner(cfg.OverdueSchedule, agreementSvc, locker, cfg.SweeperLeaseTTL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler error")
		}
		sweeper.Start()
	}

	// start server
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if sweeper != nil {
		sweeper.Stop(ctxShutdown)
	}
	// open SSE streams end when their channels close
	sseHub.Stop()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}
	auditSvc.Wait()
}

func newLogger(level, format string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
