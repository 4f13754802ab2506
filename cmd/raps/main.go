package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/viper-platform/raps/internal/app"
	"github.com/viper-platform/raps/internal/audit"
	"github.com/viper-platform/raps/internal/auth"
	"github.com/viper-platform/raps/internal/members"
	"github.com/viper-platform/raps/internal/observability"
	"github.com/viper-platform/raps/internal/permissions"
	"github.com/viper-platform/raps/internal/platform/cache"
	"github.com/viper-platform/raps/internal/platform/db"
	"github.com/viper-platform/raps/internal/roles"
	"github.com/viper-platform/raps/internal/rsop"
	"github.com/viper-platform/raps/internal/shared"
	"github.com/viper-platform/raps/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "raps-api")

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "raps_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	metrics := observability.NewMetrics()

	rsopCache := rsop.NewCache(redisClient, cfg.RSOPCacheTTL)
	rsopRepo := rsop.NewRepository(pool)
	rsopService := rsop.NewService(rsopRepo, rsopCache, logger)
	rsopService.Metrics = metrics
	rsopMiddleware := rsop.Middleware{Service: rsopService, Logger: logger}
	rsopHandler := rsop.NewHandler(logger, rsopService, rsopMiddleware)

	auditLogger := audit.NewLogger()
	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService, rsopMiddleware)

	permissionsRepo := permissions.NewRepository(pool)
	permissionsService := permissions.NewService(permissionsRepo, auditLogger)
	permissionsHandler := permissions.NewHandler(logger, permissionsService, rsopMiddleware)

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo, auditLogger, rsopCache, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, rsopMiddleware)

	membersRepo := members.NewRepository(pool)
	membersService := members.NewService(membersRepo, auditLogger, rsopCache, logger)
	membersHandler := members.NewHandler(logger, membersService, rsopMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		AuthHandler:        authHandler,
		RSOPHandler:        rsopHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		MembersHandler:     membersHandler,
		AuditHandler:       auditHandler,
		JobHandler:         jobHandler,
		Pool:               pool,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
