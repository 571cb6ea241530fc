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

	"github.com/odyssey-erp/odyssey-crm/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-crm/internal/analytics"
	"github.com/odyssey-erp/odyssey-crm/internal/app"
	"github.com/odyssey-erp/odyssey-crm/internal/auth"
	"github.com/odyssey-erp/odyssey-crm/internal/clients"
	"github.com/odyssey-erp/odyssey-crm/internal/deals"
	"github.com/odyssey-erp/odyssey-crm/internal/observability"
	"github.com/odyssey-erp/odyssey-crm/internal/password"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	"github.com/odyssey-erp/odyssey-crm/internal/resource"
	"github.com/odyssey-erp/odyssey-crm/internal/tasks"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
	"github.com/odyssey-erp/odyssey-crm/jobs"
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

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 {
		os.Exit(runCommand(ctx, cfg, os.Args[1:]))
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Analytics falls back to direct queries without redis.
		logger.Warn("redis unavailable", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts, cfg.MailMaxRetry)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()

	validate := resource.NewValidator()
	metrics := observability.NewMetrics()

	userRepo := users.NewRepository(dbpool)
	resetTokens := users.NewTokenGenerator(cfg.JWTSecret, cfg.ResetTokenTTL)
	userService := users.NewService(userRepo, resetTokens, jobClient, logger, users.ServiceConfig{
		SendActivationEmail: cfg.SendActivationEmail,
	})
	passwordService := password.NewService(userRepo, resetTokens, jobClient, logger, password.Config{
		ConfirmationEmail: cfg.PasswordChangedEmailConfirmation,
	})

	authTokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	authService := auth.NewService(userRepo, authTokens)

	var analyticsCache *analytics.Cache
	if redisClient != nil {
		analyticsCache = analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL)
	}
	analyticsService := analytics.NewService(analytics.NewRepository(dbpool), analyticsCache, logger)

	clientService := clients.NewService(clients.NewRepository(dbpool), analyticsCache, logger)
	dealService := deals.NewService(deals.NewRepository(dbpool), analyticsCache, logger)
	taskService := tasks.NewService(tasks.NewRepository(dbpool))

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Authenticator:    auth.Authenticator(authService, logger),
		Metrics:          metrics,
		AuthHandler:      auth.NewHandler(logger, authService, validate),
		UsersHandler:     users.NewHandler(logger, userService, validate, cfg.Site()),
		PasswordHandler:  password.NewHandler(logger, passwordService, validate, cfg.Site()),
		ClientsHandler:   clients.NewHandler(logger, clientService, validate),
		DealsHandler:     deals.NewHandler(logger, dealService, validate),
		TasksHandler:     tasks.NewHandler(logger, taskService, validate),
		AnalyticsHandler: analytics.NewHandler(logger, analyticsService, cfg.AnalyticsRateLimit),
		JobHandler:       jobs.NewHandler(inspector, logger),
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

func runCommand(ctx context.Context, cfg *app.Config, args []string) int {
	return cli.Run(ctx, args, cli.Deps{
		Users: func(ctx context.Context) (users.Repository, func(), error) {
			pool, err := db.New(ctx, cfg.PGDSN)
			if err != nil {
				return nil, nil, err
			}
			return users.NewRepository(pool), pool.Close, nil
		},
		Jobs: func() (*cli.JobsCLI, func(), error) {
			inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			return cli.NewJobsCLI(inspector), func() { _ = inspector.Close() }, nil
		},
	})
}
