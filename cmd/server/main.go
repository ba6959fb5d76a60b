package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/smtp"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sentinelhq/domainwatch/internal/alert"
	"github.com/sentinelhq/domainwatch/internal/config"
	"github.com/sentinelhq/domainwatch/internal/database"
	"github.com/sentinelhq/domainwatch/internal/handler"
	"github.com/sentinelhq/domainwatch/internal/notify"
	"github.com/sentinelhq/domainwatch/internal/runner"
	"github.com/sentinelhq/domainwatch/internal/scheduler"
	"github.com/sentinelhq/domainwatch/internal/service"
	"github.com/sentinelhq/domainwatch/pkg/middleware"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	config.InitLogger(cfg)

	slog.Info("Starting DomainWatch", "version", version)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to MongoDB
	db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			slog.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}()

	// Create indexes
	if err := database.CreateIndexes(ctx, db); err != nil {
		slog.Error("Failed to create indexes", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	opRepo := database.NewOperationRepository(db)
	alertRepo := database.NewAlertRepository(db)
	ruleRepo := database.NewRuleRepository(db)
	targetRepo := database.NewTargetRepository(db)
	lockRepo := database.NewLockRepository(db)

	// Initialize notification channels
	var smtpAuth smtp.Auth
	if cfg.SMTPUser != "" {
		host := cfg.SMTPAddr
		if idx := strings.Index(host, ":"); idx >= 0 {
			host = host[:idx]
		}
		smtpAuth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, host)
	}
	fanout := notify.NewFanout(
		notify.NewWebhookChannel(cfg.WebhookTimeout, notify.RetryConfig{}),
		notify.NewSlackChannel(cfg.WebhookTimeout),
		notify.NewEmailChannel(cfg.SMTPAddr, cfg.SMTPFrom, smtpAuth),
	)

	// Initialize alert manager
	alertManager := alert.NewManager(alertRepo, ruleRepo, fanout)

	// Initialize batch runner
	batchRunner := runner.New(opRepo, targetRepo, alertManager, fanout, runner.Config{
		Workers:      cfg.RunnerWorkers,
		QueueSize:    cfg.RunnerQueueSize,
		ProbesPerSec: cfg.ProbesPerSecond,
	})

	// Initialize services
	operationService := service.NewOperationService(opRepo, targetRepo, batchRunner)
	alertService := service.NewAlertService(alertRepo, alertManager)
	ruleService := service.NewRuleService(ruleRepo)
	statsService := service.NewStatsService(opRepo, alertRepo)
	targetService := service.NewTargetService(targetRepo)

	// Initialize scheduler
	sched := scheduler.NewScheduler(cfg, batchRunner, lockRepo, opRepo, targetRepo)
	sched.Start(ctx)

	// Initialize handlers
	operationHandler := handler.NewOperationHandler(operationService)
	alertHandler := handler.NewAlertHandler(alertService)
	ruleHandler := handler.NewRuleHandler(ruleService)
	targetHandler := handler.NewTargetHandler(targetService)
	statsHandler := handler.NewStatsHandler(statsService)
	healthHandler := handler.NewHealthHandler(db, version)

	// Create CORS config
	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}

	var apiKeys []string
	if cfg.APIKeys != "" {
		apiKeys = strings.Split(cfg.APIKeys, ",")
	}

	// Create router
	router := handler.NewRouter(
		operationHandler,
		alertHandler,
		ruleHandler,
		targetHandler,
		statsHandler,
		healthHandler,
		corsConfig,
		apiKeys,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop scheduler first (wait for in-flight runs)
	slog.Info("Stopping scheduler...")
	sched.Stop(shutdownCtx)

	// Shutdown HTTP server
	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("DomainWatch stopped")
}
