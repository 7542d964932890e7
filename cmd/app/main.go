package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/cache"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/config"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/convo"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/httpserver"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/logging"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/metrics"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/nlu"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/orders"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/repo"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/twilio"
	"github.com/wnliberio/back-bot-sistemas-empresariales/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.AppEnv)
	logger.Info("starting sales assistant", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	var repository repo.Repository
	switch cfg.DatabaseDriver {
	case "sqlite":
		repository, err = repo.NewSQLite(ctx, cfg.SQLitePath, logger)
	default:
		repository, err = repo.NewPostgres(ctx, cfg.DatabaseURL, logger)
	}
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer repository.Close()

	if err := repository.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated", "driver", cfg.DatabaseDriver)

	if err := repository.SyncGeminiKeys(ctx, cfg.GeminiAPIKeys); err != nil {
		return fmt.Errorf("sync gemini keys: %w", err)
	}

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()
	catalogCache := redisClient
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis ping failed, catalog cache disabled", "error", err)
		catalogCache = nil
	}

	nluClient := nlu.New(repository, nlu.Config{
		Model:    cfg.GeminiModel,
		Timeout:  cfg.GeminiTimeout,
		Cooldown: cfg.GeminiCooldown,
	}, logger, metricRegistry)

	twilioClient := twilio.New(twilio.Config{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioWhatsAppFrom,
	}, logger, metricRegistry)

	orderEngine := orders.New(repository, orders.Config{
		CompanyAddress: cfg.CompanyAddress,
		DeliveryDays:   cfg.DeliveryDays,
	}, logger, metricRegistry)

	convoCfg := convo.Config{
		CompanyName:     cfg.CompanyName,
		CompanyAddress:  cfg.CompanyAddress,
		CompanySchedule: cfg.CompanySchedule,
	}
	prompts := convo.NewPromptBuilder(repository, catalogCache, convoCfg, cfg.CatalogCacheTTL, logger)

	var sender convo.Sender
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		sender = twilioClient
	} else {
		logger.Warn("twilio credentials missing, proactive sends disabled")
	}

	convoEngine := convo.New(repository, nluClient, orderEngine, sender, prompts, convoCfg, logger, metricRegistry)
	webhookHandler := twilio.NewWebhookHandler(logger, metricRegistry, convoEngine)

	httpSrv := httpserver.New(httpserver.Config{
		Addr:           cfg.HTTPListenAddr,
		AppEnv:         cfg.AppEnv,
		CompanyName:    cfg.CompanyName,
		WhatsAppNumber: cfg.TwilioWhatsAppFrom,
	}, logger, metricRegistry, httpserver.Dependencies{
		Repository: repository,
		Webhook:    webhookHandler,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}
