// Package main is the entry point for the expense approval service: the HTTP
// API, the notification dispatcher and, when configured, the Telegram bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/bot"
	"gitlab.com/yelinaung/expense-approvals/internal/config"
	"gitlab.com/yelinaung/expense-approvals/internal/database"
	"gitlab.com/yelinaung/expense-approvals/internal/exchange"
	"gitlab.com/yelinaung/expense-approvals/internal/gemini"
	"gitlab.com/yelinaung/expense-approvals/internal/httpapi"
	"gitlab.com/yelinaung/expense-approvals/internal/logger"
	"gitlab.com/yelinaung/expense-approvals/internal/notify"
	"gitlab.com/yelinaung/expense-approvals/internal/repository"
	"gitlab.com/yelinaung/expense-approvals/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("expense-approvals %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	if err := run(); err != nil {
		logger.Log.Fatal().Err(err).Msg("Service stopped")
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	logger.InitHashSalt()

	providers, err := telemetry.Setup(ctx, telemetry.Options{
		Exporter:       cfg.OTelExporter,
		ServiceName:    cfg.OTelServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Log.Info().Msg("Database initialized successfully")

	store := repository.NewStore(pool, cfg.TxTimeout)
	rates := exchange.NewCachedService(
		exchange.NewFrankfurterClient(cfg.ExchangeRateBaseURL, cfg.ExchangeRateTimeout),
		cfg.ExchangeRateCacheTTL,
	)
	engine := approval.NewEngine(store,
		approval.WithConverter(rates),
		approval.WithMeterProvider(providers.MeterProvider),
		approval.WithTracerProvider(providers.TracerProvider),
	)
	rules := approval.NewRuleService(store)

	var (
		apiOpts []httpapi.Option
		botOpts []bot.Option
	)
	if cfg.GeminiEnabled() {
		receipts, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return fmt.Errorf("failed to create receipt parser: %w", err)
		}
		apiOpts = append(apiOpts, httpapi.WithReceiptParser(receipts))
		botOpts = append(botOpts, bot.WithReceiptParser(receipts))
		logger.Log.Info().Str("model", receipts.Model()).Msg("Receipt parsing enabled")
	}

	senders := notify.Fanout{notify.NewLogSender()}
	var telegramBot *bot.Bot
	if cfg.TelegramEnabled() {
		telegramBot, err = bot.New(cfg, engine, botOpts...)
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
		senders = append(senders, telegramBot.Notifier())
	}

	dispatcher := notify.NewDispatcher(store, senders,
		notify.WithPollInterval(cfg.NotifyPollInterval),
		notify.WithBatchSize(cfg.NotifyBatchSize),
		notify.WithMaxAttempts(cfg.NotifyMaxAttempts),
		notify.WithMeterProvider(providers.MeterProvider),
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.New(engine, rules, apiOpts...).Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	if telegramBot != nil {
		g.Go(func() error {
			telegramBot.Start(gctx)
			return nil
		})
	}

	return g.Wait()
}
