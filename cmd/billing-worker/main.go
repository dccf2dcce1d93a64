package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting billing-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// AMQP client so each charge publishes a sync message for the
	// export-worker. The worker runs fine without it.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", "error", err)
		} else {
			amqpClient = client
			logger.Info("AMQP client initialized - charges will sync via export-worker")
		}
	} else {
		logger.Info("AMQP disabled - charges will not publish sync messages")
	}

	ledger := services.NewTransactionService(repo, amqpClient)
	defer ledger.Close()
	processor := services.NewBillingProcessor(repo, ledger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Billing processor configured",
		"interval", cfg.BillingInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.BillingInterval)
	defer ticker.Stop()

	// Run initial processing on startup
	logger.Info("Running initial billing pass...")
	if report, err := processor.ProcessDueSubscriptions(ctx, time.Now()); err != nil {
		logger.Error("Initial billing pass failed", "error", err)
	} else {
		logger.Info("Initial billing pass complete",
			"processed", report.Processed,
			"errors", report.Errors)
	}

	// Start periodic processing
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				logger.Info("Processing due subscriptions...")
				report, err := processor.ProcessDueSubscriptions(ctx, now)
				if err != nil {
					logger.Error("Periodic billing pass failed", "error", err)
				} else {
					logger.Info("Periodic billing pass complete",
						"processed", report.Processed,
						"errors", report.Errors,
						"next_check", now.Add(cfg.BillingInterval).Format("15:04:05"))
				}
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down billing-worker...")
	cancel()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(2 * time.Second):
		logger.Info("Billing-worker shutdown complete")
	}
}
