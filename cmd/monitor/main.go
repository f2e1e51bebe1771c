package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hedgeye-alert-monitor/internal/logger"
	"hedgeye-alert-monitor/internal/trace"
)

func main() {
	if err := initializeSystem(); err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}

	accounts, err := loadAccounts(ctx, cfg)
	if err != nil {
		os.Exit(1)
	}

	loop, err := buildMonitor(ctx, cfg, accounts)
	if err != nil {
		os.Exit(1)
	}

	logger.Info(ctx, "Monitor started", "accounts", len(accounts))
	err = loop.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = trace.Shutdown(shutdownCtx)
	_ = logger.Shutdown(shutdownCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorWithErr(context.Background(), "Monitor stopped with error", err)
		os.Exit(1)
	}
	logger.Info(context.Background(), "Monitor shut down")
}
