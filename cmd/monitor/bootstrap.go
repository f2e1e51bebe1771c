package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"hedgeye-alert-monitor/internal/dedup"
	"hedgeye-alert-monitor/internal/dispatch"
	"hedgeye-alert-monitor/internal/dispatch/dispatchobs"
	"hedgeye-alert-monitor/internal/feed"
	"hedgeye-alert-monitor/internal/feed/feedobs"
	"hedgeye-alert-monitor/internal/interfaces"
	"hedgeye-alert-monitor/internal/logger"
	"hedgeye-alert-monitor/internal/marketclock"
	"hedgeye-alert-monitor/internal/monitor"
	"hedgeye-alert-monitor/internal/retry"
	"hedgeye-alert-monitor/internal/session"
	"hedgeye-alert-monitor/internal/sink"
	"hedgeye-alert-monitor/internal/store"
	"hedgeye-alert-monitor/internal/trace"
	"hedgeye-alert-monitor/internal/types"

	"github.com/joho/godotenv"
)

// initializeSystem initializes environment, logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return err
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// loadAccounts loads the credential pairs; failure here is fatal
func loadAccounts(ctx context.Context, cfg *store.Config) ([]types.Account, error) {
	accounts, err := store.LoadAccounts(cfg.AccountsFile)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load accounts", err, "file", cfg.AccountsFile)
		return nil, err
	}
	logger.Info(ctx, "Accounts loaded", "count", len(accounts))
	return accounts, nil
}

// buildMonitor wires all components and returns the monitor loop
func buildMonitor(ctx context.Context, cfg *store.Config, accounts []types.Account) (*monitor.Loop, error) {
	clock, err := initializeClock(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pool := initializePool(ctx, cfg, accounts)
	extractor := initializeExtractor(cfg, clock)
	dispatcher, err := initializeDispatcher(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pacing := monitor.Pacing{
		EmptyPause:     time.Duration(cfg.Poll.EmptyPauseMs) * time.Millisecond,
		AccountPause:   time.Duration(cfg.Poll.AccountPauseMs) * time.Millisecond,
		ErrorPause:     time.Duration(cfg.Poll.ErrorPauseMs) * time.Millisecond,
		PhaseCheck:     time.Duration(cfg.Poll.PhaseCheckMs) * time.Millisecond,
		OvernightRetry: time.Hour,
	}

	return monitor.New(pacing, clock, pool, extractor, dispatcher, dedup.NewTracker()), nil
}

// initializeClock builds the market clock from the schedule config
func initializeClock(ctx context.Context, cfg *store.Config) (*marketclock.Clock, error) {
	cal, err := marketclock.NewHolidayCalendar(cfg.Market.Holidays)
	if err != nil {
		logger.ErrorWithErr(ctx, "Invalid holiday calendar", err)
		return nil, err
	}

	clock, err := marketclock.New(cfg.Market.Timezone, cfg.Market.PreMarketLogin, cfg.Market.Open, cfg.Market.Close, cal)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build market clock", err)
		return nil, err
	}

	logger.Info(ctx, "Market clock ready",
		"timezone", cfg.Market.Timezone,
		"pre_market_login", cfg.Market.PreMarketLogin,
		"open", cfg.Market.Open,
		"close", cfg.Market.Close,
		"holidays", len(cfg.Market.Holidays),
	)
	return clock, nil
}

// initializePool builds the session pool with an observable authenticator
func initializePool(ctx context.Context, cfg *store.Config, accounts []types.Account) *session.Pool {
	auth := feed.NewAuthenticator(cfg.Feed.BaseURL, cfg.Feed.LoginPath, 60*time.Second)

	retryCfg := retry.Config{
		MaxAttempts:   cfg.Login.MaxAttempts,
		InitialDelay:  time.Duration(cfg.Login.BaseDelayMs) * time.Millisecond,
		MaxDelay:      time.Duration(cfg.Login.MaxDelayMs) * time.Millisecond,
		BackoffFactor: 1.5,
		Jitter:        0.4,
	}

	// Wrap with observability middleware
	return session.NewPool(feedobs.WrapAuthenticator(auth), accounts, retryCfg)
}

// initializeExtractor builds the alert extractor with observability
func initializeExtractor(cfg *store.Config, clock *marketclock.Clock) interfaces.Extractor {
	extractor := feed.NewExtractor(cfg.Feed.BaseURL, cfg.Feed.FeedPath, cfg.Feed.LoginPath, clock.Location())

	// Wrap with observability middleware
	return feedobs.WrapExtractor(extractor)
}

// initializeDispatcher builds the dispatcher over both sinks
func initializeDispatcher(ctx context.Context, cfg *store.Config) (interfaces.Dispatcher, error) {
	botToken := os.Getenv(cfg.Telegram.BotTokenEnv)
	chatID := os.Getenv(cfg.Telegram.ChatIDEnv)
	if botToken == "" || chatID == "" {
		err := fmt.Errorf("missing %s or %s in environment", cfg.Telegram.BotTokenEnv, cfg.Telegram.ChatIDEnv)
		logger.ErrorWithErr(ctx, "Telegram sink not configured", err)
		return nil, err
	}

	wsURL := os.Getenv(cfg.Websocket.URLEnv)
	if wsURL == "" {
		err := fmt.Errorf("missing %s in environment", cfg.Websocket.URLEnv)
		logger.ErrorWithErr(ctx, "Websocket sink not configured", err)
		return nil, err
	}

	dispatcher := dispatch.New(sink.NewWSBus(wsURL), sink.NewTelegram(botToken, chatID))

	// Wrap with observability middleware
	return dispatchobs.Wrap(dispatcher), nil
}
