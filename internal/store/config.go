package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Feed struct {
		BaseURL   string `yaml:"base_url"`
		LoginPath string `yaml:"login_path"`
		FeedPath  string `yaml:"feed_path"`
	} `yaml:"feed"`
	AccountsFile string `yaml:"accounts_file"`
	Market       struct {
		Timezone       string   `yaml:"timezone"`
		PreMarketLogin string   `yaml:"pre_market_login"`
		Open           string   `yaml:"open"`
		Close          string   `yaml:"close"`
		Holidays       []string `yaml:"holidays"`
	} `yaml:"market"`
	Login struct {
		MaxAttempts int `yaml:"max_attempts"`
		BaseDelayMs int `yaml:"base_delay_ms"`
		MaxDelayMs  int `yaml:"max_delay_ms"`
	} `yaml:"login"`
	Poll struct {
		EmptyPauseMs   int `yaml:"empty_pause_ms"`
		AccountPauseMs int `yaml:"account_pause_ms"`
		ErrorPauseMs   int `yaml:"error_pause_ms"`
		PhaseCheckMs   int `yaml:"phase_check_ms"`
	} `yaml:"poll"`
	Telegram struct {
		ChatIDEnv   string `yaml:"chat_id_env"`
		BotTokenEnv string `yaml:"bot_token_env"`
	} `yaml:"telegram"`
	Websocket struct {
		URLEnv string `yaml:"url_env"`
	} `yaml:"websocket"`
}

func (c *Config) Validate() error {
	if c.Feed.BaseURL == "" {
		return errors.New("feed.base_url cannot be empty")
	}
	if c.AccountsFile == "" {
		return errors.New("accounts_file cannot be empty")
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("invalid market.timezone '%s': %w", c.Market.Timezone, err)
	}
	for _, field := range []struct{ name, value string }{
		{"market.pre_market_login", c.Market.PreMarketLogin},
		{"market.open", c.Market.Open},
		{"market.close", c.Market.Close},
	} {
		if _, err := time.Parse("15:04", field.value); err != nil {
			return fmt.Errorf("invalid %s '%s': expected HH:MM", field.name, field.value)
		}
	}
	for _, h := range c.Market.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return fmt.Errorf("invalid market holiday '%s': expected YYYY-MM-DD", h)
		}
	}
	if c.Login.MaxAttempts <= 0 {
		return fmt.Errorf("login.max_attempts must be positive, got %d", c.Login.MaxAttempts)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Feed.LoginPath == "" {
		c.Feed.LoginPath = "/users/sign_in"
	}
	if c.Feed.FeedPath == "" {
		c.Feed.FeedPath = "/feed_items/all"
	}
	if c.Market.Timezone == "" {
		c.Market.Timezone = "America/New_York"
	}
	if c.Market.PreMarketLogin == "" {
		c.Market.PreMarketLogin = "08:30"
	}
	if c.Market.Open == "" {
		c.Market.Open = "09:30"
	}
	if c.Market.Close == "" {
		c.Market.Close = "16:00"
	}
	if c.Login.MaxAttempts == 0 {
		c.Login.MaxAttempts = 5
	}
	if c.Login.BaseDelayMs == 0 {
		c.Login.BaseDelayMs = 3000
	}
	if c.Login.MaxDelayMs == 0 {
		c.Login.MaxDelayMs = 30000
	}
	if c.Poll.EmptyPauseMs == 0 {
		c.Poll.EmptyPauseMs = 700
	}
	if c.Poll.AccountPauseMs == 0 {
		c.Poll.AccountPauseMs = 600
	}
	if c.Poll.ErrorPauseMs == 0 {
		c.Poll.ErrorPauseMs = 700
	}
	if c.Poll.PhaseCheckMs == 0 {
		c.Poll.PhaseCheckMs = 5000
	}
	if c.Telegram.ChatIDEnv == "" {
		c.Telegram.ChatIDEnv = "HEDGEYE_TELEGRAM_CHAT_ID"
	}
	if c.Telegram.BotTokenEnv == "" {
		c.Telegram.BotTokenEnv = "HEDGEYE_TELEGRAM_BOT_TOKEN"
	}
	if c.Websocket.URLEnv == "" {
		c.Websocket.URLEnv = "WS_SERVER_URL"
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
