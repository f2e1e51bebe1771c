package store

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

const minimalConfig = `
feed:
  base_url: https://app.example.com
accounts_file: accounts.json
`

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "config.yaml", minimalConfig))
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}

	if cfg.Feed.LoginPath != "/users/sign_in" {
		t.Errorf("Expected default login path, got %s", cfg.Feed.LoginPath)
	}
	if cfg.Feed.FeedPath != "/feed_items/all" {
		t.Errorf("Expected default feed path, got %s", cfg.Feed.FeedPath)
	}
	if cfg.Market.Timezone != "America/New_York" {
		t.Errorf("Expected default timezone, got %s", cfg.Market.Timezone)
	}
	if cfg.Market.PreMarketLogin != "08:30" || cfg.Market.Open != "09:30" || cfg.Market.Close != "16:00" {
		t.Errorf("Unexpected default market hours: %+v", cfg.Market)
	}
	if cfg.Login.MaxAttempts != 5 {
		t.Errorf("Expected 5 login attempts, got %d", cfg.Login.MaxAttempts)
	}
	if cfg.Poll.EmptyPauseMs != 700 || cfg.Poll.AccountPauseMs != 600 || cfg.Poll.ErrorPauseMs != 700 {
		t.Errorf("Unexpected default pacing: %+v", cfg.Poll)
	}
	if cfg.Telegram.BotTokenEnv != "HEDGEYE_TELEGRAM_BOT_TOKEN" || cfg.Telegram.ChatIDEnv != "HEDGEYE_TELEGRAM_CHAT_ID" {
		t.Errorf("Unexpected telegram env names: %+v", cfg.Telegram)
	}
	if cfg.Websocket.URLEnv != "WS_SERVER_URL" {
		t.Errorf("Unexpected websocket env name: %s", cfg.Websocket.URLEnv)
	}
}

func TestLoadConfigKeepsExplicitValues(t *testing.T) {
	content := `
feed:
  base_url: https://app.example.com
  feed_path: /feed_items/research
accounts_file: accounts.json
market:
  timezone: America/Chicago
  open: "08:30"
  pre_market_login: "07:30"
  close: "15:00"
  holidays: ["2026-12-25"]
login:
  max_attempts: 3
`
	cfg, err := LoadConfig(writeFile(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}
	if cfg.Feed.FeedPath != "/feed_items/research" {
		t.Errorf("Expected explicit feed path to survive, got %s", cfg.Feed.FeedPath)
	}
	if cfg.Market.Timezone != "America/Chicago" || cfg.Market.Open != "08:30" {
		t.Errorf("Expected explicit market settings to survive: %+v", cfg.Market)
	}
	if cfg.Login.MaxAttempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", cfg.Login.MaxAttempts)
	}
	if len(cfg.Market.Holidays) != 1 {
		t.Errorf("Expected 1 holiday, got %d", len(cfg.Market.Holidays))
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing base url", "accounts_file: accounts.json\n"},
		{"missing accounts file", "feed:\n  base_url: https://app.example.com\n"},
		{"bad timezone", minimalConfig + "market:\n  timezone: Mars/Olympus\n"},
		{"bad open time", minimalConfig + "market:\n  open: 9am\n"},
		{"bad holiday", minimalConfig + "market:\n  holidays: [\"Dec 25\"]\n"},
		{"negative attempts", minimalConfig + "login:\n  max_attempts: -1\n"},
	}

	for _, tc := range cases {
		if _, err := LoadConfig(writeFile(t, "config.yaml", tc.content)); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadAccounts(t *testing.T) {
	path := writeFile(t, "accounts.json",
		`[{"email": "a@example.com", "password": "pw1"}, {"email": "b@example.com", "password": "pw2"}]`)

	accounts, err := LoadAccounts(path)
	if err != nil {
		t.Fatalf("Expected accounts to load, got %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("Expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Email != "a@example.com" || accounts[1].Password != "pw2" {
		t.Errorf("Unexpected accounts: %+v", accounts)
	}
}

func TestLoadAccountsRejectsBadFiles(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty list", `[]`},
		{"missing password", `[{"email": "a@example.com"}]`},
		{"missing email", `[{"password": "pw"}]`},
		{"not json", `email,password`},
	}

	for _, tc := range cases {
		path := writeFile(t, "accounts.json", tc.content)
		if _, err := LoadAccounts(path); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
