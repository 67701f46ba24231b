package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Enabled {
		t.Error("Database.Enabled should default to false")
	}
	if cfg.Trading.DefaultExchange != "binance" {
		t.Errorf("Trading.DefaultExchange = %q, want binance", cfg.Trading.DefaultExchange)
	}
	if cfg.Trading.MaxPortfolioRisk != 1.5 {
		t.Errorf("Trading.MaxPortfolioRisk = %v, want 1.5", cfg.Trading.MaxPortfolioRisk)
	}
	if cfg.Trading.ATRWindow != 14 {
		t.Errorf("Trading.ATRWindow = %d, want 14", cfg.Trading.ATRWindow)
	}
	if cfg.Trading.RequestTimeout != 30*time.Second {
		t.Errorf("Trading.RequestTimeout = %v, want 30s", cfg.Trading.RequestTimeout)
	}
	if cfg.Users.ConfigPath != "users.json" {
		t.Errorf("Users.ConfigPath = %q, want users.json", cfg.Users.ConfigPath)
	}
	if cfg.Webhook.TrustProxy {
		t.Error("Webhook.TrustProxy should default to false")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DEFAULT_EXCHANGE", "BYBIT")
	t.Setenv("DEFAULT_MAX_PORTFOLIO_RISK", "2.5")
	t.Setenv("REQUEST_TIMEOUT", "10s")
	t.Setenv("ENCRYPTION_KEY", strings.Repeat("ab", 32))
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if !cfg.Database.Enabled {
		t.Error("Database.Enabled = false, want true")
	}
	if cfg.Trading.DefaultExchange != "bybit" {
		t.Errorf("Trading.DefaultExchange = %q, want bybit", cfg.Trading.DefaultExchange)
	}
	if cfg.Trading.MaxPortfolioRisk != 2.5 {
		t.Errorf("Trading.MaxPortfolioRisk = %v, want 2.5", cfg.Trading.MaxPortfolioRisk)
	}
	if cfg.Trading.RequestTimeout != 10*time.Second {
		t.Errorf("Trading.RequestTimeout = %v, want 10s", cfg.Trading.RequestTimeout)
	}
	if got := cfg.Logging.LogConfig().Level; got != "debug" {
		t.Errorf("LogConfig().Level = %q, want debug", got)
	}
	if !cfg.Webhook.TrustProxy {
		t.Error("Webhook.TrustProxy = false, want true")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"port out of range", map[string]string{"SERVER_PORT": "70000"}, "SERVER_PORT"},
		{"unknown exchange", map[string]string{"DEFAULT_EXCHANGE": "kraken"}, "DEFAULT_EXCHANGE"},
		{"risk too high", map[string]string{"DEFAULT_MAX_PORTFOLIO_RISK": "100"}, "DEFAULT_MAX_PORTFOLIO_RISK"},
		{"bad encryption key", map[string]string{"ENCRYPTION_KEY": "short"}, "ENCRYPTION_KEY"},
		{"https without cert", map[string]string{"USE_HTTPS": "true"}, "CERT_FILE"},
		{"zero atr window", map[string]string{"ATR_WINDOW": "0"}, "ATR_WINDOW"},
		{"db port checked when enabled", map[string]string{"DB_ENABLED": "true", "DB_PORT": "0"}, "DB_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %s", err, tt.want)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "bot", Password: "pw", Name: "trades", SSLMode: "disable"}

	if got := d.DSN(); !strings.Contains(got, "password=pw") {
		t.Errorf("DSN() = %q, want password", got)
	}
	if got := d.DSNWithoutPassword(); strings.Contains(got, "pw") {
		t.Errorf("DSNWithoutPassword() = %q leaks password", got)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_BOOL", "nope")
	t.Setenv("TEST_DURATION", "2m")

	if got := getEnvAsInt("TEST_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt() = %d, want default 7", got)
	}
	if got := getEnvAsFloat("TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("getEnvAsFloat() = %v, want 0.25", got)
	}
	if got := getEnvAsBool("TEST_BOOL", true); !got {
		t.Error("getEnvAsBool() should fall back to default")
	}
	if got := getEnvAsDuration("TEST_DURATION", time.Second); got != 2*time.Minute {
		t.Errorf("getEnvAsDuration() = %v, want 2m", got)
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://a.example ,,https://b.example")

	got := getEnvAsList("ALLOWED_ORIGINS")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("getEnvAsList() = %v", got)
	}
	if getEnvAsList("UNSET_LIST_VAR") != nil {
		t.Error("unset variable should give nil")
	}
}
