package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"tradebot/internal/exchange"
	"tradebot/pkg/crypto"
)

func writeUsers(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadUserStore(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := crypto.Seal("binance-secret", key)
	if err != nil {
		t.Fatal(err)
	}

	path := writeUsers(t, `{
		"alice": {
			"BOT_API_KEY": "alice-key",
			"EXCHANGE": "BYBIT",
			"BINANCE_API_KEY": "binance-key",
			"BINANCE_SECRET_KEY": "`+sealed+`",
			"BYBIT_TESTNET_API_KEY": "bybit-test-key",
			"BYBIT_TESTNET_SECRET_KEY": "bybit-test-secret"
		},
		"bob": {"BOT_API_KEY": "bob-key"}
	}`)

	store, err := LoadUserStore(path, crypto.EncodeKey(key))
	if err != nil {
		t.Fatalf("LoadUserStore() error = %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}

	alice, ok := store.Get("alice")
	if !ok {
		t.Fatal("alice not found")
	}

	creds := alice.Credentials(exchange.NameBinance, false)
	if creds.APIKey != "binance-key" || creds.SecretKey != "binance-secret" {
		t.Errorf("binance credentials = %+v", creds)
	}
	creds = alice.Credentials("BYBIT", true)
	if creds.APIKey != "bybit-test-key" || creds.SecretKey != "bybit-test-secret" {
		t.Errorf("bybit testnet credentials = %+v", creds)
	}
	if got := alice.ExchangeOr("binance"); got != "bybit" {
		t.Errorf("ExchangeOr() = %q, want bybit", got)
	}

	bob, _ := store.Get("bob")
	if got := bob.ExchangeOr("binance"); got != "binance" {
		t.Errorf("ExchangeOr() = %q, want fallback", got)
	}
}

func TestLoadUserStoreErrors(t *testing.T) {
	key, _ := crypto.GenerateKey()
	sealed, _ := crypto.Seal("secret", key)

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadUserStore(filepath.Join(t.TempDir(), "nope.json"), ""); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		if _, err := LoadUserStore(writeUsers(t, `{"alice": [`), ""); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("sealed secret without key", func(t *testing.T) {
		path := writeUsers(t, `{"alice": {"BOT_API_KEY": "k", "BINANCE_SECRET_KEY": "`+sealed+`"}}`)
		_, err := LoadUserStore(path, "")
		if !errors.Is(err, crypto.ErrMissingKey) {
			t.Errorf("error = %v, want ErrMissingKey", err)
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		if _, err := LoadUserStore(writeUsers(t, `{}`), "short"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestAuthenticate(t *testing.T) {
	hash, err := crypto.HashAPIKey("hashed-key", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	store, err := NewUserStore(map[string]UserProfile{
		"plain":  {BotAPIKey: "plain-key"},
		"hashed": {BotAPIKey: hash},
		"nokey":  {},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		userID  string
		auth    string
		wantErr error
	}{
		{"plain key", "plain", "plain-key", nil},
		{"hashed key", "hashed", "hashed-key", nil},
		{"wrong key", "plain", "other", ErrAuthenticationFailed},
		{"missing auth", "plain", "", ErrAuthenticationFailed},
		{"profile without key", "nokey", "anything", ErrAuthenticationFailed},
		{"unknown user", "mallory", "plain-key", ErrUnknownUser},
		{"empty user id", "", "plain-key", ErrUnknownUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Authenticate(tt.userID, tt.auth)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
