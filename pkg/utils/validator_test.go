package utils

import (
	"errors"
	"testing"
)

func TestValidateSymbol(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		wantErr bool
	}{
		// Valid symbols
		{"valid BTCUSDT", "BTCUSDT", false},
		{"valid ETHUSDT", "ETHUSDT", false},
		{"valid lowercase", "btcusdt", false},
		{"valid with hyphen", "BTC-USDT", false},
		{"valid with underscore", "BTC_USDT", false},
		{"valid with slash", "BTC/USDT", false},
		{"valid short", "XY", false},
		{"valid with numbers", "1000PEPEUSDT", false},

		// Invalid symbols
		{"empty", "", true},
		{"single char", "B", true},
		{"too long", "BTCUSDTBTCUSDTBTCUSDTBTCUSDTXXX", true},
		{"special chars", "BTC@USDT", true},
		{"spaces", "BTC USDT", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSymbol(tt.symbol)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSymbol(%q) error = %v, wantErr %v", tt.symbol, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSymbol) {
				t.Errorf("ValidateSymbol(%q) error should wrap ErrInvalidSymbol", tt.symbol)
			}
		})
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "btcusdt", "BTCUSDT"},
		{"with hyphen", "btc-usdt", "BTCUSDT"},
		{"with underscore", "BTC_USDT", "BTCUSDT"},
		{"with slash", "btc/usdt", "BTCUSDT"},
		{"already normalized", "BTCUSDT", "BTCUSDT"},
		{"mixed case with hyphen", "Btc-Usdt", "BTCUSDT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeSymbol(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestValidateExchange(t *testing.T) {
	tests := []struct {
		name     string
		exchange string
		wantErr  bool
	}{
		{"valid binance", "binance", false},
		{"valid bybit", "bybit", false},
		{"valid uppercase", "BYBIT", false},
		{"valid mixed case", "Binance", false},
		{"empty", "", true},
		{"unsupported okx", "okx", true},
		{"unsupported kraken", "kraken", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExchange(tt.exchange)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateExchange(%q) error = %v, wantErr %v", tt.exchange, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeExchange(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"bybit", "bybit"},
		{"BYBIT", "bybit"},
		{"ByBit", "bybit"},
		{"  binance  ", "binance"},
	}

	for _, tt := range tests {
		if got := NormalizeExchange(tt.input); got != tt.expected {
			t.Errorf("NormalizeExchange(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestValidateLeverage(t *testing.T) {
	tests := []struct {
		leverage int
		wantErr  bool
	}{
		{1, false},
		{20, false},
		{124, false},
		{0, true},
		{-5, true},
		{125, true},
	}

	for _, tt := range tests {
		err := ValidateLeverage(tt.leverage)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateLeverage(%d) error = %v, wantErr %v", tt.leverage, err, tt.wantErr)
		}
	}
}

func TestValidatePercentage(t *testing.T) {
	tests := []struct {
		value   float64
		wantErr bool
	}{
		{0.5, false},
		{50, false},
		{100, false},
		{0, true},
		{-1, true},
		{100.01, true},
	}

	for _, tt := range tests {
		err := ValidatePercentage(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePercentage(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors

	if errs.Err() != nil {
		t.Error("empty ValidationErrors.Err() should be nil")
	}

	errs.Add("position.side", "must be BUY or SELL")
	errs.Add("takeProfit.splits", "must sum to 100")

	if !errs.HasErrors() {
		t.Error("ValidationErrors.HasErrors() = false, want true")
	}
	if len(errs) != 2 {
		t.Errorf("ValidationErrors length = %d, want 2", len(errs))
	}

	want := "position.side: must be BUY or SELL; takeProfit.splits: must sum to 100"
	if errs.Error() != want {
		t.Errorf("Error() = %q, want %q", errs.Error(), want)
	}
}

func TestValidationErrorsAddError(t *testing.T) {
	var errs ValidationErrors

	errs.AddError("field1", nil)
	if errs.HasErrors() {
		t.Error("ValidationErrors.AddError(nil) should not add error")
	}

	errs.AddError("field2", ErrInvalidSymbol)
	if !errs.HasErrors() {
		t.Error("ValidationErrors.AddError(err) should add error")
	}
}

func TestGetSupportedExchanges(t *testing.T) {
	exchanges := GetSupportedExchanges()

	if len(exchanges) != len(SupportedExchanges) {
		t.Errorf("GetSupportedExchanges() length = %d, want %d", len(exchanges), len(SupportedExchanges))
	}

	exchanges[0] = "modified"
	if SupportedExchanges[0] == "modified" {
		t.Error("GetSupportedExchanges() should return a copy, not the original")
	}
}

func BenchmarkValidateSymbol(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ValidateSymbol("BTCUSDT")
	}
}

func BenchmarkNormalizeSymbol(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NormalizeSymbol("btc-usdt")
	}
}
