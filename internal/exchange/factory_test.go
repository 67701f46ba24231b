package exchange

import (
	"context"
	"testing"

	"tradebot/internal/models"
)

func TestNewExchange(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantName string
		wantDry  bool
		wantErr  bool
	}{
		{"binance", Options{}, NameBinance, false, false},
		{"BYBIT", Options{Testnet: true}, NameBybit, false, false},
		{"binance", Options{DryRun: true}, NameBinance, true, false},
		{"okx", Options{}, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := NewExchange(tt.name, tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ex.GetName() != tt.wantName {
				t.Errorf("name = %s, want %s", ex.GetName(), tt.wantName)
			}
			if ex.IsTestnet() != tt.opts.Testnet {
				t.Errorf("testnet = %v, want %v", ex.IsTestnet(), tt.opts.Testnet)
			}
			_, isDry := ex.(*DryRun)
			if isDry != tt.wantDry {
				t.Errorf("dry run wrapper = %v, want %v", isDry, tt.wantDry)
			}
		})
	}
}

func TestIsSupported(t *testing.T) {
	for _, name := range []string{"binance", "Bybit"} {
		if !IsSupported(name) {
			t.Errorf("%s should be supported", name)
		}
	}
	if IsSupported("gate") {
		t.Error("gate should not be supported")
	}
}

func TestParseUpdateSource(t *testing.T) {
	tests := []struct {
		in          string
		wantName    string
		wantTestnet bool
		wantErr     bool
	}{
		{"BINANCE", NameBinance, false, false},
		{"TESTNET", NameBinance, true, false},
		{"bybit", NameBybit, false, false},
		{"BYBIT_TESTNET", NameBybit, true, false},
		{"KRAKEN", "", false, true},
		{"", "", false, true},
	}

	for _, tt := range tests {
		name, testnet, err := ParseUpdateSource(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseUpdateSource(%q) error = %v", tt.in, err)
			continue
		}
		if name != tt.wantName || testnet != tt.wantTestnet {
			t.Errorf("ParseUpdateSource(%q) = %s,%v; want %s,%v", tt.in, name, testnet, tt.wantName, tt.wantTestnet)
		}
	}
}

func TestToBybitInterval(t *testing.T) {
	tests := map[string]string{"1m": "1", "15m": "15", "1h": "60", "4h": "240", "12h": "720"}
	for tf, want := range tests {
		got, err := ToBybitInterval(tf)
		if err != nil || got != want {
			t.Errorf("ToBybitInterval(%s) = %s, %v; want %s", tf, got, err, want)
		}
	}
	if _, err := ToBybitInterval("8h"); err == nil {
		t.Error("8h is not offered by bybit")
	}
}

// recordingExchange считает вызовы изменяющих методов
type recordingExchange struct {
	Exchange
	mutations int
}

func (r *recordingExchange) GetName() string { return "recording" }
func (r *recordingExchange) PlaceOrder(context.Context, *models.Order) error {
	r.mutations++
	return nil
}
func (r *recordingExchange) CancelOrders(context.Context, string, []string) error {
	r.mutations++
	return nil
}
func (r *recordingExchange) UpdateLeverage(context.Context, string, int) error {
	r.mutations++
	return nil
}
func (r *recordingExchange) UpdateMarginType(context.Context, string, models.MarginType) error {
	r.mutations++
	return nil
}
func (r *recordingExchange) GetCurrentPrice(context.Context, string) (float64, error) {
	return 100, nil
}

func TestDryRun_NoMutations(t *testing.T) {
	inner := &recordingExchange{}
	dry := NewDryRun(inner)
	ctx := context.Background()

	order, err := models.NewPositionMarketOrder("BTCUSDT", models.SideBuy, 1, 100)
	if err != nil {
		t.Fatal(err)
	}
	if err := dry.PlaceOrder(ctx, order); err != nil {
		t.Fatal(err)
	}
	_ = dry.CancelOrders(ctx, "BTCUSDT", []string{"1"})
	_ = dry.UpdateLeverage(ctx, "BTCUSDT", 5)
	_ = dry.UpdateMarginType(ctx, "BTCUSDT", models.MarginCross)

	if inner.mutations != 0 {
		t.Errorf("dry run forwarded %d mutations", inner.mutations)
	}
	if placed := dry.Placed(); len(placed) != 1 || placed[0].ID != order.ID {
		t.Errorf("unexpected placed orders: %v", placed)
	}

	price, err := dry.GetCurrentPrice(ctx, "BTCUSDT")
	if err != nil || price != 100 {
		t.Errorf("reads must reach the exchange: %v, %v", price, err)
	}
}
