package exchange

import (
	"fmt"
	"strings"
)

// SupportedExchanges - список поддерживаемых бирж
var SupportedExchanges = []string{
	NameBinance,
	NameBybit,
}

// Options - параметры адаптера на один запрос
type Options struct {
	Credentials Credentials
	Testnet     bool
	DryRun      bool
}

// NewExchange создает адаптер биржи по имени. При DryRun адаптер
// оборачивается в DryRun и не меняет состояние аккаунта.
func NewExchange(name string, opts Options) (Exchange, error) {
	var ex Exchange

	switch strings.ToLower(name) {
	case NameBinance:
		ex = NewBinance(opts.Credentials, opts.Testnet)
	case NameBybit:
		ex = NewBybit(opts.Credentials, opts.Testnet)
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", name)
	}

	if opts.DryRun {
		return NewDryRun(ex), nil
	}
	return ex, nil
}

// IsSupported проверяет, поддерживается ли биржа
func IsSupported(name string) bool {
	name = strings.ToLower(name)
	for _, supported := range SupportedExchanges {
		if name == supported {
			return true
		}
	}
	return false
}

// ParseUpdateSource разбирает поле exchange из /order-update:
// BINANCE, TESTNET (Binance testnet), BYBIT, BYBIT_TESTNET
func ParseUpdateSource(source string) (name string, testnet bool, err error) {
	switch strings.ToUpper(strings.TrimSpace(source)) {
	case "BINANCE":
		return NameBinance, false, nil
	case "TESTNET":
		return NameBinance, true, nil
	case "BYBIT":
		return NameBybit, false, nil
	case "BYBIT_TESTNET":
		return NameBybit, true, nil
	default:
		return "", false, fmt.Errorf("unsupported exchange: %q", source)
	}
}
