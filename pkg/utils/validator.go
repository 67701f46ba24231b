package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// validator.go - базовые проверки входных данных
//
// Проверки полей webhook-запроса собраны в internal/validation,
// здесь только примитивы, которые нужны нескольким пакетам.

var (
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrInvalidExchange   = errors.New("unsupported exchange")
	ErrInvalidLeverage   = errors.New("invalid leverage")
	ErrInvalidPercentage = errors.New("invalid percentage")
)

// Границы плеча, принимаемые фьючерсными биржами
const (
	MinLeverage = 1
	MaxLeverage = 125
)

// SupportedExchanges - биржи, для которых есть адаптер
var SupportedExchanges = []string{"binance", "bybit"}

var symbolRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_/\-]{1,29}$`)

// ValidateSymbol проверяет формат тикера (BTCUSDT, BTC-USDT, BTC/USDT)
func ValidateSymbol(symbol string) error {
	if !symbolRegex.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// IsValidSymbol - булева форма ValidateSymbol
func IsValidSymbol(symbol string) bool {
	return ValidateSymbol(symbol) == nil
}

// NormalizeSymbol приводит тикер к виду биржи: BTC-usdt -> BTCUSDT
func NormalizeSymbol(symbol string) string {
	r := strings.NewReplacer("-", "", "_", "", "/", "", " ", "")
	return strings.ToUpper(r.Replace(symbol))
}

// NormalizeExchange приводит имя биржи к нижнему регистру без пробелов
func NormalizeExchange(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateExchange проверяет, что для биржи есть адаптер
func ValidateExchange(name string) error {
	n := NormalizeExchange(name)
	for _, e := range SupportedExchanges {
		if e == n {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidExchange, name)
}

func IsValidExchange(name string) bool {
	return ValidateExchange(name) == nil
}

// GetSupportedExchanges возвращает копию списка бирж
func GetSupportedExchanges() []string {
	out := make([]string, len(SupportedExchanges))
	copy(out, SupportedExchanges)
	return out
}

// ValidateLeverage проверяет плечо в диапазоне [MinLeverage, MaxLeverage)
func ValidateLeverage(leverage int) error {
	if leverage < MinLeverage || leverage >= MaxLeverage {
		return fmt.Errorf("%w: %d (allowed %d..%d)", ErrInvalidLeverage, leverage, MinLeverage, MaxLeverage-1)
	}
	return nil
}

// ValidatePercentage проверяет значение в (0, 100]
func ValidatePercentage(value float64) error {
	if value <= 0 || value > 100 {
		return fmt.Errorf("%w: %v", ErrInvalidPercentage, value)
	}
	return nil
}

// ============================================================
// ValidationErrors
// ============================================================

// ValidationError - ошибка конкретного поля
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors накапливает ошибки по полям
type ValidationErrors []ValidationError

func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// AddError добавляет ошибку, nil игнорируется
func (v *ValidationErrors) AddError(field string, err error) {
	if err == nil {
		return
	}
	v.Add(field, err.Error())
}

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Err возвращает nil, если ошибок нет
func (v ValidationErrors) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}
