package bot

import (
	"errors"
	"fmt"

	"tradebot/internal/models"
)

// ============================================================
// Ошибки торгового конвейера
// ============================================================

var (
	// ErrRiskTooHigh - риск позиции выше допустимого
	ErrRiskTooHigh = errors.New("maximum risk exceeded")

	// ErrPositionOfSameSideAlreadyExists - открыта позиция той же стороны
	ErrPositionOfSameSideAlreadyExists = errors.New("position of same side already exists")

	// ErrMissingDCATrigger - заданы доли DCA, но нет ни множителей ATR, ни цен
	ErrMissingDCATrigger = errors.New("missing DCA trigger: dcaAtrMultipliers or dcaTriggerPrices required")

	// ErrMissingTrigger - у стоп-лосса или тейк-профита нет источника цены
	ErrMissingTrigger = errors.New("missing trigger: atr multiplier or trigger price required")

	// ErrQuantityTooSmall - после округления количество стало нулевым
	ErrQuantityTooSmall = errors.New("position quantity rounds to zero")

	ErrInvalidInterval  = errors.New("invalid interval")
	ErrNotEnoughCandles = errors.New("not enough candles to calculate ATR")

	// ErrInvalidExitSide - exitSide не BUY и не SELL
	ErrInvalidExitSide = errors.New("Post body must contain exitSide BUY or SELL in JSON payload")

	// ErrEmptyPortfolio - баланс аккаунта нулевой, риск не считается
	ErrEmptyPortfolio = errors.New("portfolio value must be positive")
)

// RiskTooHighError несёт рассчитанный и максимальный риск
type RiskTooHighError struct {
	Risk    float64
	MaxRisk float64
}

func (e *RiskTooHighError) Error() string {
	return fmt.Sprintf("Maximum risk exceeded for position. Risk: %g Max Risk: %g", e.Risk, e.MaxRisk)
}

// Is позволяет errors.Is(err, ErrRiskTooHigh)
func (e *RiskTooHighError) Is(target error) bool {
	return target == ErrRiskTooHigh
}

// PositionConflictError - на бирже уже открыта позиция стороны Side
type PositionConflictError struct {
	Side models.Side
}

func (e *PositionConflictError) Error() string {
	return fmt.Sprintf("Position of same side already exists. Existing position side: %s", e.Side)
}

func (e *PositionConflictError) Is(target error) bool {
	return target == ErrPositionOfSameSideAlreadyExists
}
