// Package validation проверяет тела запросов до того, как они попадут в обработчики.
//
// Простые ограничения полей описаны тегами validate в internal/models,
// связи между полями (триггеры DCA, тейк-профиты, стоп-лосс) проверяются здесь.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// Validator оборачивает go-playground/validator с зарегистрированным тегом symbol
type Validator struct {
	validate *validator.Validate
}

// New создает валидатор. Имена полей в ошибках берутся из json-тегов.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("symbol", func(fl validator.FieldLevel) bool {
		return utils.IsValidSymbol(fl.Field().String())
	})
	return &Validator{validate: v}
}

// NormalizeWebhook приводит регистр тикера, стороны и типа маржи
func NormalizeWebhook(p *models.WebhookPayload) {
	p.Position.Ticker = utils.NormalizeSymbol(p.Position.Ticker)
	p.Position.Side = models.Side(strings.ToUpper(strings.TrimSpace(string(p.Position.Side))))
	p.Position.MarginType = strings.ToUpper(strings.TrimSpace(p.Position.MarginType))
}

// ValidateWebhook проверяет тело /webhook. Возвращает utils.ValidationErrors.
func (v *Validator) ValidateWebhook(p *models.WebhookPayload) error {
	var errs utils.ValidationErrors
	v.collect(&errs, p)

	checkDCA(&errs, p.Position)
	checkTakeProfit(&errs, p.TakeProfit, p.Position.Side)
	checkStopLoss(&errs, p.StopLoss)

	return errs.Err()
}

// ValidateExit проверяет тело /exit. Сторону выхода проверяет сам обработчик.
func (v *Validator) ValidateExit(p *models.ExitPayload) error {
	var errs utils.ValidationErrors
	v.collect(&errs, p)
	return errs.Err()
}

// ValidateOrderUpdate проверяет тело /order-update
func (v *Validator) ValidateOrderUpdate(p *models.OrderUpdatePayload) error {
	var errs utils.ValidationErrors
	v.collect(&errs, p)
	return errs.Err()
}

func (v *Validator) collect(errs *utils.ValidationErrors, s interface{}) {
	err := v.validate.Struct(s)
	if err == nil {
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.AddError("payload", err)
		return
	}
	for _, fe := range fieldErrs {
		errs.Add(fieldPath(fe.Namespace()), message(fe))
	}
}

// fieldPath убирает имя корневой структуры: WebhookPayload.position.ticker -> position.ticker
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "symbol":
		return fmt.Sprintf("invalid symbol %q", fe.Value())
	default:
		return "failed on '" + fe.Tag() + "'"
	}
}

// ============================================================
// Правила между полями
// ============================================================

// checkDCA: ноль или один источник триггеров, триггеры и проценты
// задаются вместе, количества совпадают, сумма процентов 100.
// ATR-множители и цены для SELL по возрастанию, цены для BUY по убыванию.
func checkDCA(errs *utils.ValidationErrors, pos models.PositionRequest) {
	hasATR := len(pos.DCAATRMultipliers) > 0
	hasPrices := len(pos.DCATriggerPrices) > 0

	if hasATR && hasPrices {
		errs.Add("position", "must contain only zero or one of [dcaAtrMultipliers dcaTriggerPrices]")
		return
	}
	hasTrigger := hasATR || hasPrices
	if hasTrigger != pos.HasDCA() {
		errs.Add("position", "dcaAtrMultipliers or dcaTriggerPrices must be specified along with dcaPercentages")
		return
	}
	if !hasTrigger {
		return
	}

	triggers := pos.DCAATRMultipliers
	if hasPrices {
		triggers = pos.DCATriggerPrices
	}

	switch {
	case hasATR || pos.Side == models.SideSell:
		if !slices.IsSorted(triggers) {
			errs.Add("position", fmt.Sprintf("trigger values must be in ascending order: %v", triggers))
		}
	case pos.Side == models.SideBuy:
		if !isDescending(triggers) {
			errs.Add("position", fmt.Sprintf("trigger values must be in descending order: %v", triggers))
		}
	}

	if len(triggers) != len(pos.DCAPercentages) {
		errs.Add("position", fmt.Sprintf("number of trigger values must match number of splits: %v %v",
			triggers, pos.DCAPercentages))
	}
	if utils.SumExact(pos.DCAPercentages) != 100 {
		errs.Add("position.dcaPercentages", fmt.Sprintf("must sum to 100: %v", pos.DCAPercentages))
	}
}

// checkTakeProfit: ровно один источник триггеров. ATR-множители и цены для BUY
// по возрастанию, цены для SELL по убыванию. Количество совпадает со splits, сумма 100.
func checkTakeProfit(errs *utils.ValidationErrors, tp models.TakeProfitRequest, side models.Side) {
	hasATR := len(tp.ATRMultipliers) > 0
	hasPrices := len(tp.TriggerPrices) > 0

	if hasATR == hasPrices {
		errs.Add("takeProfit", "must contain only one of [atrMultipliers triggerPrices]")
		return
	}

	triggers := tp.ATRMultipliers
	if hasPrices {
		triggers = tp.TriggerPrices
	}

	switch {
	case hasATR || side == models.SideBuy:
		if !slices.IsSorted(triggers) {
			errs.Add("takeProfit", fmt.Sprintf("trigger values must be in ascending order: %v", triggers))
		}
	case side == models.SideSell:
		if !isDescending(triggers) {
			errs.Add("takeProfit", fmt.Sprintf("trigger values must be in descending order: %v", triggers))
		}
	}

	if len(triggers) != len(tp.Splits) {
		errs.Add("takeProfit", fmt.Sprintf("number of trigger values must match number of splits: %v %v",
			triggers, tp.Splits))
	}
	if len(tp.Splits) > 0 && utils.SumExact(tp.Splits) != 100 {
		errs.Add("takeProfit.splits", fmt.Sprintf("must sum to 100: %v", tp.Splits))
	}
}

func checkStopLoss(errs *utils.ValidationErrors, sl models.StopLossRequest) {
	if (sl.ATRMultiplier == nil) == (sl.TriggerPrice == nil) {
		errs.Add("stopLoss", "must contain only one of [atrMultiplier triggerPrice]")
	}
}

func isDescending(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] > values[i-1] {
			return false
		}
	}
	return true
}
