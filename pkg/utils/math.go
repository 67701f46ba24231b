package utils

import (
	"github.com/shopspring/decimal"
)

// math.go - округление цен и количеств под требования биржи
//
// Все вычисления идут через shopspring/decimal, чтобы результат лежал
// точно на сетке шага цены или лота, без хвостов float64 вроде 123.46000000000001.
// Функции чистые, без побочных эффектов.

// RoundTo округляет значение до places знаков (half away from zero).
//
// Примеры:
//   - RoundTo(2.00004, 4) = 2.0
//   - RoundTo(0.123456789, 6) = 0.123457
func RoundTo(value float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(value).Round(places).Float64()
	return f
}

// FloorTo округляет значение вниз до places знаков.
func FloorTo(value float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(value).RoundFloor(places).Float64()
	return f
}

// DecimalPlaces возвращает число знаков после запятой у шага цены.
//
// Примеры:
//   - DecimalPlaces(0.01) = 2
//   - DecimalPlaces(0.05) = 2
//   - DecimalPlaces(0.5) = 1
//   - DecimalPlaces(10) = 0
func DecimalPlaces(step float64) int32 {
	if step <= 0 {
		return 0
	}
	exp := decimal.NewFromFloat(step).Exponent()
	if exp >= 0 {
		return 0
	}
	return -exp
}

// RoundToTick привязывает цену к ближайшему шагу tick, затем отсекает
// дробную часть до количества знаков шага.
//
// Если tick <= 0, цена возвращается без изменений.
//
// Примеры:
//   - RoundToTick(123.456, 0.01) = 123.46
//   - RoundToTick(123.456, 0.05) = 123.45
//   - RoundToTick(80, 4) = 80
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	t := decimal.NewFromFloat(tick)
	snapped := decimal.NewFromFloat(price).Div(t).Round(0).Mul(t)
	f, _ := snapped.RoundFloor(DecimalPlaces(tick)).Float64()
	return f
}

// RoundToLotSize округляет значение ВНИЗ до ближайшего кратного lotSize.
//
// Используется для перевода шага лота Bybit (qtyStep) в допустимое количество.
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	step := decimal.NewFromFloat(lotSize)
	f, _ := decimal.NewFromFloat(value).Div(step).Floor().Mul(step).Float64()
	return f
}

// SplitByPercentages делит total на части пропорционально percentages.
//
// Каждая часть кроме последней округляется до precision знаков,
// последняя получает точный остаток total - sum(предыдущих),
// поэтому сумма частей всегда равна total.
//
// Примеры:
//   - SplitByPercentages(2.0, [20 30 50], 4) = [0.4 0.6 1.0]
//   - SplitByPercentages(1.0, [33 33 34], 2) = [0.33 0.33 0.34]
func SplitByPercentages(total float64, percentages []float64, precision int32) []float64 {
	if len(percentages) == 0 {
		return nil
	}

	t := decimal.NewFromFloat(total)
	hundred := decimal.NewFromInt(100)
	remaining := t
	parts := make([]float64, len(percentages))

	for i, pct := range percentages {
		var part decimal.Decimal
		if i == len(percentages)-1 {
			part = remaining.Round(precision)
		} else {
			part = t.Mul(decimal.NewFromFloat(pct)).Div(hundred).Round(precision)
			remaining = remaining.Sub(part)
		}
		parts[i], _ = part.Float64()
	}

	return parts
}

// SumExact складывает значения без накопления ошибки float64
func SumExact(values []float64) float64 {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	f, _ := sum.Float64()
	return f
}

// GainLoss возвращает |qty*exit - qty*entry|, округлённое до центов.
func GainLoss(qty, exitPrice, entryPrice float64) float64 {
	q := decimal.NewFromFloat(qty)
	diff := q.Mul(decimal.NewFromFloat(exitPrice)).Sub(q.Mul(decimal.NewFromFloat(entryPrice)))
	f, _ := diff.Abs().Round(2).Float64()
	return f
}
