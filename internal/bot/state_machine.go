package bot

import "fmt"

// HandlerState - шаг обработки сигнала
type HandlerState string

const (
	StateBuild          HandlerState = "BUILD"
	StateRiskCheck      HandlerState = "RISK_CHECK"
	StateRetry          HandlerState = "RETRY"
	StateProceed        HandlerState = "PROCEED"
	StateConflictCheck  HandlerState = "CONFLICT_CHECK"
	StateLeverageUpdate HandlerState = "LEVERAGE_UPDATE"
	StateDispatch       HandlerState = "DISPATCH"
	StateRespond        HandlerState = "RESPOND"
	StateFailed         HandlerState = "FAILED"
)

// ValidTransitions определяет допустимые переходы между состояниями
var ValidTransitions = map[HandlerState][]HandlerState{
	StateBuild:          {StateRiskCheck, StateFailed},
	StateRiskCheck:      {StateRetry, StateProceed, StateFailed},
	StateRetry:          {StateBuild},
	StateProceed:        {StateConflictCheck, StateFailed}, // Failed при ошибке сборки TP
	StateConflictCheck:  {StateLeverageUpdate, StateFailed},
	StateLeverageUpdate: {StateDispatch, StateFailed},
	StateDispatch:       {StateRespond, StateFailed},
	StateRespond:        {},
	StateFailed:         {},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to HandlerState) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния для логов
func StateInfo(s HandlerState) string {
	switch s {
	case StateBuild:
		return "Building position and stop loss orders"
	case StateRiskCheck:
		return "Checking portfolio risk"
	case StateRetry:
		return "Reducing position size to fit risk"
	case StateProceed:
		return "Building take profit orders"
	case StateConflictCheck:
		return "Checking existing position"
	case StateLeverageUpdate:
		return "Updating leverage and margin type"
	case StateDispatch:
		return "Sending orders to exchange"
	case StateRespond:
		return "Done"
	case StateFailed:
		return "Request failed, no further orders"
	default:
		return "Unknown state"
	}
}

// IsTerminal - из состояния нет переходов
func IsTerminal(s HandlerState) bool {
	return s == StateRespond || s == StateFailed
}

// stateTracker хранит текущее состояние и историю переходов одного запроса
type stateTracker struct {
	current HandlerState
	history []HandlerState
}

func newStateTracker() *stateTracker {
	return &stateTracker{current: StateBuild, history: []HandlerState{StateBuild}}
}

func (t *stateTracker) moveTo(to HandlerState) error {
	if !CanTransition(t.current, to) {
		return fmt.Errorf("invalid state transition %s -> %s", t.current, to)
	}
	t.current = to
	t.history = append(t.history, to)
	return nil
}
