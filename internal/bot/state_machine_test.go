package bot

import (
	"testing"
)

// TestCanTransition проверяет переходы конвейера обработки сигнала
func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from HandlerState
		to   HandlerState
		want bool
	}{
		// BUILD → RISK_CHECK (orders built)
		{
			name: "BUILD → RISK_CHECK",
			from: StateBuild,
			to:   StateRiskCheck,
			want: true,
		},
		// RISK_CHECK → RETRY (risk too high, auto adjust on)
		{
			name: "RISK_CHECK → RETRY",
			from: StateRiskCheck,
			to:   StateRetry,
			want: true,
		},
		{
			name: "RETRY → BUILD",
			from: StateRetry,
			to:   StateBuild,
			want: true,
		},
		{
			name: "RISK_CHECK → PROCEED",
			from: StateRiskCheck,
			to:   StateProceed,
			want: true,
		},
		{
			name: "PROCEED → CONFLICT_CHECK",
			from: StateProceed,
			to:   StateConflictCheck,
			want: true,
		},
		// CONFLICT_CHECK → FAILED (same side position exists)
		{
			name: "CONFLICT_CHECK → FAILED",
			from: StateConflictCheck,
			to:   StateFailed,
			want: true,
		},
		{
			name: "CONFLICT_CHECK → LEVERAGE_UPDATE",
			from: StateConflictCheck,
			to:   StateLeverageUpdate,
			want: true,
		},
		{
			name: "LEVERAGE_UPDATE → DISPATCH",
			from: StateLeverageUpdate,
			to:   StateDispatch,
			want: true,
		},
		{
			name: "DISPATCH → RESPOND",
			from: StateDispatch,
			to:   StateRespond,
			want: true,
		},

		// Недопустимые переходы
		{
			name: "BUILD → DISPATCH (skip risk check)",
			from: StateBuild,
			to:   StateDispatch,
			want: false,
		},
		{
			name: "RETRY → PROCEED (retry must rebuild)",
			from: StateRetry,
			to:   StateProceed,
			want: false,
		},
		{
			name: "RISK_CHECK → DISPATCH (skip conflict check)",
			from: StateRiskCheck,
			to:   StateDispatch,
			want: false,
		},
		{
			name: "RESPOND → BUILD (terminal)",
			from: StateRespond,
			to:   StateBuild,
			want: false,
		},
		{
			name: "FAILED → DISPATCH (terminal)",
			from: StateFailed,
			to:   StateDispatch,
			want: false,
		},
		{
			name: "unknown state",
			from: HandlerState("UNKNOWN"),
			to:   StateBuild,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for state := range ValidTransitions {
		want := state == StateRespond || state == StateFailed
		if got := IsTerminal(state); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", state, got, want)
		}
		if IsTerminal(state) && len(ValidTransitions[state]) != 0 {
			t.Errorf("terminal state %s must have no transitions", state)
		}
	}
}

func TestStateInfo(t *testing.T) {
	for state := range ValidTransitions {
		if StateInfo(state) == "Unknown state" {
			t.Errorf("state %s has no description", state)
		}
	}
	if StateInfo(HandlerState("X")) != "Unknown state" {
		t.Error("unexpected description for unknown state")
	}
}

func TestStateTracker(t *testing.T) {
	tr := newStateTracker()
	path := []HandlerState{StateRiskCheck, StateRetry, StateBuild, StateRiskCheck, StateProceed}
	for _, s := range path {
		if err := tr.moveTo(s); err != nil {
			t.Fatalf("moveTo(%s): %v", s, err)
		}
	}
	if err := tr.moveTo(StateRespond); err == nil {
		t.Error("PROCEED → RESPOND must be rejected")
	}
	if tr.current != StateProceed {
		t.Errorf("current = %s, want PROCEED", tr.current)
	}
	if len(tr.history) != len(path)+1 {
		t.Errorf("history length = %d, want %d", len(tr.history), len(path)+1)
	}
}
