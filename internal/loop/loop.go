// Package loop defines the engine-loop state machine: the ten states the
// engine can be in and the legal transitions among them.
package loop

import "autoloop/internal/domain"

// State is an engine-loop state.
type State string

const (
	StateIdle             State = "idle"
	StateScanning         State = "scanning"
	StatePlanning         State = "planning"
	StateBuilding         State = "building"
	StateShipChecking     State = "ship_checking"
	StateEvaluating       State = "evaluating"
	StatePaused           State = "paused"
	StateError            State = "error"
	StateAwaitingApproval State = "awaiting_approval"
	StateBudgetExceeded   State = "budget_exceeded"
)

// States lists every engine-loop state.
var States = []State{
	StateIdle, StateScanning, StatePlanning, StateBuilding, StateShipChecking,
	StateEvaluating, StatePaused, StateError, StateAwaitingApproval, StateBudgetExceeded,
}

// transitions is the legal transition table, from -> allowed targets.
var transitions = map[State][]State{
	StateIdle:             {StateScanning, StatePaused},
	StateScanning:         {StatePlanning, StateError, StatePaused, StateBudgetExceeded},
	StatePlanning:         {StateBuilding, StateError, StatePaused, StateBudgetExceeded},
	StateBuilding:         {StateShipChecking, StateError, StatePaused, StateBudgetExceeded, StateAwaitingApproval},
	StateShipChecking:     {StateEvaluating, StateError, StatePaused, StateBudgetExceeded},
	StateEvaluating:       {StateIdle, StateError, StatePaused},
	StatePaused:           {StateIdle, StateScanning, StatePlanning, StateBuilding, StateShipChecking, StateEvaluating},
	StateError:            {StateIdle, StateScanning, StatePaused},
	StateAwaitingApproval: {StateBuilding, StatePaused, StateError},
	StateBudgetExceeded:   {StateIdle, StatePaused},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known engine-loop state.
func Valid(s State) bool {
	_, ok := transitions[s]
	return ok
}

// IsTransient reports whether s is a mid-cycle state that must not survive
// a restart. On start, persisted transient states reset to idle.
func IsTransient(s State) bool {
	switch s {
	case StateIdle, StatePaused:
		return false
	}
	return true
}

// phaseStates maps each pipeline phase to its loop state. The mapping is
// bijective over the five active phases.
var phaseStates = map[domain.Phase]State{
	domain.PhaseScan:      StateScanning,
	domain.PhasePlan:      StatePlanning,
	domain.PhaseBuild:     StateBuilding,
	domain.PhaseShipCheck: StateShipChecking,
	domain.PhaseEval:      StateEvaluating,
}

// StateForPhase returns the loop state a phase runs in.
func StateForPhase(p domain.Phase) (State, bool) {
	s, ok := phaseStates[p]
	return s, ok
}

// PhaseForState returns the phase associated with a loop state, if any.
func PhaseForState(s State) (domain.Phase, bool) {
	for p, ps := range phaseStates {
		if ps == s {
			return p, true
		}
	}
	return "", false
}
