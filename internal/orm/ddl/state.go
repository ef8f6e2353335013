package ddl

import "fmt"

// State is a step of a create or drop run
type State int

const (
	StatePlanning State = iota
	StateBeforeEvents
	StateExecuting
	StateAfterEvents
	StateDone
	StateAborted
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StatePlanning:
		return "PLANNING"
	case StateBeforeEvents:
		return "BEFORE_EVENTS"
	case StateExecuting:
		return "EXECUTING"
	case StateAfterEvents:
		return "AFTER_EVENTS"
	case StateDone:
		return "DONE"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Objects of a collection are processed one after another, so the event
// and executing states repeat until the run is done.
var transitions = map[State][]State{
	StatePlanning:     {StateBeforeEvents},
	StateBeforeEvents: {StateBeforeEvents, StateExecuting, StateAfterEvents},
	StateExecuting:    {StateExecuting, StateAfterEvents, StateBeforeEvents},
	StateAfterEvents:  {StateAfterEvents, StateBeforeEvents, StateExecuting, StateDone},
}

// canTransition reports whether a run may move from one state to another.
// Any non-terminal state may abort.
func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateAborted {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError is returned for a transition the state machine does not allow
type TransitionError struct {
	From State
	To   State
}

// Error implements the error interface
func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid run state transition %s -> %s", e.From, e.To)
}
