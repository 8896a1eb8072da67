package formanalysis

import (
	"encoding/json"
	"fmt"
)

// ActivityThreshold is the raw motion percentage above which the subject is
// considered to be exercising.
const ActivityThreshold = 1.5

// SessionState is either StateIdle or StateActive.
type SessionState int

const (
	StateIdle SessionState = iota
	StateActive
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func (s SessionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SessionState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "idle":
		*s = StateIdle
	case "active":
		*s = StateActive
	default:
		return fmt.Errorf("unknown session state %q", name)
	}
	return nil
}

// TransitionFunc is called on every state change, after the state is set.
type TransitionFunc func(from, to SessionState)

// StateMachine classifies raw motion into Idle/Active. It is not safe for
// concurrent use; the owning Session serializes access.
type StateMachine struct {
	state        SessionState
	onTransition TransitionFunc
}

func NewStateMachine(onTransition TransitionFunc) *StateMachine {
	return &StateMachine{
		state:        StateIdle,
		onTransition: onTransition,
	}
}

func (m *StateMachine) State() SessionState {
	return m.state
}

// Evaluate classifies rawMotion (unscaled percentage) and transitions if the
// classification differs from the current state. It reports whether a
// transition happened.
func (m *StateMachine) Evaluate(rawMotion float64) bool {
	next := StateIdle
	if rawMotion > ActivityThreshold {
		next = StateActive
	}
	return m.transition(next)
}

// ForceIdle moves the machine to Idle regardless of motion. No-op if idle.
func (m *StateMachine) ForceIdle() bool {
	return m.transition(StateIdle)
}

func (m *StateMachine) transition(next SessionState) bool {
	if next == m.state {
		return false
	}
	prev := m.state
	m.state = next
	if m.onTransition != nil {
		m.onTransition(prev, next)
	}
	return true
}
