package sessionguard

import (
	"fmt"
	"sync"
)

// AuthState defines a public type used by sessionguard APIs.
//
// AuthState instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuthState uint8

const (
	// StateUnauthenticated is an exported constant or variable used by the credential-session subsystem.
	StateUnauthenticated AuthState = iota
	// StateMFASetupRequired is an exported constant or variable used by the credential-session subsystem.
	StateMFASetupRequired
	// StateMFARequired is an exported constant or variable used by the credential-session subsystem.
	StateMFARequired
	// StateAuthenticated is an exported constant or variable used by the credential-session subsystem.
	StateAuthenticated
)

// String implements fmt.Stringer for audit metadata and log fields.
func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateMFASetupRequired:
		return "mfa_setup_required"
	case StateMFARequired:
		return "mfa_required"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// validTransitions is the complete transition table. MFARequired permits a
// self-loop for a wrong code; every state may fall back to Unauthenticated
// on explicit or forced logout. Nothing else is legal.
var validTransitions = map[AuthState][]AuthState{
	StateUnauthenticated:  {StateAuthenticated, StateMFASetupRequired, StateMFARequired, StateUnauthenticated},
	StateMFASetupRequired: {StateAuthenticated, StateUnauthenticated},
	StateMFARequired:      {StateAuthenticated, StateMFARequired, StateUnauthenticated},
	StateAuthenticated:    {StateUnauthenticated},
}

// AuthStateMachine tracks one login attempt through its lifecycle. An
// attempt to transition outside the table is a programming error and fails
// loudly with [ErrInvalidTransition] rather than clamping to a nearby state.
type AuthStateMachine struct {
	mu    sync.Mutex
	state AuthState
}

// NewAuthStateMachine describes the newauthstatemachine operation and its observable behavior.
//
// NewAuthStateMachine does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewAuthStateMachine() *AuthStateMachine {
	return &AuthStateMachine{state: StateUnauthenticated}
}

// resumeAuthState rebuilds the machine for a login attempt that is parked
// mid-flow in a server-side challenge record.
func resumeAuthState(state AuthState) *AuthStateMachine {
	return &AuthStateMachine{state: state}
}

// Current describes the current operation and its observable behavior.
//
// Current does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *AuthStateMachine) Current() AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition describes the transition operation and its observable behavior.
//
// Transition may return an error when input validation, dependency calls, or security checks fail.
// Transition does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *AuthStateMachine) Transition(to AuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, allowed := range validTransitions[m.state] {
		if allowed == to {
			m.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
}
