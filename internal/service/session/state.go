// Package session provides calibration session state, capture ID generation
// and the per-session record of predictions.
package session

import (
	"errors"
	"fmt"
	"sync"

	"eeg-action-service/internal/eeg"
)

// State represents the position of the calibration state machine.
type State int

const (
	// StateIdle - No session is running.
	StateIdle State = iota
	// StateAwaitingAction - The cue for the current step is shown; the
	// capture is scheduled after the preparation delay.
	StateAwaitingAction
	// StateCapturing - One device read, conditioning, prediction and
	// dispatch, followed by the action window.
	StateCapturing
	// StateEvaluating - The action window has ended; the step is scored and
	// the session advances.
	StateEvaluating
	// StateComplete - Every step ran. Terminal until the next Start.
	StateComplete
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingAction:
		return "AWAITING_ACTION"
	case StateCapturing:
		return "CAPTURING"
	case StateEvaluating:
		return "EVALUATING"
	case StateComplete:
		return "COMPLETE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsActive returns true while a session is in progress.
func (s State) IsActive() bool {
	return s == StateAwaitingAction || s == StateCapturing || s == StateEvaluating
}

// Errors for invalid state transitions.
var (
	ErrNoActiveSession   = errors.New("no calibration session is active")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Lifecycle manages the calibration state machine.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE ──Begin()──→ AWAITING_ACTION(0) ──Capture()──→ CAPTURING(i)
//	  ↑                     ↑                              │
//	  │                     └────Advance()── EVALUATING(i) ←┘ Evaluate()
//	  │                                          │
//	  │                                          └─Advance() on last step─→ COMPLETE
//	  └── Abort() from any active state
//
// Rules:
//   - Begin is allowed from IDLE and COMPLETE only
//   - Each step visits AWAITING_ACTION, CAPTURING and EVALUATING exactly once
//   - Abort returns an active session to IDLE
type Lifecycle struct {
	mu        sync.RWMutex
	sessionId string
	state     State
	step      int
	steps     int
}

// NewLifecycle creates a lifecycle in IDLE state for a session of steps steps.
func NewLifecycle(steps int) *Lifecycle {
	return &Lifecycle{steps: steps, state: StateIdle}
}

// SessionId returns the active or last session ID.
func (l *Lifecycle) SessionId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Step returns the zero-based index of the current step.
func (l *Lifecycle) Step() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.step
}

// Steps returns the number of steps per session.
func (l *Lifecycle) Steps() int {
	return l.steps
}

// Begin starts a new session at step 0.
func (l *Lifecycle) Begin(sessionId string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.IsActive() {
		return &eeg.SessionConflictError{State: l.state.String()}
	}
	l.sessionId = sessionId
	l.state = StateAwaitingAction
	l.step = 0
	return nil
}

// Capture moves AWAITING_ACTION to CAPTURING.
func (l *Lifecycle) Capture() error {
	return l.transition(StateAwaitingAction, StateCapturing)
}

// Evaluate moves CAPTURING to EVALUATING.
func (l *Lifecycle) Evaluate() error {
	return l.transition(StateCapturing, StateEvaluating)
}

// Advance leaves EVALUATING for the next step's AWAITING_ACTION, or for
// COMPLETE after the last step. It reports whether the session completed.
func (l *Lifecycle) Advance() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateEvaluating {
		return false, fmt.Errorf("%w: advance from %s", ErrInvalidTransition, l.state)
	}
	if l.step+1 >= l.steps {
		l.state = StateComplete
		return true, nil
	}
	l.step++
	l.state = StateAwaitingAction
	return false, nil
}

// Abort returns an active session to IDLE.
// Returns true if a session was aborted, false if none was active.
func (l *Lifecycle) Abort() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.state.IsActive() {
		return false
	}
	l.state = StateIdle
	return true
}

func (l *Lifecycle) transition(from, to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != from {
		return fmt.Errorf("%w: %s to %s from %s", ErrInvalidTransition, from, to, l.state)
	}
	l.state = to
	return nil
}
