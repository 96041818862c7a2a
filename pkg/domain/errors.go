package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when creating a session whose ID is taken.
var ErrSessionExists = errors.New("session already exists")

// ErrSessionNotActive is returned when submitting to a session that is not
// active (uninitialized, or ended by completion or a fatal fault).
var ErrSessionNotActive = errors.New("session is not active")

// ErrSessionInitialized is returned when initializing a session twice.
var ErrSessionInitialized = errors.New("session already initialized")

// ErrArtifactsNotFound is returned when no artifact set exists for a game version.
var ErrArtifactsNotFound = errors.New("artifacts not found")

// ErrUnknownPlayer is returned when an action names a player not in the session.
var ErrUnknownPlayer = errors.New("unknown player")

// FaultKind classifies runtime faults.
type FaultKind string

const (
	// FaultDeadlock: no transition is eligible and no player can act.
	FaultDeadlock FaultKind = "deadlock"
	// FaultInvalidState: the state fails structural expectations.
	FaultInvalidState FaultKind = "invalid_state"
	// FaultRuleViolation: a player action failed its validation checks.
	FaultRuleViolation FaultKind = "rule_violation"
	// FaultTransitionFailed: a mutation program could not be applied.
	FaultTransitionFailed FaultKind = "transition_failed"
)

// Fault is a runtime failure during live play.
type Fault struct {
	Kind    FaultKind `json:"kind"`
	Message string    `json:"message"`
	// Transition or action id involved, when known.
	Source string `json:"source,omitempty"`
	Phase  string `json:"phase,omitempty"`

	cause error
}

// NewFault builds a fault wrapping cause.
func NewFault(kind FaultKind, source, phase string, cause error) *Fault {
	f := &Fault{Kind: kind, Source: source, Phase: phase, cause: cause}
	if cause != nil {
		f.Message = cause.Error()
	}
	return f
}

func (f *Fault) Error() string {
	if f.Source != "" {
		return fmt.Sprintf("%s (%s in phase %q): %s", f.Kind, f.Source, f.Phase, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error { return f.cause }

// Is matches another Fault by kind, so errors.Is(err, &Fault{Kind: FaultDeadlock})
// works regardless of message.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	if !ok {
		return false
	}
	return t.Kind == f.Kind
}

// Recoverable reports whether the session stays active after this fault.
func (f *Fault) Recoverable() bool {
	return f.Kind == FaultRuleViolation
}

// AsFault extracts a *Fault from an error chain.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
