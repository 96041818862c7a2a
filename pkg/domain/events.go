package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTransitionFired EventType = "transition_fired"
	EventActionApplied   EventType = "action_applied"
	EventFault           EventType = "fault"
	EventSessionEnded    EventType = "session_ended"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	GameID    string    `json:"game_id"`
}

// TransitionEvent is emitted each time the fire loop takes a transition.
type TransitionEvent struct {
	EventBase
	TransitionID string `json:"transition_id"`
	FromPhase    string `json:"from_phase"`
	ToPhase      string `json:"to_phase"`
}

// ActionEvent is emitted when a player action program applied.
type ActionEvent struct {
	EventBase
	PlayerID string        `json:"player_id"`
	Action   string        `json:"action"`
	Phase    string        `json:"phase"`
	Duration time.Duration `json:"duration"`
}

// FaultEvent is emitted for every runtime fault, recoverable or not.
type FaultEvent struct {
	EventBase
	Fault *Fault `json:"fault"`
}

// SessionEndedEvent is emitted when a session leaves the Active state.
type SessionEndedEvent struct {
	EventBase
	Winners []string `json:"winners,omitempty"`
	Fault   *Fault   `json:"fault,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTransitionFired func(context.Context, *TransitionEvent)
	OnActionApplied   func(context.Context, *ActionEvent)
	OnFault           func(context.Context, *FaultEvent)
	OnSessionEnded    func(context.Context, *SessionEndedEvent)
}

// Merge combines several hook sets; every non-nil callback is invoked in order.
func Merge(hooks ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range hooks {
		h := h
		if h.OnTransitionFired != nil {
			prev := out.OnTransitionFired
			out.OnTransitionFired = func(ctx context.Context, e *TransitionEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnTransitionFired(ctx, e)
			}
		}
		if h.OnActionApplied != nil {
			prev := out.OnActionApplied
			out.OnActionApplied = func(ctx context.Context, e *ActionEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnActionApplied(ctx, e)
			}
		}
		if h.OnFault != nil {
			prev := out.OnFault
			out.OnFault = func(ctx context.Context, e *FaultEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnFault(ctx, e)
			}
		}
		if h.OnSessionEnded != nil {
			prev := out.OnSessionEnded
			out.OnSessionEnded = func(ctx context.Context, e *SessionEndedEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnSessionEnded(ctx, e)
			}
		}
	}
	return out
}
