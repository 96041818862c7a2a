package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/ludus/pkg/domain"
)

// LogHooks writes one structured line per lifecycle event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransitionFired: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "transition_fired",
				"session_id", e.SessionID,
				"transition_id", e.TransitionID,
				"from", e.FromPhase,
				"to", e.ToPhase,
			)
		},
		OnActionApplied: func(ctx context.Context, e *domain.ActionEvent) {
			logger.InfoContext(ctx, "action_applied",
				"session_id", e.SessionID,
				"player_id", e.PlayerID,
				"action", e.Action,
				"phase", e.Phase,
				"duration", e.Duration,
			)
		},
		OnFault: func(ctx context.Context, e *domain.FaultEvent) {
			level := slog.LevelError
			if e.Fault.Recoverable() {
				level = slog.LevelInfo
			}
			logger.Log(ctx, level, "fault",
				"session_id", e.SessionID,
				"kind", e.Fault.Kind,
				"source", e.Fault.Source,
				"phase", e.Fault.Phase,
				"err", e.Fault.Message,
			)
		},
		OnSessionEnded: func(ctx context.Context, e *domain.SessionEndedEvent) {
			logger.InfoContext(ctx, "session_ended",
				"session_id", e.SessionID,
				"winners", e.Winners,
			)
		},
	}
}
