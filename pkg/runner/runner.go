package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/ludus/internal/logging"
	"github.com/aretw0/ludus/internal/runtime"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/session"
)

// Runner plays one session from a single terminal, passing input between
// players until the game ends (hot seat).
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on stdio.
	Handler IOHandler

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	// Players seeds an uninitialized session before play starts.
	Players []string

	// Renderer is passed to the default TextHandler.
	Renderer ContentRenderer

	// Bot acts for the players it plays. Humans are only prompted once
	// every bot player is done.
	Bot Bot

	sessions  *session.Manager
	sessionID string
}

// NewRunner creates a Runner for one session of the given manager.
func NewRunner(sessions *session.Manager, sessionID string, opts ...Option) *Runner {
	r := &Runner{
		sessions:  sessions,
		sessionID: sessionID,
		Logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// quitCommands end the loop without touching the session.
var quitCommands = map[string]bool{"exit": true, "quit": true, "/quit": true}

// Run drives the session until it ends, input is exhausted or ctx is
// cancelled by a signal. The session stays persisted either way and can be
// resumed by running again.
func (r *Runner) Run(ctx context.Context) error {
	handler := r.resolveHandler()

	signals := NewSignalManager(ctx)
	defer signals.Stop()
	ctx = signals.Context()

	snap, err := r.sessions.GetState(ctx, r.sessionID)
	if err != nil {
		return err
	}
	c, err := r.sessions.Registry().Get(ctx, snap.Key())
	if err != nil {
		return err
	}

	frame := Frame{Snapshot: snap}
	if snap.Status == domain.StatusUninitialized {
		if len(r.Players) == 0 {
			return fmt.Errorf("session %s is not initialized: %w", r.sessionID, runtime.ErrNoPlayers)
		}
		out, err := r.sessions.InitializeSession(ctx, r.sessionID, r.Players)
		if err != nil {
			return fmt.Errorf("initialize error: %w", err)
		}
		frame = NewFrame(c, out)
		snap = out.Snapshot
	} else if snap.Status == domain.StatusActive {
		p := NewPrompt(c, snap)
		frame.Prompt = &p
	}
	if err := handler.Output(ctx, frame); err != nil {
		return fmt.Errorf("output error: %w", err)
	}

	rejected := 0
	for snap.Status == domain.StatusActive {
		botPlayer, prompt := split(r.Bot, NewPrompt(c, snap))
		if botPlayer != "" {
			if rejected >= MaxBotRejections {
				return fmt.Errorf("%w: %s", ErrBotStuck, botPlayer)
			}
			if frame.Prompt == nil {
				p := NewPrompt(c, snap)
				frame.Prompt = &p
			}
			action, err := r.Bot.Act(ctx, botPlayer, frame)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("bot %s: %w", botPlayer, err)
			}
			r.Logger.Debug("Bot acted", "session_id", r.sessionID, "player_id", botPlayer, "action", action)
			_ = handler.SystemOutput(ctx, fmt.Sprintf("%s plays %s", botPlayer, action))

			out, err := r.sessions.SubmitAction(ctx, r.sessionID, botPlayer, action)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				rejected++
				_ = handler.SystemOutput(ctx, err.Error())
				continue
			}
			if out.Fault != nil && out.Fault.Recoverable() {
				rejected++
			} else {
				rejected = 0
			}
			frame = NewFrame(c, out)
			if err := handler.Output(ctx, frame); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
			snap = out.Snapshot
			continue
		}

		sub, err := handler.Input(ctx, prompt)
		if err != nil {
			signals.CheckRace()
			if errors.Is(err, io.EOF) || signals.Context().Err() != nil {
				r.Logger.Debug("Input closed", "session_id", r.sessionID, "err", err)
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}
		if quitCommands[strings.ToLower(sub.Action)] {
			return nil
		}

		out, err := r.sessions.SubmitAction(ctx, r.sessionID, sub.PlayerID, sub.Action)
		switch {
		case errors.Is(err, session.ErrInvalidAction), errors.Is(err, domain.ErrUnknownPlayer):
			_ = handler.SystemOutput(ctx, err.Error())
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("submit error: %w", err)
		}

		frame = NewFrame(c, out)
		if err := handler.Output(ctx, frame); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
		snap = out.Snapshot
	}
	r.Logger.Debug("Session ended", "session_id", r.sessionID, "winners", snap.WinningPlayers)
	return nil
}

func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		r.Handler = NewTextHandler(nil, nil, WithTextHandlerRenderer(r.Renderer))
	}
	return r.Handler
}
