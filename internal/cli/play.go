package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/aretw0/ludus/internal/presentation/tui"
	"github.com/aretw0/ludus/pkg/adapters/process"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/runner"
)

// PlayOptions contains all the configuration for the play command.
type PlayOptions struct {
	GameID    string
	Version   string
	SessionID string
	Players   []string
	JSON      bool
	Headless  bool
	Watch     bool
	Fresh     bool
	Style     string
	// Bots is a bots.yaml file; the players it lists are played by
	// external programs.
	Bots string
}

// RunPlay plays a session from the terminal, creating it when it does not
// exist yet. The session survives interruption and can be resumed.
func RunPlay(ctx context.Context, app *App, opts PlayOptions, in io.Reader, out io.Writer) error {
	sessions := app.Sessions()
	quiet := opts.JSON || opts.Headless

	sigCtx := NewSignalContext(ctx)
	defer sigCtx.Cancel()

	if opts.Fresh && opts.SessionID != "" {
		if err := sessions.DeleteSession(sigCtx, opts.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("reset session: %w", err)
		}
	}

	snap, err := sessions.GetState(sigCtx, opts.SessionID)
	switch {
	case opts.SessionID != "" && err == nil:
		if opts.GameID != "" && (snap.GameID != opts.GameID || (opts.Version != "" && snap.Version != opts.Version)) {
			return fmt.Errorf("session %s plays %s, not %s@%s", opts.SessionID, snap.Key(), opts.GameID, opts.Version)
		}
		app.Logger.Info("Session resumed", "session_id", snap.SessionID, "status", snap.Status)
		if !quiet {
			printSystemMessage(out, "Resuming session '%s' (%s).", snap.SessionID, snap.Key())
		}
	case opts.SessionID == "" || errors.Is(err, domain.ErrSessionNotFound):
		if opts.GameID == "" || opts.Version == "" {
			return fmt.Errorf("a game id and version are required to start a session")
		}
		snap, err = sessions.CreateSession(sigCtx, opts.SessionID, opts.GameID, opts.Version)
		if err != nil {
			return err
		}
		if !quiet {
			printSystemMessage(out, "Session '%s' created.", snap.SessionID)
		}
	default:
		return err
	}

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(in, out)
	} else {
		var hopts []runner.TextHandlerOption
		if !opts.Headless {
			tui.PrintBanner(out, snap.Key().String())
			render, err := tui.NewRenderer(opts.Style, 0)
			if err != nil {
				app.Logger.Warn("Markdown renderer unavailable", "err", err)
			} else {
				hopts = append(hopts, runner.WithTextHandlerRenderer(render))
			}
		}
		handler = runner.NewTextHandler(in, out, hopts...)
	}

	if opts.Watch {
		var w io.Writer
		if !quiet {
			w = out
		}
		WatchArtifacts(sigCtx, app.Watch, app.Registry(), w, app.Logger)
	}

	ropts := []runner.Option{
		runner.WithInputHandler(handler),
		runner.WithPlayers(opts.Players...),
		runner.WithLogger(app.Logger),
	}
	if opts.Bots != "" {
		bots, err := process.LoadBots(opts.Bots)
		if err != nil {
			return err
		}
		ropts = append(ropts, runner.WithBot(process.NewRunner(
			process.WithRegistry(bots),
			process.WithBaseDir(filepath.Dir(opts.Bots)),
		)))
	}

	r := runner.NewRunner(sessions, snap.SessionID, ropts...)
	runErr := r.Run(sigCtx)

	if !quiet {
		logCompletion(out, snap.SessionID, runErr, sigCtx.Signal())
	}
	return handleExecutionError(runErr)
}
