package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/ludus/pkg/adapters/file"
	"github.com/aretw0/ludus/pkg/persistence/middleware"
)

// ListSessions prints every session id with its game and status.
func ListSessions(ctx context.Context, app *App, out io.Writer) error {
	ids, err := app.Sessions().ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}
	fmt.Fprintln(out, "Sessions:")
	for _, id := range ids {
		snap, err := app.Sessions().GetState(ctx, id)
		if err != nil {
			fmt.Fprintf(out, "- %s (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Fprintf(out, "- %s  %s  %s\n", id, snap.Key(), snap.Status)
	}
	return nil
}

// InspectSession prints a session snapshot as indented JSON.
func InspectSession(ctx context.Context, app *App, sessionID string, out io.Writer) error {
	snap, err := app.Sessions().GetState(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session %q: %w", sessionID, err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// RemoveSessions deletes each session, reporting failures together.
func RemoveSessions(ctx context.Context, app *App, ids []string, out io.Writer) error {
	var errs []error
	for _, id := range ids {
		if err := app.Sessions().DeleteSession(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("remove %q: %w", id, err))
			continue
		}
		fmt.Fprintf(out, "Removed session '%s'\n", id)
	}
	return errors.Join(errs...)
}

// ExportSessions copies sessions into a file store at dir. With redact,
// state keys matching the configured PII patterns are masked in the copy.
func ExportSessions(ctx context.Context, app *App, ids []string, dir string, redact bool, out io.Writer) error {
	if len(ids) == 0 {
		var err error
		if ids, err = app.Sessions().ListSessions(ctx); err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
	}

	var mws []middleware.Middleware
	if redact {
		if len(app.Config.Security.PIIPatterns) == 0 {
			return fmt.Errorf("--redact needs security.piiPatterns (LUDUS_PII_PATTERNS)")
		}
		pii, err := middleware.NewPIIMiddleware(app.Config.Security.PIIPatterns)
		if err != nil {
			return err
		}
		mws = append(mws, pii)
	}
	target := middleware.Chain(file.New(dir), mws...)

	for _, id := range ids {
		snap, err := app.Sessions().GetState(ctx, id)
		if err != nil {
			return fmt.Errorf("load session %q: %w", id, err)
		}
		if err := target.Save(ctx, id, snap); err != nil {
			return fmt.Errorf("export session %q: %w", id, err)
		}
	}
	fmt.Fprintf(out, "Exported %d session(s) to %s\n", len(ids), dir)
	return nil
}
