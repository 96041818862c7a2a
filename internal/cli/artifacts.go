package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/ludus"
	"github.com/aretw0/ludus/internal/presentation/graph"
	"github.com/aretw0/ludus/internal/validator"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
)

// ErrInvalidArtifacts is returned when at least one validated set has errors.
var ErrInvalidArtifacts = errors.New("artifacts failed validation")

// Validate checks artifact documents given as paths, or every set in the
// configured source when no path is given, and prints one report per set.
func Validate(ctx context.Context, app *App, paths []string, out io.Writer) error {
	var reports []*validator.Report
	if len(paths) == 0 {
		keys, err := app.Source().List(ctx)
		if err != nil {
			return fmt.Errorf("list artifacts: %w", err)
		}
		for _, key := range keys {
			rep, err := app.Validator().ValidateSource(ctx, app.Source(), key)
			if err != nil {
				return err
			}
			reports = append(reports, rep)
		}
	} else {
		for _, p := range paths {
			set, err := readArtifacts(p)
			if err != nil {
				return err
			}
			reports = append(reports, app.Validator().Validate(artifact.Compile(set)))
		}
	}

	failed := false
	for _, rep := range reports {
		printReport(out, rep)
		failed = failed || !rep.OK()
	}
	if failed {
		return ErrInvalidArtifacts
	}
	return nil
}

func printReport(out io.Writer, rep *validator.Report) {
	if rep.OK() {
		fmt.Fprintf(out, "%s is valid! ✅\n", rep.Key)
	} else {
		fmt.Fprintf(out, "%s is invalid ❌\n", rep.Key)
	}
	for _, issue := range rep.Issues {
		fmt.Fprintf(out, "  - %s\n", issue.String())
	}
}

// Publish validates artifact documents and stores the accepted ones.
func Publish(ctx context.Context, app *App, paths []string, out io.Writer) error {
	for _, p := range paths {
		set, err := readArtifacts(p)
		if err != nil {
			return err
		}
		c, err := app.Publish(ctx, set)
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			printReport(out, &validator.Report{Key: verr.Key, Issues: verr.Issues})
			return ErrInvalidArtifacts
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Published %s (%s)\n", c.Key, c.Hash[:12])
		for _, w := range app.Validator().Validate(c).Warnings() {
			fmt.Fprintf(out, "  - %s\n", w.String())
		}
	}
	return nil
}

// Graph prints the Mermaid diagram of a game version. With a session id the
// session's current phase is highlighted.
func Graph(ctx context.Context, app *App, key domain.Key, sessionID string, out io.Writer) error {
	c, err := app.Registry().Get(ctx, key)
	if err != nil {
		return err
	}
	var overlay *graph.GraphOverlay
	if sessionID != "" {
		snap, err := app.Sessions().GetState(ctx, sessionID)
		if err != nil {
			return err
		}
		if snap.Key() != key {
			return fmt.Errorf("session %s plays %s, not %s", sessionID, snap.Key(), key)
		}
		overlay = &graph.GraphOverlay{}
		if snap.State != nil {
			overlay.CurrentPhase = snap.State.Phase()
		}
	}
	_, err = io.WriteString(out, graph.GenerateMermaid(c, overlay))
	return err
}

func readArtifacts(path string) (*domain.ArtifactSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifacts: %w", err)
	}
	set, err := ludus.ParseArtifacts(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}
