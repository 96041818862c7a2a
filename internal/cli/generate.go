package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/aretw0/ludus/pkg/adapters/process"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/pipeline"
	"gopkg.in/yaml.v3"
)

// GenerateOptions configures the generate command.
type GenerateOptions struct {
	// Config is a generator file naming the planner and executor programs.
	Config          string
	GameID          string
	Version         string
	Brief           string
	PlanAttempts    int
	ExecuteAttempts int
	// DryRun prints the accepted set as YAML instead of publishing it.
	DryRun bool
}

// Generate runs the generation pipeline with external programs and
// publishes the accepted artifact set.
func Generate(ctx context.Context, app *App, opts GenerateOptions, out io.Writer) error {
	cfg, err := process.LoadGenerator(opts.Config)
	if err != nil {
		return err
	}
	gen := process.NewGenerator(cfg, filepath.Dir(opts.Config))

	pipeOpts := []pipeline.Option{
		pipeline.WithPlanAttempts(opts.PlanAttempts),
		pipeline.WithExecuteAttempts(opts.ExecuteAttempts),
		pipeline.WithObserver(func(s pipeline.Step) { printStep(out, s) }),
	}
	var orch *pipeline.Orchestrator
	if opts.DryRun {
		orch = pipeline.New(gen, gen, append(pipeOpts,
			pipeline.WithValidator(app.Validator()),
			pipeline.WithLogger(app.Logger),
		)...)
	} else {
		if _, ok := app.Sink(); !ok {
			return fmt.Errorf("generate: artifact source is read-only, use --dry-run")
		}
		orch = app.Generator(gen, gen, pipeOpts...)
	}

	res, err := orch.Run(ctx, pipeline.Request{GameID: opts.GameID, Version: opts.Version, Brief: opts.Brief})
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s", ErrInvalidArtifacts, err)
		}
		return err
	}

	if opts.DryRun {
		fmt.Fprintln(out, "---")
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(res.Set); err != nil {
			return fmt.Errorf("encode artifacts: %w", err)
		}
		return enc.Close()
	}
	fmt.Fprintf(out, "Published %s after %d plan and %d execute attempts\n",
		res.Set.GameID+"@"+res.Set.Version, res.Attempts[pipeline.StagePlan], res.Attempts[pipeline.StageExecute])
	return nil
}

func printStep(out io.Writer, s pipeline.Step) {
	fmt.Fprintf(out, "%s -> %s (%s, attempt %d)\n", s.From, s.To, s.Event, s.Attempt)
	for _, issue := range s.Issues {
		if issue.Severity == domain.SeverityError {
			fmt.Fprintf(out, "  - %s\n", issue.String())
		}
	}
}
