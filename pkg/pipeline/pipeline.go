// Package pipeline drives the generation of an artifact set as an explicit
// state machine:
//
//	Plan → ValidatePlan → {Plan | Execute} → ValidateArtifacts → {Execute | Commit}
//
// Planning and execution are delegated to injected collaborators, usually
// glue around a language model. Every rejected attempt feeds its issues
// back into the next one, and each generating stage has its own attempt cap.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/ludus/internal/logging"
	"github.com/aretw0/ludus/internal/validator"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/ports"
)

// DefaultAttempts caps each generating stage unless overridden.
const DefaultAttempts = 3

// Check names for issues raised by the collaborators themselves.
const (
	CheckPlanner  = "planner"
	CheckExecutor = "executor"
)

var (
	// ErrAttemptsExhausted is returned when a stage used all of its attempts.
	ErrAttemptsExhausted = errors.New("attempts exhausted")
	// ErrInvalidRequest is returned for a request without game id or version.
	ErrInvalidRequest = errors.New("invalid generation request")
)

// Request describes the game to generate.
type Request struct {
	GameID  string `json:"gameId"`
	Version string `json:"version"`
	// Brief is the free-form description handed to the collaborators.
	Brief string `json:"brief,omitempty"`
}

// Key returns the artifact key the request produces.
func (r Request) Key() domain.Key { return domain.Key{GameID: r.GameID, Version: r.Version} }

// Plan is the output of the planning stage: the state schema and the phase
// graph, without instructions.
type Plan struct {
	Schema domain.StateSchema        `json:"stateSchema,omitempty" mapstructure:"stateSchema"`
	Graph  domain.TransitionGraphDef `json:"graph" mapstructure:"graph"`
}

// Planner designs the phase graph. feedback holds the issues that rejected
// the previous attempt, or nil on the first one.
type Planner interface {
	Plan(ctx context.Context, req Request, feedback []domain.Issue) (*Plan, error)
}

// Executor writes the instructions for an accepted plan.
type Executor interface {
	Execute(ctx context.Context, req Request, plan *Plan, feedback []domain.Issue) (domain.Instructions, error)
}

// PlannerFunc adapts a function to Planner.
type PlannerFunc func(ctx context.Context, req Request, feedback []domain.Issue) (*Plan, error)

func (f PlannerFunc) Plan(ctx context.Context, req Request, feedback []domain.Issue) (*Plan, error) {
	return f(ctx, req, feedback)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req Request, plan *Plan, feedback []domain.Issue) (domain.Instructions, error)

func (f ExecutorFunc) Execute(ctx context.Context, req Request, plan *Plan, feedback []domain.Issue) (domain.Instructions, error) {
	return f(ctx, req, plan, feedback)
}

// Step records one transition of a run.
type Step struct {
	From    Stage
	Event   Event
	To      Stage
	Attempt int
	Issues  []domain.Issue
}

// Result is the outcome of a run. It is returned on failure too.
type Result struct {
	Stage    Stage
	Plan     *Plan
	Set      *domain.ArtifactSet
	Attempts map[Stage]int
	Steps    []Step
	// Issues is the last verdict. After a commit it holds the warnings.
	Issues []domain.Issue
}

// Orchestrator runs generation requests.
type Orchestrator struct {
	planner   Planner
	executor  Executor
	validator *validator.Validator
	sink      ports.ArtifactSink
	caps      map[Stage]int
	observe   func(Step)
	logger    *slog.Logger
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithValidator replaces the default validator.
func WithValidator(v *validator.Validator) Option {
	return func(o *Orchestrator) {
		o.validator = v
	}
}

// WithSink stores committed sets. Without a sink the commit stage only
// returns the set.
func WithSink(sink ports.ArtifactSink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// WithPlanAttempts caps the planning stage.
func WithPlanAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.caps[StagePlan] = n
		}
	}
}

// WithExecuteAttempts caps the execution stage.
func WithExecuteAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.caps[StageExecute] = n
		}
	}
}

// WithObserver is called after every transition.
func WithObserver(fn func(Step)) Option {
	return func(o *Orchestrator) {
		o.observe = fn
	}
}

// WithLogger configures a logger for the Orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an Orchestrator around the two collaborators.
func New(planner Planner, executor Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		planner:  planner,
		executor: executor,
		caps:     map[Stage]int{StagePlan: DefaultAttempts, StageExecute: DefaultAttempts},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.validator == nil {
		o.validator = validator.New(validator.WithLogger(o.logger))
	}
	return o
}

// run holds the mutable state of one Run call.
type run struct {
	o   *Orchestrator
	req Request
	res *Result

	feedback []domain.Issue
	err      error
}

// Run drives req until it is committed or fails. The returned Result is
// never nil for a valid request.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.GameID == "" || req.Version == "" {
		return nil, fmt.Errorf("%w: game id and version are required", ErrInvalidRequest)
	}
	r := &run{
		o:   o,
		req: req,
		res: &Result{Stage: StagePlan, Attempts: make(map[Stage]int)},
	}
	o.logger.Info("Generation started", "game_id", req.GameID, "version", req.Version)

	for !r.res.Stage.Terminal() {
		if err := ctx.Err(); err != nil {
			r.err = err
			r.fire(EvCanceled, nil)
			break
		}
		switch r.res.Stage {
		case StagePlan:
			r.plan(ctx)
		case StageValidatePlan:
			r.validatePlan()
		case StageExecute:
			r.execute(ctx)
		case StageValidateArtifacts:
			r.validateArtifacts()
		case StageCommit:
			r.commit(ctx)
		}
	}

	if r.err != nil {
		o.logger.Warn("Generation failed", "game_id", req.GameID, "version", req.Version, "err", r.err)
		return r.res, r.err
	}
	o.logger.Info("Generation committed",
		"game_id", req.GameID,
		"version", req.Version,
		"plan_attempts", r.res.Attempts[StagePlan],
		"execute_attempts", r.res.Attempts[StageExecute],
	)
	return r.res, nil
}

func (r *run) fire(ev Event, issues []domain.Issue) {
	from := r.res.Stage
	step := Step{
		From:    from,
		Event:   ev,
		To:      next(from, ev),
		Attempt: r.res.Attempts[generating(from)],
		Issues:  issues,
	}
	r.res.Stage = step.To
	r.res.Steps = append(r.res.Steps, step)
	r.o.logger.Debug("Generation step",
		"game_id", r.req.GameID,
		"from", string(step.From),
		"event", string(step.Event),
		"to", string(step.To),
		"attempt", step.Attempt,
		"issues", len(issues),
	)
	if r.o.observe != nil {
		r.o.observe(step)
	}
}

// generating maps a stage to the stage whose attempts it spends.
func generating(s Stage) Stage {
	switch s {
	case StageValidatePlan:
		return StagePlan
	case StageValidateArtifacts, StageCommit:
		return StageExecute
	}
	return s
}

// retry fires the retry event unless the stage's cap is spent.
func (r *run) retry(ev Event, issues []domain.Issue) {
	stage := generating(r.res.Stage)
	r.feedback = issues
	r.res.Issues = issues
	if n := r.res.Attempts[stage]; n >= r.o.caps[stage] {
		r.err = fmt.Errorf("%w: %s after %d attempts: %w", ErrAttemptsExhausted, stage, n,
			&domain.ValidationError{Key: r.req.Key(), Issues: errorsOnly(issues)})
		r.fire(EvAttemptsExhausted, issues)
		return
	}
	r.fire(ev, issues)
}

func (r *run) plan(ctx context.Context) {
	r.res.Attempts[StagePlan]++
	plan, err := r.o.planner.Plan(ctx, r.req, r.feedback)
	if err == nil && plan == nil {
		err = errors.New("planner returned no plan")
	}
	if err != nil {
		if ctx.Err() != nil {
			r.err = ctx.Err()
			r.fire(EvCanceled, nil)
			return
		}
		r.retry(EvCollaboratorFailed, []domain.Issue{collaboratorIssue(CheckPlanner, err)})
		return
	}
	r.res.Plan = plan
	r.res.Set = &domain.ArtifactSet{
		GameID:  r.req.GameID,
		Version: r.req.Version,
		Schema:  plan.Schema,
		Graph:   plan.Graph,
	}
	r.fire(EvPlanned, nil)
}

func (r *run) validatePlan() {
	report := r.o.validator.ValidatePlan(artifact.Compile(r.res.Set))
	if !report.OK() {
		r.retry(EvPlanRejected, report.Issues)
		return
	}
	r.feedback = nil
	r.res.Issues = report.Issues
	r.fire(EvPlanAccepted, report.Issues)
}

func (r *run) execute(ctx context.Context) {
	r.res.Attempts[StageExecute]++
	instr, err := r.o.executor.Execute(ctx, r.req, r.res.Plan, r.feedback)
	if err != nil {
		if ctx.Err() != nil {
			r.err = ctx.Err()
			r.fire(EvCanceled, nil)
			return
		}
		r.retry(EvCollaboratorFailed, []domain.Issue{collaboratorIssue(CheckExecutor, err)})
		return
	}
	r.res.Set.Instructions = instr
	r.fire(EvExecuted, nil)
}

func (r *run) validateArtifacts() {
	report := r.o.validator.Validate(artifact.Compile(r.res.Set))
	if !report.OK() {
		r.retry(EvArtifactsRejected, report.Issues)
		return
	}
	r.feedback = nil
	r.res.Issues = report.Issues
	r.fire(EvArtifactsAccepted, report.Issues)
}

func (r *run) commit(ctx context.Context) {
	if r.o.sink == nil {
		r.fire(EvCommitted, nil)
		return
	}
	if err := r.o.sink.Store(ctx, r.res.Set); err != nil {
		r.err = fmt.Errorf("failed to commit artifacts %s: %w", r.req.Key(), err)
		r.fire(EvCommitFailed, nil)
		return
	}
	r.fire(EvCommitted, nil)
}

func collaboratorIssue(check string, err error) domain.Issue {
	return domain.Issue{Severity: domain.SeverityError, Check: check, Message: err.Error()}
}

func errorsOnly(issues []domain.Issue) []domain.Issue {
	var out []domain.Issue
	for _, i := range issues {
		if i.Severity == domain.SeverityError {
			out = append(out, i)
		}
	}
	return out
}
