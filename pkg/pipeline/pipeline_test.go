package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/ludus/internal/testutils"
	"github.com/aretw0/ludus/internal/validator"
	"github.com/aretw0/ludus/pkg/adapters/memory"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var duelRequest = Request{GameID: "duel", Version: "3", Brief: "two players pick rock, paper or scissors"}

func planOf(set *domain.ArtifactSet) *Plan {
	return &Plan{Schema: set.Schema, Graph: set.Graph}
}

// scripted replays one response per attempt and records the feedback it got.
type scripted struct {
	plans    []*Plan
	instrs   []domain.Instructions
	errs     []error
	feedback [][]domain.Issue
}

func (s *scripted) Plan(_ context.Context, _ Request, feedback []domain.Issue) (*Plan, error) {
	n := len(s.feedback)
	s.feedback = append(s.feedback, feedback)
	if n < len(s.errs) && s.errs[n] != nil {
		return nil, s.errs[n]
	}
	return s.plans[min(n, len(s.plans)-1)], nil
}

func (s *scripted) Execute(_ context.Context, _ Request, _ *Plan, feedback []domain.Issue) (domain.Instructions, error) {
	n := len(s.feedback)
	s.feedback = append(s.feedback, feedback)
	if n < len(s.errs) && s.errs[n] != nil {
		return domain.Instructions{}, s.errs[n]
	}
	return s.instrs[min(n, len(s.instrs)-1)], nil
}

func events(res *Result) []Event {
	var out []Event
	for _, s := range res.Steps {
		out = append(out, s.Event)
	}
	return out
}

func hasIssue(issues []domain.Issue, check, subject string) bool {
	for _, i := range issues {
		if i.Check == check && i.Subject == subject {
			return true
		}
	}
	return false
}

func TestRun_FirstAttempt(t *testing.T) {
	duel := testutils.DuelGame(3)
	planner := &scripted{plans: []*Plan{planOf(duel)}}
	executor := &scripted{instrs: []domain.Instructions{duel.Instructions}}
	sink := memory.NewSource()

	res, err := New(planner, executor, WithSink(sink)).Run(context.Background(), duelRequest)
	require.NoError(t, err)

	assert.Equal(t, StageDone, res.Stage)
	assert.Equal(t, map[Stage]int{StagePlan: 1, StageExecute: 1}, res.Attempts)
	assert.Equal(t, []Event{EvPlanned, EvPlanAccepted, EvExecuted, EvArtifactsAccepted, EvCommitted}, events(res))
	assert.Equal(t, [][]domain.Issue{nil}, planner.feedback)
	assert.Empty(t, errorsOnly(res.Issues))
	assert.NotEmpty(t, res.Issues, "warnings of the accepted set are kept")

	stored, err := sink.Load(context.Background(), "duel", "3")
	require.NoError(t, err)
	assert.Equal(t, duel.Graph, stored.Graph)
}

func TestRun_RetriesWithFeedback(t *testing.T) {
	duel := testutils.DuelGame(3)
	orphan := testutils.OrphanGame()

	broken := testutils.DuelGame(3).Instructions
	delete(broken.PlayerPhases, "choice")

	planner := &scripted{plans: []*Plan{planOf(orphan), planOf(duel)}}
	executor := &scripted{instrs: []domain.Instructions{broken, duel.Instructions}}

	var steps []Step
	res, err := New(planner, executor, WithObserver(func(s Step) { steps = append(steps, s) })).
		Run(context.Background(), duelRequest)
	require.NoError(t, err)

	assert.Equal(t, StageDone, res.Stage)
	assert.Equal(t, map[Stage]int{StagePlan: 2, StageExecute: 2}, res.Attempts)
	assert.Equal(t, []Event{
		EvPlanned, EvPlanRejected, EvPlanned, EvPlanAccepted,
		EvExecuted, EvArtifactsRejected, EvExecuted, EvArtifactsAccepted,
		EvCommitted,
	}, events(res))
	assert.Equal(t, res.Steps, steps)

	require.Len(t, planner.feedback, 2)
	assert.Nil(t, planner.feedback[0])
	assert.True(t, hasIssue(planner.feedback[1], validator.CheckReachability, "limbo"))

	require.Len(t, executor.feedback, 2)
	assert.Nil(t, executor.feedback[0], "an accepted plan starts execution without feedback")
	assert.True(t, hasIssue(executor.feedback[1], validator.CheckStructure, "choice"))
}

func TestRun_AttemptsExhausted(t *testing.T) {
	duel := testutils.DuelGame(3)
	broken := testutils.DuelGame(3).Instructions
	delete(broken.PlayerPhases, "choice")

	planner := &scripted{plans: []*Plan{planOf(duel)}}
	executor := &scripted{instrs: []domain.Instructions{broken}}
	sink := memory.NewSource()

	res, err := New(planner, executor, WithSink(sink), WithExecuteAttempts(2)).
		Run(context.Background(), duelRequest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, duelRequest.Key(), verr.Key)
	assert.True(t, hasIssue(verr.Issues, validator.CheckStructure, "choice"))

	assert.Equal(t, StageFailed, res.Stage)
	assert.Equal(t, 2, res.Attempts[StageExecute])
	assert.Equal(t, EvAttemptsExhausted, res.Steps[len(res.Steps)-1].Event)

	keys, err := sink.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys, "nothing is committed")
}

func TestRun_PlanAttemptsExhausted(t *testing.T) {
	planner := &scripted{plans: []*Plan{planOf(testutils.OrphanGame())}}
	executor := &scripted{}

	res, err := New(planner, executor, WithPlanAttempts(1)).Run(context.Background(), duelRequest)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, StageFailed, res.Stage)
	assert.Equal(t, []Event{EvPlanned, EvAttemptsExhausted}, events(res))
	assert.Empty(t, executor.feedback, "executor never runs")
}

func TestRun_CollaboratorErrorIsRetried(t *testing.T) {
	duel := testutils.DuelGame(3)
	planner := &scripted{
		plans: []*Plan{planOf(duel)},
		errs:  []error{errors.New("model returned invalid JSON")},
	}
	executor := ExecutorFunc(func(context.Context, Request, *Plan, []domain.Issue) (domain.Instructions, error) {
		return duel.Instructions, nil
	})

	res, err := New(planner, executor).Run(context.Background(), duelRequest)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts[StagePlan])
	assert.Equal(t, EvCollaboratorFailed, res.Steps[0].Event)
	assert.Equal(t, StagePlan, res.Steps[0].To)

	require.Len(t, planner.feedback, 2)
	require.Len(t, planner.feedback[1], 1)
	assert.Equal(t, CheckPlanner, planner.feedback[1][0].Check)
	assert.Contains(t, planner.feedback[1][0].Message, "invalid JSON")
}

type failingSink struct{}

func (failingSink) Store(context.Context, *domain.ArtifactSet) error {
	return errors.New("disk full")
}

func TestRun_CommitFailure(t *testing.T) {
	duel := testutils.DuelGame(3)
	planner := &scripted{plans: []*Plan{planOf(duel)}}
	executor := &scripted{instrs: []domain.Instructions{duel.Instructions}}

	res, err := New(planner, executor, WithSink(failingSink{})).Run(context.Background(), duelRequest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NotErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, StageFailed, res.Stage)
	assert.Equal(t, EvCommitFailed, res.Steps[len(res.Steps)-1].Event)
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	planner := PlannerFunc(func(ctx context.Context, _ Request, _ []domain.Issue) (*Plan, error) {
		cancel()
		return nil, ctx.Err()
	})

	res, err := New(planner, &scripted{}).Run(ctx, duelRequest)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StageFailed, res.Stage)
	assert.Equal(t, []Event{EvCanceled}, events(res))
}

func TestRun_InvalidRequest(t *testing.T) {
	_, err := New(&scripted{}, &scripted{}).Run(context.Background(), Request{GameID: "duel"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestTransitionsTable(t *testing.T) {
	from := make(map[Stage]bool)
	for _, tr := range Transitions() {
		assert.False(t, tr.From.Terminal(), "edge %v leaves a terminal stage", tr)
		from[tr.From] = true

		got, ok := TransitionFor(tr.From, tr.Event)
		require.True(t, ok)
		assert.Equal(t, tr, got, "events are unambiguous per stage")
	}
	for _, s := range []Stage{StagePlan, StageValidatePlan, StageExecute, StageValidateArtifacts, StageCommit} {
		assert.True(t, from[s], "%s has no outgoing edge", s)
	}

	_, ok := TransitionFor(StageDone, EvPlanned)
	assert.False(t, ok)
	assert.Panics(t, func() { next(StageCommit, EvPlanned) })
}
