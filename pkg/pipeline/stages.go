package pipeline

import "fmt"

// Stage is a state of the generation machine.
type Stage string

const (
	StagePlan              Stage = "plan"
	StageValidatePlan      Stage = "validate_plan"
	StageExecute           Stage = "execute"
	StageValidateArtifacts Stage = "validate_artifacts"
	StageCommit            Stage = "commit"
	StageDone              Stage = "done"
	StageFailed            Stage = "failed"
)

// Terminal reports whether no edge leaves s.
func (s Stage) Terminal() bool { return s == StageDone || s == StageFailed }

// Event moves the machine from one stage to the next.
type Event string

const (
	EvPlanned            Event = "planned"
	EvPlanRejected       Event = "plan_rejected"
	EvPlanAccepted       Event = "plan_accepted"
	EvExecuted           Event = "executed"
	EvArtifactsRejected  Event = "artifacts_rejected"
	EvArtifactsAccepted  Event = "artifacts_accepted"
	EvCommitted          Event = "committed"
	EvAttemptsExhausted  Event = "attempts_exhausted"
	EvCollaboratorFailed Event = "collaborator_failed"
	EvCommitFailed       Event = "commit_failed"
	EvCanceled           Event = "canceled"
)

// Transition is one allowed edge of the machine.
type Transition struct {
	From  Stage
	Event Event
	To    Stage
}

var transitionsTable = []Transition{
	{From: StagePlan, Event: EvPlanned, To: StageValidatePlan},
	{From: StagePlan, Event: EvCollaboratorFailed, To: StagePlan},
	{From: StagePlan, Event: EvAttemptsExhausted, To: StageFailed},

	{From: StageValidatePlan, Event: EvPlanRejected, To: StagePlan},
	{From: StageValidatePlan, Event: EvPlanAccepted, To: StageExecute},
	{From: StageValidatePlan, Event: EvAttemptsExhausted, To: StageFailed},

	{From: StageExecute, Event: EvExecuted, To: StageValidateArtifacts},
	{From: StageExecute, Event: EvCollaboratorFailed, To: StageExecute},
	{From: StageExecute, Event: EvAttemptsExhausted, To: StageFailed},

	{From: StageValidateArtifacts, Event: EvArtifactsRejected, To: StageExecute},
	{From: StageValidateArtifacts, Event: EvArtifactsAccepted, To: StageCommit},
	{From: StageValidateArtifacts, Event: EvAttemptsExhausted, To: StageFailed},

	{From: StageCommit, Event: EvCommitted, To: StageDone},
	{From: StageCommit, Event: EvCommitFailed, To: StageFailed},

	{From: StagePlan, Event: EvCanceled, To: StageFailed},
	{From: StageValidatePlan, Event: EvCanceled, To: StageFailed},
	{From: StageExecute, Event: EvCanceled, To: StageFailed},
	{From: StageValidateArtifacts, Event: EvCanceled, To: StageFailed},
	{From: StageCommit, Event: EvCanceled, To: StageFailed},
}

// TransitionFor returns the edge taken from a stage on an event.
func TransitionFor(from Stage, ev Event) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// Transitions returns a copy of the transition table.
func Transitions() []Transition {
	return append([]Transition(nil), transitionsTable...)
}

func next(from Stage, ev Event) Stage {
	tr, ok := TransitionFor(from, ev)
	if !ok {
		panic(fmt.Sprintf("pipeline: no transition from %s on %s", from, ev))
	}
	return tr.To
}
