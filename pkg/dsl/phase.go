package dsl

import "github.com/aretw0/ludus/pkg/domain"

// PhaseBuilder provides a fluent API for configuring a phase.
type PhaseBuilder struct {
	id          string
	input       bool
	transitions []*TransitionBuilder
	actions     []*ActionBuilder
}

// Input marks the phase as waiting for player actions.
func (p *PhaseBuilder) Input() *PhaseBuilder {
	p.input = true
	return p
}

// Go adds a transition from this phase to target. Without When it fires
// unconditionally.
func (p *PhaseBuilder) Go(id, target string) *TransitionBuilder {
	tb := &TransitionBuilder{def: domain.Transition{ID: id, FromPhase: p.id, ToPhase: target}}
	p.transitions = append(p.transitions, tb)
	return tb
}

// Action adds a player action available while the phase waits for input.
func (p *PhaseBuilder) Action(name string) *ActionBuilder {
	ab := &ActionBuilder{def: domain.PlayerActionInstruction{ID: name, ActionName: name}}
	p.actions = append(p.actions, ab)
	return ab
}

// TransitionBuilder configures one transition and its program.
type TransitionBuilder struct {
	def     domain.Transition
	program *domain.AutomaticTransitionInstruction
}

// When adds a precondition. All preconditions must hold for the
// transition to fire.
func (t *TransitionBuilder) When(explain string, logic any) *TransitionBuilder {
	t.def.Preconditions = append(t.def.Preconditions, domain.Precondition{Logic: logic, Explain: explain})
	return t
}

// Checks overrides the state paths derived from the preconditions.
func (t *TransitionBuilder) Checks(paths ...string) *TransitionBuilder {
	t.def.CheckedFields = append(t.def.CheckedFields, paths...)
	return t
}

// Do appends state delta operations to the transition program.
func (t *TransitionBuilder) Do(ops ...domain.DeltaOp) *TransitionBuilder {
	prog := t.ensure()
	prog.StateDelta = append(prog.StateDelta, ops...)
	return t
}

// Say appends a message rendered after the program applies.
func (t *TransitionBuilder) Say(to, template string) *TransitionBuilder {
	prog := t.ensure()
	prog.Messages = append(prog.Messages, domain.MessageTemplate{To: to, Template: template})
	return t
}

// Guidance sets the free-text mechanics note carried by the program.
func (t *TransitionBuilder) Guidance(text string) *TransitionBuilder {
	t.ensure().MechanicsGuidance = text
	return t
}

func (t *TransitionBuilder) ensure() *domain.AutomaticTransitionInstruction {
	if t.program == nil {
		t.program = &domain.AutomaticTransitionInstruction{ID: t.def.ID, TransitionName: t.def.ID}
	}
	return t.program
}

// ActionBuilder configures one player action.
type ActionBuilder struct {
	def domain.PlayerActionInstruction
}

// Describe sets the text shown to players.
func (a *ActionBuilder) Describe(text string) *ActionBuilder {
	a.def.Description = text
	return a
}

// Check adds a validation rule; msg is reported when it fails.
func (a *ActionBuilder) Check(id string, logic any, msg string) *ActionBuilder {
	a.def.Validation.Checks = append(a.def.Validation.Checks, domain.ValidationCheck{
		ID:           id,
		Logic:        logic,
		ErrorMessage: msg,
	})
	return a
}

// Do appends state delta operations to the action program.
func (a *ActionBuilder) Do(ops ...domain.DeltaOp) *ActionBuilder {
	a.def.StateDelta = append(a.def.StateDelta, ops...)
	return a
}

// Say appends a message rendered after the action applies.
func (a *ActionBuilder) Say(to, template string) *ActionBuilder {
	a.def.Messages = append(a.def.Messages, domain.MessageTemplate{To: to, Template: template})
	return a
}
