package domain

// Precondition is a boolean JSON-logic rule gating a transition.
type Precondition struct {
	// Logic is the decoded rule tree, e.g. {"==": [{"var": "game.x"}, true]}.
	Logic any `json:"logic" yaml:"logic" mapstructure:"logic"`
	// Explain is the human label reported when the precondition blocks.
	Explain string `json:"explain,omitempty" yaml:"explain,omitempty" mapstructure:"explain"`
}

// Transition is an edge between two phases.
type Transition struct {
	ID            string         `json:"id" yaml:"id" mapstructure:"id"`
	FromPhase     string         `json:"fromPhase" yaml:"fromPhase" mapstructure:"fromPhase"`
	ToPhase       string         `json:"toPhase" yaml:"toPhase" mapstructure:"toPhase"`
	Preconditions []Precondition `json:"preconditions,omitempty" yaml:"preconditions,omitempty" mapstructure:"preconditions"`
	// CheckedFields lists the state paths the preconditions read. When empty it
	// is derived from the rules at compile time.
	CheckedFields []string `json:"checkedFields,omitempty" yaml:"checkedFields,omitempty" mapstructure:"checkedFields"`
}

// PhaseMetadata carries per-phase attributes.
type PhaseMetadata struct {
	Phase               string `json:"phase" yaml:"phase" mapstructure:"phase"`
	RequiresPlayerInput bool   `json:"requiresPlayerInput" yaml:"requiresPlayerInput" mapstructure:"requiresPlayerInput"`
}

// TransitionGraphDef is the transition half of the artifact contract.
type TransitionGraphDef struct {
	Phases        []string        `json:"phases" yaml:"phases" mapstructure:"phases"`
	Transitions   []Transition    `json:"transitions" yaml:"transitions" mapstructure:"transitions"`
	PhaseMetadata []PhaseMetadata `json:"phaseMetadata,omitempty" yaml:"phaseMetadata,omitempty" mapstructure:"phaseMetadata"`
}

// RequiresInput reports whether the phase is declared as a player-input phase.
func (g *TransitionGraphDef) RequiresInput(phase string) bool {
	for _, m := range g.PhaseMetadata {
		if m.Phase == phase {
			return m.RequiresPlayerInput
		}
	}
	return false
}
