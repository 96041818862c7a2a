package domain

// Delta operation tags.
const (
	OpSet              = "set"
	OpIncrement        = "increment"
	OpAppend           = "append"
	OpDelete           = "delete"
	OpMerge            = "merge"
	OpTransfer         = "transfer"
	OpSetForAllPlayers = "setForAllPlayers"
	OpRNG              = "rng"
)

// DeltaOp is the wire form of one state mutation. Which fields are
// meaningful depends on Op.
type DeltaOp struct {
	Op    string `json:"op" yaml:"op" mapstructure:"op"`
	Path  string `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`

	// transfer
	From   string `json:"from,omitempty" yaml:"from,omitempty" mapstructure:"from"`
	To     string `json:"to,omitempty" yaml:"to,omitempty" mapstructure:"to"`
	Amount any    `json:"amount,omitempty" yaml:"amount,omitempty" mapstructure:"amount"`

	// setForAllPlayers
	Field string `json:"field,omitempty" yaml:"field,omitempty" mapstructure:"field"`

	// rng
	Choices       []any     `json:"choices,omitempty" yaml:"choices,omitempty" mapstructure:"choices"`
	Probabilities []float64 `json:"probabilities,omitempty" yaml:"probabilities,omitempty" mapstructure:"probabilities"`
}

// ValidationCheck is an extra rule a player action must satisfy.
type ValidationCheck struct {
	ID           string `json:"id" yaml:"id" mapstructure:"id"`
	Logic        any    `json:"logic" yaml:"logic" mapstructure:"logic"`
	ErrorMessage string `json:"errorMessage" yaml:"errorMessage" mapstructure:"errorMessage"`
}

// ActionValidation groups the checks of a player action.
type ActionValidation struct {
	Checks []ValidationCheck `json:"checks,omitempty" yaml:"checks,omitempty" mapstructure:"checks"`
}

// MessageTemplate is rendered after a program applies. To is "all" or a
// player path/placeholder such as "{{playerId}}".
type MessageTemplate struct {
	To       string `json:"to" yaml:"to" mapstructure:"to"`
	Template string `json:"template" yaml:"template" mapstructure:"template"`
}

// MessageToAll addresses a message to every player.
const MessageToAll = "all"

// PlayerActionInstruction is the program run when a player submits an action.
type PlayerActionInstruction struct {
	ID          string            `json:"id" yaml:"id" mapstructure:"id"`
	ActionName  string            `json:"actionName" yaml:"actionName" mapstructure:"actionName"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Validation  ActionValidation  `json:"validation,omitempty" yaml:"validation,omitempty" mapstructure:"validation"`
	StateDelta  []DeltaOp         `json:"stateDelta" yaml:"stateDelta" mapstructure:"stateDelta"`
	Messages    []MessageTemplate `json:"messages,omitempty" yaml:"messages,omitempty" mapstructure:"messages"`
}

// AutomaticTransitionInstruction is the program run when a transition fires.
type AutomaticTransitionInstruction struct {
	ID                string            `json:"id" yaml:"id" mapstructure:"id"`
	TransitionName    string            `json:"transitionName,omitempty" yaml:"transitionName,omitempty" mapstructure:"transitionName"`
	MechanicsGuidance string            `json:"mechanicsGuidance,omitempty" yaml:"mechanicsGuidance,omitempty" mapstructure:"mechanicsGuidance"`
	StateDelta        []DeltaOp         `json:"stateDelta" yaml:"stateDelta" mapstructure:"stateDelta"`
	Messages          []MessageTemplate `json:"messages,omitempty" yaml:"messages,omitempty" mapstructure:"messages"`
}

// PlayerPhase lists the actions available while a phase waits for input.
type PlayerPhase struct {
	PlayerActions []PlayerActionInstruction `json:"playerActions" yaml:"playerActions" mapstructure:"playerActions"`
}

// Instructions is the instruction half of the artifact contract.
type Instructions struct {
	PlayerPhases map[string]PlayerPhase                    `json:"playerPhases" yaml:"playerPhases" mapstructure:"playerPhases"`
	Transitions  map[string]AutomaticTransitionInstruction `json:"transitions" yaml:"transitions" mapstructure:"transitions"`
}

// FieldSpec describes one state-schema field.
type FieldSpec struct {
	Type        string `json:"type" yaml:"type" mapstructure:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// StateSchema declares the expected shape of the game and player objects.
type StateSchema struct {
	Game   map[string]FieldSpec `json:"game,omitempty" yaml:"game,omitempty" mapstructure:"game"`
	Player map[string]FieldSpec `json:"player,omitempty" yaml:"player,omitempty" mapstructure:"player"`
}

// ArtifactSet is the (schema, transitions, instructions) triple for one
// game version.
type ArtifactSet struct {
	GameID       string             `json:"gameId" yaml:"gameId" mapstructure:"gameId"`
	Version      string             `json:"version" yaml:"version" mapstructure:"version"`
	Schema       StateSchema        `json:"stateSchema,omitempty" yaml:"stateSchema,omitempty" mapstructure:"stateSchema"`
	Graph        TransitionGraphDef `json:"graph" yaml:"graph" mapstructure:"graph"`
	Instructions Instructions       `json:"instructions" yaml:"instructions" mapstructure:"instructions"`
}

// Key identifies an artifact set.
type Key struct {
	GameID  string `json:"gameId" yaml:"gameId"`
	Version string `json:"version" yaml:"version"`
}

func (k Key) String() string { return k.GameID + "@" + k.Version }
