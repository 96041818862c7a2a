package runner

import (
	"context"

	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/ports"
)

// IOHandler defines the strategy for interacting with the players.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents the session after a submission was applied.
	Output(ctx context.Context, frame Frame) error

	// Input reads the next submission. The prompt lists who is expected to
	// act; handlers default to its first player.
	Input(ctx context.Context, prompt Prompt) (Submission, error)

	// SystemOutput presents a meta-message (errors, status) distinct from
	// game content.
	SystemOutput(ctx context.Context, msg string) error
}

// Submission is one line of player input.
type Submission struct {
	PlayerID string `json:"playerId"`
	Action   string `json:"action"`
}

// ActionInfo describes an action a player may submit.
type ActionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PlayerPrompt is one player expected to act.
type PlayerPrompt struct {
	PlayerID string       `json:"playerId"`
	Alias    string       `json:"alias,omitempty"`
	Actions  []ActionInfo `json:"actions"`
}

// Prompt lists the players whose input the session is waiting for.
type Prompt struct {
	Phase   string         `json:"phase"`
	Players []PlayerPrompt `json:"players"`
}

// Default returns the player input goes to when it names nobody.
func (p Prompt) Default() string {
	if len(p.Players) == 0 {
		return ""
	}
	return p.Players[0].PlayerID
}

// Frame is what a handler shows after each step.
type Frame struct {
	Snapshot *domain.Snapshot `json:"snapshot"`
	Messages []ports.Message  `json:"messages,omitempty"`
	Fault    *domain.Fault    `json:"fault,omitempty"`
	Fired    []string         `json:"fired,omitempty"`
	Prompt   *Prompt          `json:"prompt,omitempty"`
}

// NewPrompt builds the prompt for an active session: every player with
// actionRequired set, with the actions of the current phase.
func NewPrompt(c *artifact.Compiled, snap *domain.Snapshot) Prompt {
	p := Prompt{}
	if snap.State == nil {
		return p
	}
	p.Phase = snap.State.Phase()

	var actions []ActionInfo
	for _, a := range c.Actions(p.Phase) {
		actions = append(actions, ActionInfo{Name: a.Name(), Description: a.Def.Description})
	}
	for _, id := range snap.State.Actionable() {
		alias, _ := snap.AliasOf(id)
		p.Players = append(p.Players, PlayerPrompt{PlayerID: id, Alias: alias, Actions: actions})
	}
	return p
}

// NewFrame wraps an outcome for display.
func NewFrame(c *artifact.Compiled, out *ports.Outcome) Frame {
	f := Frame{
		Snapshot: out.Snapshot,
		Messages: out.Messages,
		Fault:    out.Fault,
		Fired:    out.Fired,
	}
	if out.Snapshot != nil && out.Snapshot.Status == domain.StatusActive {
		p := NewPrompt(c, out.Snapshot)
		f.Prompt = &p
	}
	return f
}
