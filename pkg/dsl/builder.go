package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/ludus/pkg/domain"
)

// Builder manages the artifact set construction.
type Builder struct {
	set    domain.ArtifactSet
	phases []*PhaseBuilder
	index  map[string]*PhaseBuilder
}

// New creates a builder for one game version.
func New(gameID, version string) *Builder {
	return &Builder{
		set:   domain.ArtifactSet{GameID: gameID, Version: version},
		index: make(map[string]*PhaseBuilder),
	}
}

// GameField declares a field of the game object in the state schema.
func (b *Builder) GameField(name, typ string) *Builder {
	if b.set.Schema.Game == nil {
		b.set.Schema.Game = make(map[string]domain.FieldSpec)
	}
	b.set.Schema.Game[name] = domain.FieldSpec{Type: typ}
	return b
}

// PlayerField declares a field of every player object in the state schema.
func (b *Builder) PlayerField(name, typ string) *Builder {
	if b.set.Schema.Player == nil {
		b.set.Schema.Player = make(map[string]domain.FieldSpec)
	}
	b.set.Schema.Player[name] = domain.FieldSpec{Type: typ}
	return b
}

// Phase declares a phase. Phases keep declaration order.
// If the phase already exists, it returns the existing builder.
func (b *Builder) Phase(id string) *PhaseBuilder {
	if pb, ok := b.index[id]; ok {
		return pb
	}
	pb := &PhaseBuilder{id: id}
	b.index[id] = pb
	b.phases = append(b.phases, pb)
	return pb
}

// Build assembles the artifact set. Only structural mistakes of the
// builder itself are reported here; the set still has to pass validation
// before it can be published.
func (b *Builder) Build() (*domain.ArtifactSet, error) {
	if b.set.GameID == "" || b.set.Version == "" {
		return nil, errors.New("game id and version are required")
	}

	set := b.set
	set.Graph = domain.TransitionGraphDef{}
	set.Instructions = domain.Instructions{}
	seen := make(map[string]string)

	for _, pb := range b.phases {
		set.Graph.Phases = append(set.Graph.Phases, pb.id)
		set.Graph.PhaseMetadata = append(set.Graph.PhaseMetadata, domain.PhaseMetadata{
			Phase:               pb.id,
			RequiresPlayerInput: pb.input,
		})

		for _, tb := range pb.transitions {
			if other, dup := seen[tb.def.ID]; dup {
				return nil, fmt.Errorf("transition %q declared in phases %s and %s", tb.def.ID, other, pb.id)
			}
			seen[tb.def.ID] = pb.id
			set.Graph.Transitions = append(set.Graph.Transitions, tb.def)
			if tb.program == nil {
				continue
			}
			if set.Instructions.Transitions == nil {
				set.Instructions.Transitions = make(map[string]domain.AutomaticTransitionInstruction)
			}
			set.Instructions.Transitions[tb.def.ID] = *tb.program
		}

		if len(pb.actions) == 0 {
			continue
		}
		if set.Instructions.PlayerPhases == nil {
			set.Instructions.PlayerPhases = make(map[string]domain.PlayerPhase)
		}
		actions := make([]domain.PlayerActionInstruction, len(pb.actions))
		for i, ab := range pb.actions {
			actions[i] = ab.def
		}
		set.Instructions.PlayerPhases[pb.id] = domain.PlayerPhase{PlayerActions: actions}
	}
	return &set, nil
}
