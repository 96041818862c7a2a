package testutils

import (
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/dsl"
)

func v(path string) map[string]any { return map[string]any{"var": path} }

func rule(op string, args ...any) map[string]any { return map[string]any{op: args} }

func pre(label string, logic any) domain.Precondition {
	return domain.Precondition{Logic: logic, Explain: label}
}

func meta(phase string, input bool) domain.PhaseMetadata {
	return domain.PhaseMetadata{Phase: phase, RequiresPlayerInput: input}
}

func set(path string, value any) domain.DeltaOp {
	return domain.DeltaOp{Op: domain.OpSet, Path: path, Value: value}
}

func incr(path string, amount any) domain.DeltaOp {
	return domain.DeltaOp{Op: domain.OpIncrement, Path: path, Amount: amount}
}

func forAll(field string, value any) domain.DeltaOp {
	return domain.DeltaOp{Op: domain.OpSetForAllPlayers, Field: field, Value: value}
}

func auto(id string, ops ...domain.DeltaOp) domain.AutomaticTransitionInstruction {
	return domain.AutomaticTransitionInstruction{ID: id, TransitionName: id, StateDelta: ops}
}

// DuelGame is a two-player game of rounds. Each round both players submit a
// choice between 1 and 3; the higher choice scores. After rounds rounds the
// leader is marked as winner, or nobody on a draw.
func DuelGame(rounds int) *domain.ArtifactSet {
	score := func(alias string) []domain.DeltaOp {
		return []domain.DeltaOp{
			incr("players.{{"+alias+"}}.score", 1),
			forAll("choice", 0),
			incr("game.round", 1),
		}
	}
	ended := func(ops ...domain.DeltaOp) []domain.DeltaOp {
		return append([]domain.DeltaOp{set("game.gameEnded", true)}, ops...)
	}
	over := rule(">", v("game.round"), v("game.maxRounds"))

	return &domain.ArtifactSet{
		GameID:  "duel",
		Version: "1",
		Schema: domain.StateSchema{
			Game: map[string]domain.FieldSpec{
				"round":     {Type: "int"},
				"maxRounds": {Type: "int"},
				"gameEnded": {Type: "bool"},
			},
			Player: map[string]domain.FieldSpec{
				"score":          {Type: "int"},
				"choice":         {Type: "int"},
				"actionRequired": {Type: "bool"},
				"isGameWinner":   {Type: "bool"},
			},
		},
		Graph: domain.TransitionGraphDef{
			Phases: []string{domain.PhaseInit, "choice", "resolve", "tally", domain.PhaseFinished},
			PhaseMetadata: []domain.PhaseMetadata{
				meta(domain.PhaseInit, false),
				meta("choice", true),
				meta("resolve", false),
				meta("tally", false),
				meta(domain.PhaseFinished, false),
			},
			Transitions: []domain.Transition{
				{ID: "start", FromPhase: domain.PhaseInit, ToPhase: "choice"},
				{ID: "all-chosen", FromPhase: "choice", ToPhase: "resolve", Preconditions: []domain.Precondition{
					pre("every player has chosen", rule("allPlayers", "actionRequired", "==", false)),
				}},
				{ID: "player1-takes-round", FromPhase: "resolve", ToPhase: "tally", Preconditions: []domain.Precondition{
					pre("player1 chose higher", rule(">", v("players.{{player1}}.choice"), v("players.{{player2}}.choice"))),
				}},
				{ID: "player2-takes-round", FromPhase: "resolve", ToPhase: "tally", Preconditions: []domain.Precondition{
					pre("player2 chose higher", rule(">", v("players.{{player2}}.choice"), v("players.{{player1}}.choice"))),
				}},
				{ID: "round-tied", FromPhase: "resolve", ToPhase: "tally", Preconditions: []domain.Precondition{
					pre("choices are equal", rule("==", v("players.{{player1}}.choice"), v("players.{{player2}}.choice"))),
				}},
				{ID: "next-round", FromPhase: "tally", ToPhase: "choice", Preconditions: []domain.Precondition{
					pre("rounds remain", rule("<=", v("game.round"), v("game.maxRounds"))),
				}},
				{ID: "player1-wins", FromPhase: "tally", ToPhase: domain.PhaseFinished, Preconditions: []domain.Precondition{
					pre("rounds are over", over),
					pre("player1 leads", rule(">", v("players.{{player1}}.score"), v("players.{{player2}}.score"))),
				}},
				{ID: "player2-wins", FromPhase: "tally", ToPhase: domain.PhaseFinished, Preconditions: []domain.Precondition{
					pre("rounds are over", over),
					pre("player2 leads", rule(">", v("players.{{player2}}.score"), v("players.{{player1}}.score"))),
				}},
				{ID: "draw", FromPhase: "tally", ToPhase: domain.PhaseFinished, Preconditions: []domain.Precondition{
					pre("rounds are over", over),
					pre("scores are level", rule("==", v("players.{{player1}}.score"), v("players.{{player2}}.score"))),
				}},
			},
		},
		Instructions: domain.Instructions{
			PlayerPhases: map[string]domain.PlayerPhase{
				"choice": {PlayerActions: []domain.PlayerActionInstruction{{
					ID:          "submit-choice",
					ActionName:  "submit-choice",
					Description: "Pick a number from 1 to 3",
					Validation: domain.ActionValidation{Checks: []domain.ValidationCheck{
						{
							ID:           "not-yet-chosen",
							Logic:        rule("==", v("players.{{playerId}}.actionRequired"), true),
							ErrorMessage: "you already chose this round",
						},
						{
							ID:           "in-range",
							Logic:        rule("<=", 1, v("action.choice"), 3),
							ErrorMessage: "choice must be between 1 and 3",
						},
					}},
					StateDelta: []domain.DeltaOp{
						set("players.{{playerId}}.choice", "{{choice}}"),
						set("players.{{playerId}}.actionRequired", false),
					},
					Messages: []domain.MessageTemplate{
						{To: "{{playerId}}", Template: "You chose {{.choice}}."},
					},
				}}},
			},
			Transitions: map[string]domain.AutomaticTransitionInstruction{
				"start": auto("start",
					set("game.round", 1),
					set("game.maxRounds", rounds),
					set("game.gameEnded", false),
					forAll("score", 0),
					forAll("choice", 0),
					forAll("actionRequired", true),
					forAll("isGameWinner", false),
				),
				"player1-takes-round": auto("player1-takes-round", score("player1")...),
				"player2-takes-round": auto("player2-takes-round", score("player2")...),
				"round-tied":          auto("round-tied", forAll("choice", 0), incr("game.round", 1)),
				"next-round": {
					ID:         "next-round",
					StateDelta: []domain.DeltaOp{forAll("actionRequired", true)},
					Messages:   []domain.MessageTemplate{{To: domain.MessageToAll, Template: "Round {{.game.round}} begins."}},
				},
				"player1-wins": auto("player1-wins", ended(set("players.{{player1}}.isGameWinner", true))...),
				"player2-wins": auto("player2-wins", ended(set("players.{{player2}}.isGameWinner", true))...),
				"draw":         auto("draw", ended()...),
			},
		},
	}
}

// SelfBlockingGame has a transition whose only writer of its guard field
// is the transition itself, so it can never fire.
func SelfBlockingGame() *domain.ArtifactSet {
	return &domain.ArtifactSet{
		GameID:  "self-blocking",
		Version: "1",
		Graph: domain.TransitionGraphDef{
			Phases: []string{domain.PhaseInit, "waiting", domain.PhaseFinished},
			PhaseMetadata: []domain.PhaseMetadata{
				meta(domain.PhaseInit, false),
				meta("waiting", false),
				meta(domain.PhaseFinished, false),
			},
			Transitions: []domain.Transition{
				{ID: "start", FromPhase: domain.PhaseInit, ToPhase: "waiting"},
				{ID: "arm", FromPhase: "waiting", ToPhase: domain.PhaseFinished, Preconditions: []domain.Precondition{
					pre("game is armed", rule("==", v("game.armed"), true)),
				}},
			},
		},
		Instructions: domain.Instructions{
			Transitions: map[string]domain.AutomaticTransitionInstruction{
				"start": auto("start", forAll("actionRequired", false), forAll("isGameWinner", false)),
				"arm": auto("arm",
					set("game.armed", true),
					set("game.gameEnded", true),
					set("players.{{player1}}.isGameWinner", true),
				),
			},
		},
	}
}

// DiceGame rolls a die at start and finishes high or low depending on the
// outcome.
func DiceGame() *domain.ArtifactSet {
	sixth := 1.0 / 6
	finish := func(id, alias string) domain.AutomaticTransitionInstruction {
		return auto(id, set("game.gameEnded", true), set("players.{{"+alias+"}}.isGameWinner", true))
	}
	return &domain.ArtifactSet{
		GameID:  "dice",
		Version: "1",
		Schema: domain.StateSchema{
			Game: map[string]domain.FieldSpec{"roll": {Type: "int"}, "gameEnded": {Type: "bool"}},
		},
		Graph: domain.TransitionGraphDef{
			Phases: []string{domain.PhaseInit, "rolled", domain.PhaseFinished},
			PhaseMetadata: []domain.PhaseMetadata{
				meta(domain.PhaseInit, false),
				meta("rolled", false),
				meta(domain.PhaseFinished, false),
			},
			Transitions: []domain.Transition{
				{ID: "roll", FromPhase: domain.PhaseInit, ToPhase: "rolled"},
				{ID: "high", FromPhase: "rolled", ToPhase: domain.PhaseFinished, Preconditions: []domain.Precondition{
					pre("roll is 4 or more", rule(">=", v("game.roll"), 4)),
				}},
				{ID: "low", FromPhase: "rolled", ToPhase: domain.PhaseFinished, Preconditions: []domain.Precondition{
					pre("roll is below 4", rule("<", v("game.roll"), 4)),
				}},
			},
		},
		Instructions: domain.Instructions{
			Transitions: map[string]domain.AutomaticTransitionInstruction{
				"roll": auto("roll",
					set("game.gameEnded", false),
					forAll("isGameWinner", false),
					forAll("actionRequired", false),
					domain.DeltaOp{
						Op:            domain.OpRNG,
						Path:          "game.roll",
						Choices:       []any{1, 2, 3, 4, 5, 6},
						Probabilities: []float64{sixth, sixth, sixth, sixth, sixth, sixth},
					},
				),
				"high": finish("high", "player1"),
				"low":  finish("low", "player2"),
			},
		},
	}
}

// OrphanGame is DuelGame with an extra phase no transition enters.
func OrphanGame() *domain.ArtifactSet {
	s := DuelGame(1)
	s.GameID = "orphan"
	s.Graph.Phases = append(s.Graph.Phases, "limbo")
	s.Graph.PhaseMetadata = append(s.Graph.PhaseMetadata, meta("limbo", false))
	s.Graph.Transitions = append(s.Graph.Transitions, domain.Transition{
		ID: "leave-limbo", FromPhase: "limbo", ToPhase: domain.PhaseFinished,
	})
	return s
}

// CounterGame has a single input phase where players bump a shared counter
// until it reaches limit. The "follow" action requires a prior bump, which
// makes submission order observable.
func CounterGame(limit int) *domain.ArtifactSet {
	b := dsl.New("counter", "1").
		GameField("count", "int").
		GameField("limit", "int").
		GameField("log", "array<string>")

	b.Phase(domain.PhaseInit).
		Go("start", "play").
		Do(
			dsl.Set("game.count", 0),
			dsl.Set("game.limit", limit),
			dsl.Set("game.log", []any{}),
			dsl.Set("game.gameEnded", false),
			dsl.ForAll("actionRequired", true),
			dsl.ForAll("isGameWinner", false),
		)

	play := b.Phase("play").Input()
	play.Action("bump").
		Do(dsl.Increment("game.count", 1), dsl.Append("game.log", "{{playerId}}:bump"))
	play.Action("follow").
		Check("after-bump", dsl.Rule(">=", dsl.Var("game.count"), 1), "nothing to follow yet").
		Do(dsl.Increment("game.count", 1), dsl.Append("game.log", "{{playerId}}:follow"))
	play.Go("limit-reached", domain.PhaseFinished).
		When("counter reached the limit", dsl.Rule(">=", dsl.Var("game.count"), dsl.Var("game.limit"))).
		Do(
			dsl.Set("game.gameEnded", true),
			dsl.ForAll("actionRequired", false),
			dsl.Set("players.{{player1}}.isGameWinner", true),
		)

	b.Phase(domain.PhaseFinished)

	set, err := b.Build()
	if err != nil {
		panic(err)
	}
	return set
}
