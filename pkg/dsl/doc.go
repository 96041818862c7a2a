/*
Package dsl provides a fluent Go builder for artifact sets.

It is the programmatic counterpart of the YAML contract: tests, examples
and bots that generate games can describe phases, transitions and player
actions with type-checked calls instead of documents.

Example usage:

	b := dsl.New("counter", "1")
	b.GameField("count", "int")

	b.Phase(domain.PhaseInit).
		Go("start", "play").
		Do(dsl.Set("game.count", 0), dsl.ForAll("actionRequired", true), dsl.ForAll("isGameWinner", false))

	play := b.Phase("play").Input()
	play.Action("bump").Do(dsl.Increment("game.count", 1))
	play.Go("done", domain.PhaseFinished).
		When("count reached 3", dsl.Rule(">=", dsl.Var("game.count"), 3)).
		Do(dsl.Set("game.gameEnded", true))

	b.Phase(domain.PhaseFinished)

	set, err := b.Build()
	// ... publish set through ludus.Engine.Publish
*/
package dsl
