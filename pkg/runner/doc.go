/*
Package runner plays a session from a terminal or another program.

The Runner loads a session through a session.Manager, prompts for the next
submission, applies it and presents the outcome until the game ends. Several
players can share one terminal: a line starting with "@<player>" addresses
that player, any other line goes to the first player the game waits for.

# Key Components

  - Runner: the play loop, with signal handling.
  - IOHandler: decouples how frames are shown and submissions read.
  - TextHandler: markdown frames for interactive CLI usage.
  - JSONHandler: JSON Lines for scripted play.

# Usage

	r := runner.NewRunner(manager, "table-1",
		runner.WithPlayers("ann", "bob"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)
	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
