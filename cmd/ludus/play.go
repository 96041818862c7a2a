package main

import (
	"os"

	"github.com/aretw0/ludus/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var playCmd = &cobra.Command{
	Use:   "play [gameId version]",
	Short: "Play a session from the terminal",
	Long: `Creates or resumes a session and plays it in hot-seat mode. Lines starting
with "@<player>" act as that player; other lines go to the first player the
game is waiting for. Type "quit" to leave; the session stays saved.`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.PlayOptions{}
		if len(args) > 0 {
			opts.GameID = args[0]
		}
		if len(args) > 1 {
			opts.Version = args[1]
		}
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.Players, _ = cmd.Flags().GetStringSlice("players")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		if !cmd.Flags().Changed("headless") && !term.IsTerminal(int(os.Stdout.Fd())) {
			// Piped output gets plain markdown.
			opts.Headless = true
		}
		opts.Watch, _ = cmd.Flags().GetBool("watch")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		opts.Style, _ = cmd.Flags().GetString("style")
		opts.Bots, _ = cmd.Flags().GetString("bots")

		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.RunPlay(cmd.Context(), app, opts, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringP("session", "s", "", "Session id to create or resume (random when empty)")
	playCmd.Flags().StringSliceP("players", "p", nil, "Player ids for a new session, in seat order")
	playCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	playCmd.Flags().Bool("headless", false, "Plain markdown output, no banner (default when stdout is not a terminal)")
	playCmd.Flags().BoolP("watch", "w", false, "Reload artifacts when the source changes")
	playCmd.Flags().Bool("fresh", false, "Delete the session before playing")
	playCmd.Flags().String("style", "", "Glamour style (dark, light, notty); auto-detected when empty")
	playCmd.Flags().String("bots", "", "bots.yaml mapping players to programs that play for them")
}
