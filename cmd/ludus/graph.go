package main

import (
	"os"

	"github.com/aretw0/ludus/internal/cli"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <gameId> <version>",
	Short: "Export the transition graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the game's phases and transitions.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.Graph(cmd.Context(), app, domain.Key{GameID: args[0], Version: args[1]}, sessionID, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the current phase of this session")
}
