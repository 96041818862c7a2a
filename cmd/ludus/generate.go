package main

import (
	"os"

	"github.com/aretw0/ludus/internal/cli"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate <gameId> <version>",
	Short: "Generate an artifact set with external planner and executor programs",
	Long: `Runs the generation pipeline: the planner designs the phase graph, the
executor writes the instructions, and the validator checks both. Rejected
attempts are retried with the issues on stdin. The accepted set is published
to the artifact source, or printed with --dry-run.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.GenerateOptions{GameID: args[0], Version: args[1]}
		opts.Config, _ = cmd.Flags().GetString("generator")
		opts.Brief, _ = cmd.Flags().GetString("brief")
		opts.PlanAttempts, _ = cmd.Flags().GetInt("plan-attempts")
		opts.ExecuteAttempts, _ = cmd.Flags().GetInt("execute-attempts")
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")

		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.Generate(cmd.Context(), app, opts, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("generator", "g", "generator.yaml", "File naming the planner and executor programs")
	generateCmd.Flags().StringP("brief", "b", "", "Game description passed to the programs")
	generateCmd.Flags().Int("plan-attempts", 3, "Attempts allowed for the planning stage")
	generateCmd.Flags().Int("execute-attempts", 3, "Attempts allowed for the execution stage")
	generateCmd.Flags().Bool("dry-run", false, "Print the accepted set instead of publishing it")
}
