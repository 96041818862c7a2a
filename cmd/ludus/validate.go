package main

import (
	"os"

	"github.com/aretw0/ludus/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]...",
	Short: "Check artifact sets for consistency",
	Long: `Runs the static validator over the given artifact documents, or over every
set in the artifact source when no file is given. Exits non-zero on errors;
warnings are reported but do not fail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.Validate(cmd.Context(), app, args, os.Stdout)
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish <file>...",
	Short: "Validate and store artifact sets in the artifact source",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.Publish(cmd.Context(), app, args, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(publishCmd)
}
