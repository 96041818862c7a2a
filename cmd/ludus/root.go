package main

import (
	"fmt"
	"os"

	"github.com/aretw0/ludus/internal/cli"
	"github.com/aretw0/ludus/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ludus",
	Short: "Ludus runs multi-player games generated as artifact sets",
	Long: `Ludus validates game artifact sets (state schema, transition graph and
instructions), then runs sessions against them: from the terminal, over HTTP
or as MCP tools for agents.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file (default ./ludus.yaml when present)")
	flags.String("artifacts", "", "Artifact directory (overrides artifacts.path)")
	flags.String("store", "", "Session store backend: memory, file, redis or sqlite")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.Bool("debug", false, "Shorthand for --log-level debug")
}

// loadApp resolves configuration from file, env and flags, then opens the
// engine. Callers must Close the returned app.
func loadApp(cmd *cobra.Command) (*cli.App, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if dir, _ := cmd.Flags().GetString("artifacts"); dir != "" {
		cfg.Artifacts.Path = dir
	}
	if backend, _ := cmd.Flags().GetString("store"); backend != "" {
		cfg.Store.Backend = backend
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := cli.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	return cli.Open(cfg, logger)
}
