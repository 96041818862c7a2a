package main

import (
	"fmt"

	"github.com/aretw0/ludus"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ludus",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ludus version %s\n", ludus.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
