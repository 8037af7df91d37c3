package main

import (
	"fmt"

	"github.com/meikuraledutech/hookgraph"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of hookgraph",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hookgraph version %s\n", hookgraph.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
