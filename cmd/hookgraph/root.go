package main

import (
	"fmt"
	"os"

	"github.com/meikuraledutech/hookgraph/internal/config"
	"github.com/meikuraledutech/hookgraph/registry"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hookgraph",
	Short: "hookgraph serves and inspects event-to-webhook pipeline graphs",
	Long: `hookgraph runs the graph backend (storage, compile, pause/resume, usage)
and offers offline checks for graph definitions.`,
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
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("registry", "", "Path to a node type catalog (defaults to the built-in one)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func loadRegistry(cmd *cobra.Command, cfg *config.Config) (*registry.Registry, error) {
	path, _ := cmd.Flags().GetString("registry")
	if path == "" && cfg != nil {
		path = cfg.Registry.Path
	}
	if path == "" {
		return registry.Default(), nil
	}
	return registry.Load(path)
}
