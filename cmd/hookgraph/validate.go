package main

import (
	"fmt"

	"github.com/meikuraledutech/hookgraph"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <definition.json>",
	Short: "Check a graph definition for consistency",
	Long: `Checks node ids and edge references, cycles, node type instance caps and
input connection caps. With --deployable the trigger configuration is checked too.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deployable, _ := cmd.Flags().GetBool("deployable")
		if err := runValidate(cmd, args[0], deployable); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Graph is valid.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("deployable", false, "Also require a fully configured trigger")
}

func runValidate(cmd *cobra.Command, path string, deployable bool) error {
	def, err := readDefinition(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cmd, nil)
	if err != nil {
		return err
	}

	if err := def.Validate(); err != nil {
		return err
	}
	if err := hookgraph.ValidateAcyclic(def); err != nil {
		return err
	}
	if err := hookgraph.CheckConstraints(reg, def); err != nil {
		return err
	}
	if deployable {
		return hookgraph.CheckDeployable(def)
	}
	return nil
}
