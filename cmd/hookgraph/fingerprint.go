package main

import (
	"encoding/json"
	"fmt"

	"github.com/meikuraledutech/hookgraph"
	"github.com/spf13/cobra"
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <definition.json>",
	Short: "Print the deploy fingerprint of a graph definition",
	Long: `Prints the identity of the configured Contract Event trigger, or "null"
when no trigger is fully configured. With --outputs the fields the trigger
emits are listed as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := readDefinition(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		fp := hookgraph.Fingerprint(def)
		if fp == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "null")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), fp)

		if outputs, _ := cmd.Flags().GetBool("outputs"); outputs {
			_, cfg, _ := hookgraph.ConfiguredTrigger(def)
			fields, _ := hookgraph.FlattenEventInputs(cfg.EventABI.Inputs)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(fields)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)
	fingerprintCmd.Flags().Bool("outputs", false, "Also print the trigger's output fields")
}
