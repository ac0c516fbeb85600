package main

import (
	"github.com/aretw0/interop/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <spec>",
	Short: "Check a specification document",
	Long: `Validates the document schema, the architecture and the pattern structure,
then warns about unreachable states, dead ends and shadowed transitions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunValidate(args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
