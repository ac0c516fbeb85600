package main

import (
	"github.com/aretw0/interop/internal/cli"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <spec>",
	Short: "Export the pattern as a Mermaid diagram",
	Long: `Outputs a Mermaid diagram (graph TD) of the pattern state machine. With
--report, the path and final state of a JSON report are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reportPath, _ := cmd.Flags().GetString("report")
		return cli.RunGraph(cli.GraphOptions{SpecPath: args[0], ReportPath: reportPath}, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("report", "", "JSON report to overlay")
}
