package main

import (
	"github.com/aretw0/interop/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var executeCmd = &cobra.Command{
	Use:   "execute <spec> <trace-id>",
	Short: "Replay a stored trace against a specification",
	Long: `Loads a trace from the store and runs it through the pattern of the
specification, as fast as possible, then prints the report. Emit actions are
not performed. Exits with status 1 when the trace does not conform.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, _ := cmd.Flags().GetStringToString("map")
		format, _ := cmd.Flags().GetString("format")

		return cli.RunExecute(cli.ExecuteOptions{
			SpecPath:     args[0],
			TraceID:      args[1],
			Store:        storeOptions(),
			InterfaceMap: ids,
			Format:       format,
			Debug:        viper.GetBool("debug"),
		})
	},
}

func init() {
	rootCmd.AddCommand(executeCmd)

	executeCmd.Flags().StringToString("map", nil, "Rename interface ids of the trace (old=new,...)")
	executeCmd.Flags().StringP("format", "f", "text", "Report format: text, markdown, json or yaml")
}
