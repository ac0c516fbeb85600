package main

import (
	"github.com/aretw0/interop/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var captureCmd = &cobra.Command{
	Use:   "capture <spec>",
	Short: "Deploy the wrappers and check live traffic",
	Long: `Deploys a wrapper for every interface of the specification and evaluates the
observed traffic until the pattern reaches a terminal state or Ctrl+C is
pressed. The trace is then stored (after confirmation, or directly with --yes)
and the report is printed. Exits with status 1 when the exchange does not
conform.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		noStore, _ := cmd.Flags().GetBool("no-store")
		quiet, _ := cmd.Flags().GetBool("quiet")

		return cli.RunCapture(cli.CaptureOptions{
			SpecPath:     args[0],
			Store:        storeOptions(),
			Yes:          yes,
			NoStore:      noStore,
			StatusAddr:   viper.GetString("status-addr"),
			Format:       viper.GetString("format"),
			ReplyTimeout: viper.GetDuration("reply-timeout"),
			Debug:        viper.GetBool("debug"),
			Quiet:        quiet,
		})
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	flags := captureCmd.Flags()
	flags.BoolP("yes", "y", false, "Store the trace without asking")
	flags.Bool("no-store", false, "Do not record a trace")
	flags.BoolP("quiet", "q", false, "Only print the report")
	flags.String("status-addr", "", "Serve /health, /status, /events and /metrics on this address (e.g. 127.0.0.1:9090)")
	flags.StringP("format", "f", "text", "Report format: text, markdown, json or yaml")
	flags.Duration("reply-timeout", 0, "How long stub interfaces wait for the pattern to reply (default 5s)")

	for _, name := range []string{"status-addr", "format", "reply-timeout"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}
