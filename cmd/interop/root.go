package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/interop/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "interop",
	Short: "interop checks REST services against an interaction pattern",
	Long: `interop deploys wrappers in front of (or in place of) the services declared in a
specification, captures the traffic between them and checks it against the
pattern's state machine. Captured traces can be replayed offline.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, cli.ErrNotConformant) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default: ./interop.yaml if present)")
	flags.String("store", cli.DefaultStore, "Trace store: memory, file:<dir>, redis://host:port/db or sqlite:<path>")
	flags.String("encryption-key", "", "32 byte key (hex or base64) sealing stored event payloads")
	flags.StringSlice("fallback-keys", nil, "Previous encryption keys, for reading older traces")
	flags.StringSlice("mask", nil, "Header names and JSON keys masked before a trace is stored")
	flags.Bool("debug", false, "Log engine activity to stderr")

	for _, name := range []string{"store", "encryption-key", "fallback-keys", "mask", "debug"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

// initConfig reads the optional config file and INTEROP_* environment
// variables. Flags set on the command line win over both.
func initConfig() {
	viper.SetEnvPrefix("INTEROP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if path, _ := rootCmd.PersistentFlags().GetString("config"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("interop")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Warning: failed to read config:", err)
		}
	}
}

func storeOptions() cli.StoreOptions {
	return cli.StoreOptions{
		URI:           viper.GetString("store"),
		EncryptionKey: viper.GetString("encryption-key"),
		FallbackKeys:  viper.GetStringSlice("fallback-keys"),
		MaskKeys:      viper.GetStringSlice("mask"),
	}
}
