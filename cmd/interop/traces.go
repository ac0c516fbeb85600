package main

import (
	"context"
	"fmt"

	"github.com/aretw0/interop/internal/cli"
	"github.com/spf13/cobra"
)

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "Manage stored traces",
}

var tracesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored trace ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opened, err := cli.OpenStore(storeOptions())
		if err != nil {
			return err
		}
		defer opened.Close()

		ids, err := opened.Store.List(context.Background())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var tracesDeleteCmd = &cobra.Command{
	Use:   "delete <trace-id>...",
	Short: "Delete stored traces",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opened, err := cli.OpenStore(storeOptions())
		if err != nil {
			return err
		}
		defer opened.Close()

		for _, id := range args {
			if err := opened.Store.Delete(context.Background(), id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", id, err)
			}
		}
		return nil
	},
}

func init() {
	tracesCmd.AddCommand(tracesListCmd, tracesDeleteCmd)
	rootCmd.AddCommand(tracesCmd)
}
