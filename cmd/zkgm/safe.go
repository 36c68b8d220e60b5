package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zkgm/safe"
)

var safeURL string

var safeCmd = &cobra.Command{
	Use:   "safe",
	Short: "Multisig proposal helpers",
}

var safeResolveCmd = &cobra.Command{
	Use:   "resolve <hash>",
	Short: "Print the transaction hash a multisig proposal executed as",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base := safeURL
		if base == "" {
			base = cfg.Safe.URL
		}
		r, err := safe.NewResolver(base, safe.WithLogger(logger))
		if err != nil {
			return err
		}
		hash, ok := r.Resolve(cmd.Context(), args[0])
		if !ok {
			return fmt.Errorf("proposal %s has not been executed", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(safeCmd)
	safeCmd.AddCommand(safeResolveCmd)
	safeResolveCmd.Flags().StringVar(&safeURL, "url", "", "transaction service url (default safe.url)")
}
