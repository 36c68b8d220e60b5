package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zkgm/chains"
	"zkgm/salt"
)

var saltCmd = &cobra.Command{
	Use:   "salt",
	Short: "Generate or verify packet salts",
}

var saltGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Print a fresh checksummed salt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		family, err := chains.ParseFamily(saltFamily)
		if err != nil {
			return err
		}
		sl, err := salt.Generate(family)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sl)
		return nil
	},
}

var saltVerifyCmd = &cobra.Command{
	Use:   "verify <hex>",
	Short: "Check a salt's embedded checksum",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := salt.Parse(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(saltCmd)
	saltCmd.AddCommand(saltGenerateCmd, saltVerifyCmd)
	saltGenerateCmd.Flags().StringVar(&saltFamily, "family", string(chains.FamilyEVM), "chain family (evm, cosmos, aptos, sui, svm)")
}
