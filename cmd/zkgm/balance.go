package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zkgm/api"
	"zkgm/primitives"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <chain> <address> [token...]",
	Short: "Print token balances of an address, the native balance without tokens",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens := [][]byte{nil}
		if len(args) > 2 {
			tokens = make([][]byte, 0, len(args)-2)
			for _, t := range args[2:] {
				h, err := primitives.ParseHex(t)
				if err != nil {
					return err
				}
				tokens = append(tokens, h.Bytes())
			}
		}
		chain, err := configuredChain(args[0])
		if err != nil {
			return err
		}
		svc, err := dialServices(cmd.Context(), chain)
		if err != nil {
			return err
		}
		if svc.balances == nil {
			return fmt.Errorf("balance lookups are not supported for %s chains", chain.Family)
		}
		results, err := svc.balances.CheckAll(cmd.Context(), args[1], tokens)
		if err != nil {
			return err
		}
		out := make([]api.BalanceResponse, len(results))
		for i, r := range results {
			out[i] = api.BalanceResponse{Token: primitives.HexFromBytes(r.Token), Amount: r.Amount.String()}
		}
		return printJSON(cmd, out)
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
