package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"zkgm/api"
	"zkgm/balance"
	"zkgm/chainevm"
	"zkgm/chains"
	"zkgm/chainsol"
)

var statusCmd = &cobra.Command{
	Use:   "status <chain> <hash>",
	Short: "Look up a transaction on a configured chain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chain, err := configuredChain(args[0])
		if err != nil {
			return err
		}
		svc, err := dialServices(cmd.Context(), chain)
		if err != nil {
			return err
		}
		if svc.status == nil {
			return fmt.Errorf("status lookups are not supported for %s chains", chain.Family)
		}
		res, err := svc.status(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

func configuredChain(id string) (chains.Chain, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return chains.Chain{}, err
	}
	chain, ok := reg.Get(chains.UniversalChainID(id))
	if !ok {
		return chains.Chain{}, fmt.Errorf("unknown chain %s", id)
	}
	return chain, nil
}

// chainServices are the read-only lookups available for one chain. Either
// may be nil when the family has no such lookup.
type chainServices struct {
	status   api.StatusFunc
	balances *balance.Checker
}

// dialServices connects a read-only backend for chain.
func dialServices(ctx context.Context, chain chains.Chain) (chainServices, error) {
	switch chain.Family {
	case chains.FamilyEVM:
		b, err := chainevm.Dial(ctx, chainevm.Config{Chain: chain, Logger: logger}, nil)
		if err != nil {
			return chainServices{}, err
		}
		if err := b.HealthCheck(ctx); err != nil {
			return chainServices{}, err
		}
		return chainServices{
			status: func(ctx context.Context, hash string) (any, error) {
				return b.TransactionStatus(ctx, hash)
			},
			balances: balance.NewEVMChecker(b, balance.WithLogger(logger)),
		}, nil
	case chains.FamilySVM:
		b, err := chainsol.Dial(chainsol.Config{Chain: chain, Logger: logger}, nil)
		if err != nil {
			return chainServices{}, err
		}
		if err := b.HealthCheck(ctx); err != nil {
			return chainServices{}, err
		}
		return chainServices{
			status: func(ctx context.Context, hash string) (any, error) {
				return b.TransactionStatus(ctx, hash)
			},
		}, nil
	}
	return chainServices{}, nil
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
