package chainevm

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Balance - native balance for NativeToken (or an empty token), ERC20
// balanceOf otherwise
func (e *EVMChain) Balance(ctx context.Context, account string, token []byte) (*big.Int, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("invalid account %q", account)
	}
	owner := common.HexToAddress(account)
	if len(token) == 0 || bytes.Equal(token, NativeToken.Bytes()) {
		return e.rpc.BalanceAt(ctx, owner, nil)
	}
	if len(token) != common.AddressLength {
		return nil, fmt.Errorf("invalid token address 0x%x", token)
	}
	contract := common.BytesToAddress(token)
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	out, err := e.rpc.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	vals, err := erc20ABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	return vals[0].(*big.Int), nil
}
