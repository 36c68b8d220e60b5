package balance

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zkgm/chains"
	"zkgm/client"
	"zkgm/retry"
	"zkgm/ucs03"
)

type fakeFetcher struct {
	mu       sync.Mutex
	balances map[string]*big.Int
	failures map[string]int
	err      error
	calls    map[string]int
}

func (f *fakeFetcher) Balance(_ context.Context, _ string, token []byte) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	key := string(token)
	f.calls[key]++
	if f.failures[key] > 0 {
		f.failures[key]--
		return nil, f.err
	}
	if b, ok := f.balances[key]; ok {
		return b, nil
	}
	return new(big.Int), nil
}

var (
	usdc = []byte{0xaa}
	weth = []byte{0xbb}
)

func fast() Option {
	return WithPolicy(retry.Fixed(time.Millisecond, 4))
}

func TestBalanceRetries(t *testing.T) {
	f := &fakeFetcher{
		balances: map[string]*big.Int{string(usdc): big.NewInt(7)},
		failures: map[string]int{string(usdc): 2},
		err:      errors.New("i/o timeout"),
	}
	got, err := NewChecker(f, fast()).Balance(context.Background(), "0x01", usdc)
	require.NoError(t, err)
	require.Equal(t, int64(7), got.Int64())
	require.Equal(t, 3, f.calls[string(usdc)])
}

func TestBalanceExhausted(t *testing.T) {
	f := &fakeFetcher{failures: map[string]int{string(usdc): 10}, err: errors.New("i/o timeout")}
	_, err := NewChecker(f, fast()).Balance(context.Background(), "0x01", usdc)
	require.ErrorIs(t, err, ErrBalanceQuery)
	require.Equal(t, 4, f.calls[string(usdc)])
}

func TestEVMCheckerSkipsPermanentErrors(t *testing.T) {
	f := &fakeFetcher{failures: map[string]int{string(usdc): 10}, err: errors.New("execution reverted")}
	c := NewEVMChecker(f)
	require.Equal(t, retry.EVMBalanceCheck, c.policy)

	_, err := c.Balance(context.Background(), "0x01", usdc)
	require.ErrorIs(t, err, ErrBalanceQuery)
	require.Equal(t, 1, f.calls[string(usdc)])
}

func TestCheckAll(t *testing.T) {
	f := &fakeFetcher{balances: map[string]*big.Int{
		string(usdc): big.NewInt(1),
		string(weth): big.NewInt(2),
	}}
	results, err := NewChecker(f, fast()).CheckAll(context.Background(), "0x01", [][]byte{weth, usdc, nil})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, weth, results[0].Token)
	require.Equal(t, int64(2), results[0].Amount.Int64())
	require.Equal(t, int64(1), results[1].Amount.Int64())
	require.Equal(t, int64(0), results[2].Amount.Int64())
}

func TestEnsureFunds(t *testing.T) {
	evm := chains.Chain{UniversalChainID: "ethereum.1", Family: chains.FamilyEVM}
	req := &client.Request{
		Source: chains.Context{Chain: evm, Sender: "0x01"},
		Packet: ucs03.Packet{Instruction: ucs03.Batch{Instructions: []ucs03.Instruction{
			ucs03.TokenOrder{BaseToken: usdc, BaseAmount: big.NewInt(5)},
			ucs03.TokenOrder{BaseToken: usdc, BaseAmount: big.NewInt(5)},
			ucs03.TokenOrder{BaseToken: weth, BaseAmount: big.NewInt(1)},
		}}},
	}

	f := &fakeFetcher{balances: map[string]*big.Int{
		string(usdc): big.NewInt(10),
		string(weth): big.NewInt(1),
	}}
	require.NoError(t, NewChecker(f, fast()).EnsureFunds(context.Background(), req))

	f.balances[string(usdc)] = big.NewInt(9)
	err := NewChecker(f, fast()).EnsureFunds(context.Background(), req)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	var short *InsufficientFundsError
	require.ErrorAs(t, err, &short)
	require.Equal(t, usdc, short.Token)
	require.Equal(t, int64(10), short.Want.Int64())
}
