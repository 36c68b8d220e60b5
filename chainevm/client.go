package chainevm

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"

	"zkgm/chains"
)

// RPC is the part of ethclient.Client the backend needs.
type RPC interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ RPC = (*ethclient.Client)(nil)

// EVMChain - submission backend for EVM chains
type EVMChain struct {
	rpc      RPC
	signer   Signer
	proposer SafeProposer
	chain    chains.Chain
	chainID  *big.Int
	ucs03    common.Address
	gasLimit uint64
	poll     time.Duration
	logger   log.FieldLogger
}

// Config - EVM backend settings
type Config struct {
	Chain chains.Chain
	// GasLimit overrides estimation when non-zero.
	GasLimit uint64
	// ReceiptPollInterval defaults to 2s.
	ReceiptPollInterval time.Duration
	Logger              log.FieldLogger
}

// Option adjusts an EVMChain.
type Option func(*EVMChain)

// WithSafeProposer enables multisig sources.
func WithSafeProposer(p SafeProposer) Option {
	return func(e *EVMChain) { e.proposer = p }
}

// NewEVMChain - Initialize an EVM backend over rpc. signer may be nil for
// read-only use (status, balances).
func NewEVMChain(config Config, rpc RPC, signer Signer, opts ...Option) (*EVMChain, error) {
	if config.Chain.Family != chains.FamilyEVM {
		return nil, fmt.Errorf("chain %s is not an evm chain", config.Chain.UniversalChainID)
	}
	id, err := strconv.ParseInt(config.Chain.UniversalChainID.ChainID(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("chain %s: evm chain id must be numeric", config.Chain.UniversalChainID)
	}
	if !common.IsHexAddress(config.Chain.UCS03Address) {
		return nil, fmt.Errorf("chain %s: invalid ucs03 address %q", config.Chain.UniversalChainID, config.Chain.UCS03Address)
	}
	if config.ReceiptPollInterval <= 0 {
		config.ReceiptPollInterval = 2 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.StandardLogger()
	}
	e := &EVMChain{
		rpc:      rpc,
		signer:   signer,
		chain:    config.Chain,
		chainID:  big.NewInt(id),
		ucs03:    common.HexToAddress(config.Chain.UCS03Address),
		gasLimit: config.GasLimit,
		poll:     config.ReceiptPollInterval,
		logger:   config.Logger.WithField("chain", config.Chain.UniversalChainID),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Dial connects to config.Chain.RPCURL.
func Dial(ctx context.Context, config Config, signer Signer, opts ...Option) (*EVMChain, error) {
	client, err := ethclient.DialContext(ctx, config.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", config.Chain.RPCURL, err)
	}
	return NewEVMChain(config, client, signer, opts...)
}

// Family implements client.Backend.
func (e *EVMChain) Family() chains.Family {
	return chains.FamilyEVM
}

// GetExplorerURL - Generate explorer URL
func (e *EVMChain) GetExplorerURL(txHash string) string {
	return e.chain.ExplorerURL(txHash)
}

// HealthCheck - Check the RPC answers with the configured chain id
func (e *EVMChain) HealthCheck(ctx context.Context) error {
	id, err := e.rpc.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("%s health check failed: %w", e.chain.UniversalChainID, err)
	}
	if id.Cmp(e.chainID) != 0 {
		return fmt.Errorf("%s health check failed: rpc reports chain %s", e.chain.UniversalChainID, id)
	}
	return nil
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
