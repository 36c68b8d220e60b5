package chainsol

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"

	"zkgm/chains"
	"zkgm/client"
)

// RPC is the part of rpc.Client the backend needs.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetTransaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetGenesisHash(ctx context.Context) (solana.Hash, error)
	GetHealth(ctx context.Context) (string, error)
}

var _ RPC = (*rpc.Client)(nil)

// SolChain - submission backend for SVM chains
type SolChain struct {
	rpc        RPC
	signer     solana.PrivateKey
	chain      chains.Chain
	program    solana.PublicKey
	genesis    solana.Hash
	commitment rpc.CommitmentType
	cluster    string // mainnet, devnet, testnet
	poll       time.Duration
	logger     log.FieldLogger
}

var _ client.Backend = (*SolChain)(nil)

// Config - SVM backend settings
type Config struct {
	Chain chains.Chain
	// Cluster selects the explorer cluster when the chain has no explorer
	// url. Defaults to mainnet.
	Cluster string
	// GenesisHash, when set, is compared with the node before submitting.
	GenesisHash string
	// Commitment used for blockhashes and receipts. Defaults to confirmed.
	Commitment          rpc.CommitmentType
	ReceiptPollInterval time.Duration
	Logger              log.FieldLogger
}

// NewSolChain - the chain's UCS03Address is the program id
func NewSolChain(config Config, rpcClient RPC, signer solana.PrivateKey) (*SolChain, error) {
	if config.Chain.Family != chains.FamilySVM {
		return nil, fmt.Errorf("chain %s is not an svm chain", config.Chain.UniversalChainID)
	}
	program, err := solana.PublicKeyFromBase58(config.Chain.UCS03Address)
	if err != nil {
		return nil, fmt.Errorf("chain %s: invalid program id: %w", config.Chain.UniversalChainID, err)
	}
	var genesis solana.Hash
	if config.GenesisHash != "" {
		genesis, err = solana.HashFromBase58(config.GenesisHash)
		if err != nil {
			return nil, fmt.Errorf("chain %s: invalid genesis hash: %w", config.Chain.UniversalChainID, err)
		}
	}
	if config.Cluster == "" {
		config.Cluster = "mainnet"
	}
	if config.Commitment == "" {
		config.Commitment = rpc.CommitmentConfirmed
	}
	if config.ReceiptPollInterval <= 0 {
		config.ReceiptPollInterval = time.Second
	}
	if config.Logger == nil {
		config.Logger = log.StandardLogger()
	}
	return &SolChain{
		rpc:        rpcClient,
		signer:     signer,
		chain:      config.Chain,
		program:    program,
		genesis:    genesis,
		commitment: config.Commitment,
		cluster:    config.Cluster,
		poll:       config.ReceiptPollInterval,
		logger:     config.Logger.WithField("chain", config.Chain.UniversalChainID),
	}, nil
}

// Dial - Initialize against the chain's RPC url
func Dial(config Config, signer solana.PrivateKey) (*SolChain, error) {
	if config.Chain.RPCURL == "" {
		return nil, fmt.Errorf("chain %s: rpc url required", config.Chain.UniversalChainID)
	}
	return NewSolChain(config, rpc.New(config.Chain.RPCURL), signer)
}

// Family implements client.Backend.
func (s *SolChain) Family() chains.Family {
	return chains.FamilySVM
}

// Program is the UCS03 program id.
func (s *SolChain) Program() solana.PublicKey {
	return s.program
}

// GetExplorerURL - Generate explorer URL
func (s *SolChain) GetExplorerURL(signature string) string {
	if u := s.chain.ExplorerURL(signature); u != "" {
		return u
	}
	baseURL := "https://explorer.solana.com/tx/"
	switch s.cluster {
	case "devnet", "testnet":
		return baseURL + signature + "?cluster=" + s.cluster
	default:
		return baseURL + signature
	}
}

// HealthCheck - node health
func (s *SolChain) HealthCheck(ctx context.Context) error {
	_, err := s.rpc.GetHealth(ctx)
	return err
}
