package chainsui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"

	"zkgm/chains"
	"zkgm/client"
	"zkgm/primitives"
	"zkgm/retry"
)

// MoveCall is a programmable transaction with a single move call.
type MoveCall struct {
	Package       string   `json:"package"`
	Module        string   `json:"module"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// Executor builds, signs and executes move calls for an account and
// returns the transaction digest.
type Executor interface {
	ExecuteMoveCall(ctx context.Context, sender string, call MoveCall) (string, error)
}

// Objects - shared objects the zkgm module takes by reference
type Objects struct {
	IBCStore   string `mapstructure:"ibc_store"`
	RelayStore string `mapstructure:"relay_store"`
	Vault      string `mapstructure:"vault"`
}

// Config - object-model backend settings
type Config struct {
	Chain   chains.Chain
	Objects Objects
	// ChainIdentifier is the 4 byte genesis digest prefix sui_getChainIdentifier
	// returns; checked before submitting when set.
	ChainIdentifier     string
	ReceiptPollInterval time.Duration
	Logger              log.FieldLogger
}

// SuiChain - submission backend for object-model chains
type SuiChain struct {
	executor Executor
	rpc      *rpc.Client
	chain    chains.Chain
	objects  Objects
	chainIdn string
	poll     time.Duration
	logger   log.FieldLogger
}

var _ client.Backend = (*SuiChain)(nil)

// NewSuiChain - the chain's UCS03Address is the zkgm package id. rpcClient
// serves reads.
func NewSuiChain(config Config, executor Executor, rpcClient *rpc.Client) (*SuiChain, error) {
	if config.Chain.Family != chains.FamilySui {
		return nil, fmt.Errorf("chain %s is not a sui chain", config.Chain.UniversalChainID)
	}
	for name, id := range map[string]string{
		"package":     config.Chain.UCS03Address,
		"ibc store":   config.Objects.IBCStore,
		"relay store": config.Objects.RelayStore,
		"vault":       config.Objects.Vault,
	} {
		if _, err := primitives.AddressBytes(chains.FamilySui, id); err != nil {
			return nil, fmt.Errorf("chain %s: invalid %s id: %w", config.Chain.UniversalChainID, name, err)
		}
	}
	if config.ReceiptPollInterval <= 0 {
		config.ReceiptPollInterval = time.Second
	}
	if config.Logger == nil {
		config.Logger = log.StandardLogger()
	}
	return &SuiChain{
		executor: executor,
		rpc:      rpcClient,
		chain:    config.Chain,
		objects:  config.Objects,
		chainIdn: config.ChainIdentifier,
		poll:     config.ReceiptPollInterval,
		logger:   config.Logger.WithField("chain", config.Chain.UniversalChainID),
	}, nil
}

// Dial connects the read client to config.Chain.RPCURL.
func Dial(ctx context.Context, config Config, executor Executor) (*SuiChain, error) {
	c, err := rpc.DialContext(ctx, config.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", config.Chain.RPCURL, err)
	}
	return NewSuiChain(config, executor, c)
}

// Family implements client.Backend.
func (s *SuiChain) Family() chains.Family {
	return chains.FamilySui
}

// SendCall builds zkgm::send over the shared objects.
func (s *SuiChain) SendCall(req *client.Request, payload client.Payload) MoveCall {
	return MoveCall{
		Package:       s.chain.UCS03Address,
		Module:        "zkgm",
		Function:      "send",
		TypeArguments: []string{},
		Arguments: []any{
			s.objects.IBCStore,
			s.objects.RelayStore,
			s.objects.Vault,
			req.Channel.SourceChannelID,
			"0",
			strconv.FormatUint(req.TimeoutTimestamp, 10),
			hexutil.Encode(payload.Salt[:]),
			payload.Instruction.Version,
			payload.Instruction.Opcode,
			hexutil.Encode(payload.Instruction.Operand),
		},
	}
}

// Submit - execute the move call
func (s *SuiChain) Submit(ctx context.Context, req *client.Request, payload client.Payload) (client.Submission, error) {
	if req.Source.IsMultisig() {
		return client.Submission{}, fmt.Errorf("%w: multisig sources are not supported on sui", client.ErrInvalidRequest)
	}
	if _, err := primitives.AddressBytes(chains.FamilySui, req.Source.Sender); err != nil {
		return client.Submission{}, fmt.Errorf("%w: sender: %v", client.ErrInvalidRequest, err)
	}
	if s.chainIdn != "" {
		var got string
		if err := s.rpc.CallContext(ctx, &got, "sui_getChainIdentifier"); err != nil {
			return client.Submission{}, client.TransportError(err)
		}
		if got != s.chainIdn {
			return client.Submission{}, client.SwitchChainError(s.chainIdn, got)
		}
	}

	digest, err := s.executor.ExecuteMoveCall(ctx, req.Source.Sender, s.SendCall(req, payload))
	if err != nil {
		return client.Submission{}, client.TransportError(err)
	}
	s.logger.WithField("tx_hash", digest).Info("move call executed")
	return client.Submission{TxHash: digest}, nil
}

type gasCost struct {
	ComputationCost string `json:"computationCost"`
	StorageCost     string `json:"storageCost"`
	StorageRebate   string `json:"storageRebate"`
}

// TransactionBlock is the subset of sui_getTransactionBlock used here.
type TransactionBlock struct {
	Digest     string `json:"digest"`
	Checkpoint string `json:"checkpoint"`
	Effects    *struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"status"`
		GasUsed gasCost `json:"gasUsed"`
	} `json:"effects"`
}

var errNotCheckpointed = errors.New("transaction not checkpointed yet")

// AwaitReceipt - poll until the transaction is in a checkpoint
func (s *SuiChain) AwaitReceipt(ctx context.Context, digest string) (client.Receipt, error) {
	var block TransactionBlock
	err := retry.Do(ctx, retry.Fixed(s.poll, 0), func(ctx context.Context) error {
		var b TransactionBlock
		if err := s.rpc.CallContext(ctx, &b, "sui_getTransactionBlock", digest, map[string]bool{"showEffects": true}); err != nil {
			return err
		}
		if b.Effects == nil || b.Checkpoint == "" {
			return errNotCheckpointed
		}
		block = b
		return nil
	}, retry.Notify(func(err error, attempt int, _ time.Duration) {
		s.logger.WithError(err).WithFields(log.Fields{"tx_hash": digest, "attempt": attempt}).Debug("transaction block not ready")
	}))
	if err != nil {
		return client.Receipt{}, fmt.Errorf("waiting for %s: %w", digest, err)
	}

	checkpoint, _ := strconv.ParseUint(block.Checkpoint, 10, 64)
	rcpt := client.Receipt{
		TxHash:  block.Digest,
		Height:  checkpoint,
		GasUsed: block.Effects.GasUsed.total(),
		Success: block.Effects.Status.Status == "success",
	}
	if !rcpt.Success {
		rcpt.Reason = block.Effects.Status.Error
	}
	return rcpt, nil
}

// total is computation + storage - rebate, floored at zero.
func (g gasCost) total() uint64 {
	computation, _ := strconv.ParseUint(g.ComputationCost, 10, 64)
	storage, _ := strconv.ParseUint(g.StorageCost, 10, 64)
	rebate, _ := strconv.ParseUint(g.StorageRebate, 10, 64)
	if rebate > computation+storage {
		return 0
	}
	return computation + storage - rebate
}
