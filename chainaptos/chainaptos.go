package chainaptos

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	log "github.com/sirupsen/logrus"

	"zkgm/chains"
	"zkgm/client"
	"zkgm/primitives"
	"zkgm/retry"
)

// EntryFunction is an entry function payload in the node's JSON form.
type EntryFunction struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// Submitter signs and submits entry function transactions for an account.
type Submitter interface {
	SubmitEntryFunction(ctx context.Context, sender string, payload EntryFunction) (string, error)
}

// TxQuerier looks up transactions by hash.
type TxQuerier interface {
	ChainID(ctx context.Context) (uint8, error)
	TransactionByHash(ctx context.Context, hash string) (*Transaction, error)
}

// Config - Move backend settings
type Config struct {
	Chain chains.Chain
	// ChainID is the numeric aptos chain id, checked before submitting.
	ChainID             uint8
	ReceiptPollInterval time.Duration
	Logger              log.FieldLogger
}

// AptosChain - submission backend for Move chains with entry functions
type AptosChain struct {
	submitter Submitter
	node      TxQuerier
	chain     chains.Chain
	chainID   uint8
	module    string
	poll      time.Duration
	logger    log.FieldLogger
}

var _ client.Backend = (*AptosChain)(nil)

// NewAptosChain - the chain's UCS03Address is the module account.
func NewAptosChain(config Config, submitter Submitter, node TxQuerier) (*AptosChain, error) {
	if config.Chain.Family != chains.FamilyAptos {
		return nil, fmt.Errorf("chain %s is not a move chain", config.Chain.UniversalChainID)
	}
	if _, err := primitives.AddressBytes(chains.FamilyAptos, config.Chain.UCS03Address); err != nil {
		return nil, fmt.Errorf("chain %s: invalid ucs03 address: %w", config.Chain.UniversalChainID, err)
	}
	if config.ReceiptPollInterval <= 0 {
		config.ReceiptPollInterval = time.Second
	}
	if config.Logger == nil {
		config.Logger = log.StandardLogger()
	}
	return &AptosChain{
		submitter: submitter,
		node:      node,
		chain:     config.Chain,
		chainID:   config.ChainID,
		module:    config.Chain.UCS03Address + "::ibc_app",
		poll:      config.ReceiptPollInterval,
		logger:    config.Logger.WithField("chain", config.Chain.UniversalChainID),
	}, nil
}

// Family implements client.Backend.
func (a *AptosChain) Family() chains.Family {
	return chains.FamilyAptos
}

// SendPayload builds the ibc_app::send call. Version, opcode and operand
// are passed as separate arguments; u64 values are decimal strings.
func (a *AptosChain) SendPayload(req *client.Request, payload client.Payload) EntryFunction {
	return EntryFunction{
		Function:      a.module + "::send",
		TypeArguments: []string{},
		Arguments: []any{
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

// Submit - submit the entry function
func (a *AptosChain) Submit(ctx context.Context, req *client.Request, payload client.Payload) (client.Submission, error) {
	if req.Source.IsMultisig() {
		return client.Submission{}, fmt.Errorf("%w: multisig sources are not supported on move chains", client.ErrInvalidRequest)
	}
	if _, err := primitives.AddressBytes(chains.FamilyAptos, req.Source.Sender); err != nil {
		return client.Submission{}, fmt.Errorf("%w: sender: %v", client.ErrInvalidRequest, err)
	}
	if a.chainID != 0 {
		id, err := a.node.ChainID(ctx)
		if err != nil {
			return client.Submission{}, client.TransportError(err)
		}
		if id != a.chainID {
			return client.Submission{}, client.SwitchChainError(strconv.Itoa(int(a.chainID)), strconv.Itoa(int(id)))
		}
	}

	hash, err := a.submitter.SubmitEntryFunction(ctx, req.Source.Sender, a.SendPayload(req, payload))
	if err != nil {
		return client.Submission{}, client.TransportError(err)
	}
	a.logger.WithField("tx_hash", hash).Info("entry function submitted")
	return client.Submission{TxHash: hash}, nil
}

// AwaitReceipt - poll until the transaction is committed
func (a *AptosChain) AwaitReceipt(ctx context.Context, txHash string) (client.Receipt, error) {
	var tx *Transaction
	err := retry.Do(ctx, retry.Fixed(a.poll, 0), func(ctx context.Context) error {
		t, err := a.node.TransactionByHash(ctx, txHash)
		if err != nil {
			return err
		}
		if t.Type == "pending_transaction" {
			return ErrPending
		}
		tx = t
		return nil
	})
	if err != nil {
		return client.Receipt{}, fmt.Errorf("waiting for %s: %w", txHash, err)
	}
	gas, _ := strconv.ParseUint(tx.GasUsed, 10, 64)
	version, _ := strconv.ParseUint(tx.Version, 10, 64)
	rcpt := client.Receipt{
		TxHash:    tx.Hash,
		Height:    version,
		GasUsed:   gas,
		Success:   tx.Success,
		BlockHash: tx.StateChangeHash,
	}
	if !tx.Success {
		rcpt.Reason = tx.VMStatus
	}
	return rcpt, nil
}
