package chainevm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	log "github.com/sirupsen/logrus"

	"zkgm/client"
	"zkgm/retry"
)

var _ client.Backend = (*EVMChain)(nil)

// SendCallData packs the ucs03 send call for req.
func SendCallData(req *client.Request, payload client.Payload) ([]byte, error) {
	return ucs03ABI.Pack("send",
		req.Channel.SourceChannelID,
		uint64(0),
		req.TimeoutTimestamp,
		payload.Salt,
		payload.Instruction,
	)
}

// CallValue is the native amount the send call must carry.
func CallValue(req *client.Request) *big.Int {
	if v, ok := req.Funds()[string(NativeToken.Bytes())]; ok {
		return v
	}
	return new(big.Int)
}

// Submit - build, sign and broadcast the send call, or propose it when the
// source is a multisig
func (e *EVMChain) Submit(ctx context.Context, req *client.Request, payload client.Payload) (client.Submission, error) {
	id, err := e.rpc.ChainID(ctx)
	if err != nil {
		return client.Submission{}, client.TransportError(fmt.Errorf("failed to get chain id: %w", err))
	}
	if id.Cmp(e.chainID) != 0 {
		return client.Submission{}, client.SwitchChainError(e.chainID.String(), id.String())
	}

	data, err := SendCallData(req, payload)
	if err != nil {
		return client.Submission{}, client.EncodeError(err)
	}
	value := CallValue(req)
	logger := e.logger.WithFields(log.Fields{"sender": req.Source.Sender, "value": value})

	if req.Source.IsMultisig() {
		if e.proposer == nil {
			return client.Submission{}, fmt.Errorf("%w: multisig source without a safe proposer", client.ErrInvalidRequest)
		}
		if !common.IsHexAddress(req.Source.SafeAddress) {
			return client.Submission{}, fmt.Errorf("%w: invalid safe address %q", client.ErrInvalidRequest, req.Source.SafeAddress)
		}
		hash, err := e.proposer.Propose(ctx, SafeTx{
			Safe:  common.HexToAddress(req.Source.SafeAddress),
			To:    e.ucs03,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return client.Submission{}, client.TransportError(fmt.Errorf("failed to propose safe transaction: %w", err))
		}
		logger.WithField("safe_hash", hash).Info("safe transaction proposed")
		return client.Submission{SafeHash: hash}, nil
	}

	if e.signer == nil {
		return client.Submission{}, fmt.Errorf("%w: no signer configured", client.ErrInvalidRequest)
	}
	from := e.signer.Address()
	if !sameAddress(req.Source.Sender, from.Hex()) {
		return client.Submission{}, fmt.Errorf("%w: sender %s does not match signer %s", client.ErrInvalidRequest, req.Source.Sender, from.Hex())
	}

	tx, err := e.buildTx(ctx, from, value, data)
	if err != nil {
		return client.Submission{}, client.TransportError(err)
	}
	signed, err := e.signer.SignTx(tx, e.chainID)
	if err != nil {
		return client.Submission{}, client.TransportError(fmt.Errorf("failed to sign transaction: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := e.rpc.SendTransaction(ctx, signed); err != nil {
		return client.Submission{}, client.TransportError(fmt.Errorf("failed to send transaction: %w", err))
	}

	txHash := signed.Hash().Hex()
	logger.WithFields(log.Fields{"tx_hash": txHash, "nonce": signed.Nonce()}).Info("transaction sent")
	return client.Submission{TxHash: txHash}, nil
}

func (e *EVMChain) buildTx(ctx context.Context, from common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	nonce, err := e.rpc.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := e.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	gasLimit := e.gasLimit
	if gasLimit == 0 {
		to := e.ucs03
		gasLimit, err = e.rpc.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: data})
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", err)
		}
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &e.ucs03,
		Value:    value,
		Data:     data,
	}), nil
}

// AwaitReceipt - poll until the transaction is included
func (e *EVMChain) AwaitReceipt(ctx context.Context, txHash string) (client.Receipt, error) {
	hash := common.HexToHash(txHash)
	var receipt *types.Receipt
	err := retry.Do(ctx, retry.Fixed(e.poll, 0), func(ctx context.Context) error {
		r, err := e.rpc.TransactionReceipt(ctx, hash)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	}, retry.RetryIf(func(err error) bool {
		return errors.Is(err, ethereum.NotFound) || IsTransient(err)
	}), retry.Notify(func(err error, attempt int, _ time.Duration) {
		if !errors.Is(err, ethereum.NotFound) {
			e.logger.WithError(err).WithFields(log.Fields{"tx_hash": txHash, "attempt": attempt}).Warn("receipt query failed")
		}
	}))
	if err != nil {
		return client.Receipt{}, fmt.Errorf("waiting for receipt of %s: %w", txHash, err)
	}

	out := client.Receipt{
		TxHash:    txHash,
		BlockHash: receipt.BlockHash.Hex(),
		GasUsed:   receipt.GasUsed,
		Success:   receipt.Status == types.ReceiptStatusSuccessful,
	}
	if !out.Success {
		out.Reason = "transaction reverted"
	}
	return out, nil
}

// TransactionStatus - Check transaction status without waiting
func (e *EVMChain) TransactionStatus(ctx context.Context, txHash string) (*TransactionStatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	response := &TransactionStatusResponse{
		TxHash:      txHash,
		ExplorerURL: e.GetExplorerURL(txHash),
	}

	receipt, err := e.rpc.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		response.Status = StatusNotFound
		return response, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		response.Status = StatusConfirmed
	} else {
		response.Status = StatusFailed
		errMsg := "transaction reverted"
		response.Error = &errMsg
	}
	if receipt.BlockNumber != nil {
		response.BlockNumber = receipt.BlockNumber.Uint64()
	}
	response.BlockHash = receipt.BlockHash.Hex()
	response.GasUsed = receipt.GasUsed

	if current, err := e.rpc.BlockNumber(ctx); err == nil && current >= response.BlockNumber {
		response.Confirmations = current - response.BlockNumber
	}
	return response, nil
}
