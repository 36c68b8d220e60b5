package chainsol

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"zkgm/client"
	"zkgm/retry"
)

// BuildTransaction - unsigned send transaction paid by the signer
func (s *SolChain) BuildTransaction(ctx context.Context, req *client.Request, payload client.Payload) (*solana.Transaction, error) {
	payer := s.signer.PublicKey()
	instruction, err := BuildSendInstruction(s.program, payer, req, payload)
	if err != nil {
		return nil, err
	}
	recent, err := s.rpc.GetLatestBlockhash(ctx, s.commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		recent.Value.Blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

// Submit - build, sign and send the send instruction
func (s *SolChain) Submit(ctx context.Context, req *client.Request, payload client.Payload) (client.Submission, error) {
	if req.Source.IsMultisig() {
		return client.Submission{}, fmt.Errorf("%w: multisig sources are not supported on svm chains", client.ErrInvalidRequest)
	}
	if len(s.signer) == 0 {
		return client.Submission{}, fmt.Errorf("%w: backend has no signer", client.ErrInvalidRequest)
	}
	sender, err := solana.PublicKeyFromBase58(req.Source.Sender)
	if err != nil {
		return client.Submission{}, fmt.Errorf("%w: sender: %v", client.ErrInvalidRequest, err)
	}
	if !sender.Equals(s.signer.PublicKey()) {
		return client.Submission{}, fmt.Errorf("%w: sender %s does not match signer %s", client.ErrInvalidRequest, sender, s.signer.PublicKey())
	}
	if !s.genesis.IsZero() {
		got, err := s.rpc.GetGenesisHash(ctx)
		if err != nil {
			return client.Submission{}, client.TransportError(err)
		}
		if !got.Equals(s.genesis) {
			return client.Submission{}, client.SwitchChainError(s.genesis.String(), got.String())
		}
	}

	tx, err := s.BuildTransaction(ctx, req, payload)
	if err != nil {
		return client.Submission{}, client.TransportError(err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if s.signer.PublicKey().Equals(key) {
			return &s.signer
		}
		return nil
	}); err != nil {
		return client.Submission{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	sig, err := s.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: s.commitment,
	})
	if err != nil {
		// simulation rejected it; nothing was broadcast
		if code, ok := CustomErrorCode(err); ok {
			return client.Submission{}, fmt.Errorf("%w: preflight: custom program error %d: %v", client.ErrInvalidRequest, code, err)
		}
		return client.Submission{}, client.TransportError(err)
	}
	s.logger.WithField("signature", sig.String()).Info("transaction sent")
	return client.Submission{TxHash: sig.String()}, nil
}

// AwaitReceipt - poll the signature status until it reaches the configured
// commitment
func (s *SolChain) AwaitReceipt(ctx context.Context, txHash string) (client.Receipt, error) {
	sig, err := solana.SignatureFromBase58(txHash)
	if err != nil {
		return client.Receipt{}, fmt.Errorf("invalid signature: %w", err)
	}
	var status *rpc.SignatureStatusesResult
	err = retry.Do(ctx, retry.Fixed(s.poll, 0), func(ctx context.Context) error {
		res, err := s.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			return err
		}
		if len(res.Value) == 0 || res.Value[0] == nil || !s.reached(res.Value[0].ConfirmationStatus) {
			return ErrNotConfirmed
		}
		status = res.Value[0]
		return nil
	})
	if err != nil {
		return client.Receipt{}, fmt.Errorf("waiting for %s: %w", txHash, err)
	}

	rcpt := client.Receipt{
		TxHash:  txHash,
		Height:  status.Slot,
		Success: status.Err == nil,
	}
	if status.Err != nil {
		rcpt.Reason = FailureReason(status.Err)
	}
	// fee is informational; a missing transaction body does not fail the receipt
	if tx, err := s.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: s.commitment,
	}); err == nil && tx != nil && tx.Meta != nil {
		rcpt.GasUsed = tx.Meta.Fee
	}
	return rcpt, nil
}

func (s *SolChain) reached(got rpc.ConfirmationStatusType) bool {
	switch got {
	case rpc.ConfirmationStatusFinalized:
		return true
	case rpc.ConfirmationStatusConfirmed:
		return s.commitment != rpc.CommitmentFinalized
	case rpc.ConfirmationStatusProcessed:
		return s.commitment == rpc.CommitmentProcessed
	}
	return false
}

// TransactionStatus - Check transaction status
func (s *SolChain) TransactionStatus(ctx context.Context, signature string) (*TransactionStatusResponse, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}
	response := &TransactionStatusResponse{
		Signature:   signature,
		ExplorerURL: s.GetExplorerURL(signature),
	}
	result, err := s.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && result == nil) {
		response.Status = StatusNotFound
		return response, nil
	}
	if err != nil {
		return nil, err
	}
	response.Status = StatusConfirmed
	if result.Meta != nil {
		if result.Meta.Err != nil {
			msg := FailureReason(result.Meta.Err)
			response.Status = StatusFailed
			response.Error = &msg
		}
		response.Fee = result.Meta.Fee
	}
	response.Slot = result.Slot
	if result.BlockTime != nil {
		blockTime := int64(*result.BlockTime)
		response.BlockTime = &blockTime
	}
	if current, err := s.rpc.GetSlot(ctx, rpc.CommitmentFinalized); err == nil && current >= result.Slot {
		response.Confirmations = current - result.Slot
	}
	return response, nil
}
