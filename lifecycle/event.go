package lifecycle

import (
	"errors"
	"fmt"
)

// Tag names an event variant.
type Tag string

const (
	TagDispatched                 Tag = "Dispatched"
	TagWaitForSafeWalletHash      Tag = "WaitForSafeWalletHash"
	TagTransactionReceiptComplete Tag = "TransactionReceiptComplete"
	TagIndexerPending             Tag = "IndexerPending"
	TagIndexed                    Tag = "Indexed"
	TagIndexTimeout               Tag = "IndexTimeout"
	TagFailed                     Tag = "Failed"
)

// Event is one milestone of a submission.
type Event interface {
	Tag() Tag
}

// Dispatched - the backend accepted the transaction (or proposal).
type Dispatched struct {
	TxHash string `json:"tx_hash"`
}

// WaitForSafeWalletHash - a multisig proposal exists; the real transaction
// hash is not known yet.
type WaitForSafeWalletHash struct {
	Hash string `json:"hash"`
}

// TransactionReceiptComplete - the chain included the transaction successfully.
type TransactionReceiptComplete struct {
	TxHash    string `json:"tx_hash"`
	BlockHash string `json:"block_hash"`
	GasUsed   uint64 `json:"gas_used"`
}

// IndexerPending - waiting for the indexer to associate a packet hash.
type IndexerPending struct {
	TxHash string `json:"tx_hash"`
}

// Indexed - the indexer reported the packet hash.
type Indexed struct {
	PacketHash string `json:"packet_hash"`
}

// IndexTimeout - the chain confirmed but the indexer never answered within
// the window. Funds may have moved; the outcome is unknown, not failed.
type IndexTimeout struct {
	TxHash string `json:"tx_hash"`
}

// Failed - the submission stopped with an error.
type Failed struct {
	Err error `json:"-"`
}

func (Dispatched) Tag() Tag                 { return TagDispatched }
func (WaitForSafeWalletHash) Tag() Tag      { return TagWaitForSafeWalletHash }
func (TransactionReceiptComplete) Tag() Tag { return TagTransactionReceiptComplete }
func (IndexerPending) Tag() Tag             { return TagIndexerPending }
func (Indexed) Tag() Tag                    { return TagIndexed }
func (IndexTimeout) Tag() Tag               { return TagIndexTimeout }
func (Failed) Tag() Tag                     { return TagFailed }

func (f Failed) Error() string {
	if f.Err == nil {
		return "submission failed"
	}
	return f.Err.Error()
}

// IsComplete is true for every receipt-style variant: a safe proposal, a
// chain receipt, or an indexed packet. It matches the first of those seen,
// which is usually not the end of the submission; use IsTerminal to wait
// for the end.
func IsComplete(ev Event) bool {
	switch ev.(type) {
	case TransactionReceiptComplete, WaitForSafeWalletHash, Indexed:
		return true
	}
	return false
}

// IsTerminal is true for the events after which nothing else is emitted.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case Indexed, IndexTimeout, Failed:
		return true
	}
	return false
}

// HasTag matches any of the given tags.
func HasTag(tags ...Tag) func(Event) bool {
	return func(ev Event) bool {
		for _, t := range tags {
			if ev.Tag() == t {
				return true
			}
		}
		return false
	}
}

// State is a stage of the submission state machine.
type State string

const (
	StateBuilt            State = "built"
	StateDispatched       State = "dispatched"
	StateBackendPending   State = "backend_pending"
	StateBackendConfirmed State = "backend_confirmed"
	StateIndexerPending   State = "indexer_pending"
	StateIndexed          State = "indexed"
	StateIndexTimeout     State = "index_timeout"
	StateReverted         State = "reverted"
	StateFailed           State = "failed"
)

// revert is implemented by errors of transactions that were included on
// chain and failed there.
type revert interface {
	Reverted() bool
}

// StateOf maps an event to the state it moves the submission into.
func StateOf(ev Event) State {
	switch ev := ev.(type) {
	case Dispatched:
		return StateDispatched
	case WaitForSafeWalletHash:
		return StateBackendPending
	case TransactionReceiptComplete:
		return StateBackendConfirmed
	case IndexerPending:
		return StateIndexerPending
	case Indexed:
		return StateIndexed
	case IndexTimeout:
		return StateIndexTimeout
	case Failed:
		var r revert
		if errors.As(ev.Err, &r) && r.Reverted() {
			return StateReverted
		}
		return StateFailed
	}
	panic(fmt.Sprintf("lifecycle: unknown event %T", ev))
}
