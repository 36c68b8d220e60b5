package client

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
)

// ModuleName is the error codespace of this package.
const ModuleName = "client"

var (
	// ErrRequest marks failures before the chain saw anything; safe to retry.
	ErrRequest = errorsmod.Register(ModuleName, 2, "request did not reach the chain")
	// ErrResponse marks failures after submission; not safe to retry blindly.
	ErrResponse       = errorsmod.Register(ModuleName, 3, "chain rejected the submission")
	ErrNoBackend      = errorsmod.Register(ModuleName, 4, "no backend for chain family")
	// ErrInvalidRequest marks requests a backend refuses to submit as built;
	// retrying the same request fails the same way.
	ErrInvalidRequest = errorsmod.Register(ModuleName, 5, "invalid request")
	ErrSafeUnresolved = errorsmod.Register(ModuleName, 6, "multisig proposal was not executed")
)

// RequestReason classifies a RequestError.
type RequestReason string

const (
	ReasonTransport  RequestReason = "Transport"
	ReasonEncode     RequestReason = "Encode"
	ReasonInvalidURL RequestReason = "InvalidUrl"
)

// ResponseReason classifies a ResponseError.
type ResponseReason string

const (
	ReasonSwitchChain ResponseReason = "SwitchChain"
	ReasonOnChain     ResponseReason = "OnChain"
)

// RequestError - the submission never reached the chain
type RequestError struct {
	Reason RequestReason
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request error (%s): %v", e.Reason, e.Err)
}

func (e *RequestError) Unwrap() []error {
	return []error{ErrRequest, e.Err}
}

// ResponseError - the chain context was wrong, or the transaction executed
// and reverted
type ResponseError struct {
	Reason ResponseReason
	TxHash string
	Err    error
}

func (e *ResponseError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("response error (%s) tx %s: %v", e.Reason, e.TxHash, e.Err)
	}
	return fmt.Sprintf("response error (%s): %v", e.Reason, e.Err)
}

func (e *ResponseError) Unwrap() []error {
	return []error{ErrResponse, e.Err}
}

// Reverted is true when the transaction was included and failed.
func (e *ResponseError) Reverted() bool {
	return e.Reason == ReasonOnChain && e.TxHash != ""
}

func TransportError(err error) error {
	return &RequestError{Reason: ReasonTransport, Err: err}
}

func EncodeError(err error) error {
	return &RequestError{Reason: ReasonEncode, Err: err}
}

func InvalidURLError(url string, err error) error {
	return &RequestError{Reason: ReasonInvalidURL, Err: fmt.Errorf("%q: %w", url, err)}
}

// SwitchChainError reports that the signer is connected to another chain.
func SwitchChainError(want, got string) error {
	return &ResponseError{Reason: ReasonSwitchChain, Err: fmt.Errorf("expected chain %s, connected to %s", want, got)}
}

// OnChainError reports a reverted transaction.
func OnChainError(txHash string, err error) error {
	return &ResponseError{Reason: ReasonOnChain, TxHash: txHash, Err: err}
}
