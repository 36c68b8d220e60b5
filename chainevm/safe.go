package chainevm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SafeTx is a call to be executed by a Safe multisig.
type SafeTx struct {
	Safe  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
	Nonce *big.Int
}

// SafeProposer publishes a proposal and returns its safe tx hash.
type SafeProposer interface {
	Propose(ctx context.Context, tx SafeTx) (string, error)
}

var (
	domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(uint256 chainId,address verifyingContract)"))
	safeTxTypeHash = crypto.Keccak256Hash([]byte("SafeTx(address to,uint256 value,bytes data,uint8 operation,uint256 safeTxGas,uint256 baseGas,uint256 gasPrice,address gasToken,address refundReceiver,uint256 nonce)"))

	bytes32T, _ = abi.NewType("bytes32", "", nil)
	uint256T, _ = abi.NewType("uint256", "", nil)
	uint8T, _   = abi.NewType("uint8", "", nil)
	addressT, _ = abi.NewType("address", "", nil)

	domainArgs = abi.Arguments{{Type: bytes32T}, {Type: uint256T}, {Type: addressT}}
	safeTxArgs = abi.Arguments{
		{Type: bytes32T}, {Type: addressT}, {Type: uint256T}, {Type: bytes32T}, {Type: uint8T},
		{Type: uint256T}, {Type: uint256T}, {Type: uint256T}, {Type: addressT}, {Type: addressT}, {Type: uint256T},
	}
)

// SafeTxHash is the EIP-712 hash Safe owners sign: a plain CALL with no
// gas refund.
func SafeTxHash(chainID *big.Int, tx SafeTx) (common.Hash, error) {
	value, nonce := tx.Value, tx.Nonce
	if value == nil {
		value = new(big.Int)
	}
	if nonce == nil {
		nonce = new(big.Int)
	}
	domain, err := domainArgs.Pack([32]byte(domainTypeHash), chainID, tx.Safe)
	if err != nil {
		return common.Hash{}, err
	}
	zero := new(big.Int)
	body, err := safeTxArgs.Pack([32]byte(safeTxTypeHash), tx.To, value, [32]byte(crypto.Keccak256Hash(tx.Data)), uint8(0),
		zero, zero, zero, common.Address{}, common.Address{}, nonce)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		crypto.Keccak256(domain),
		crypto.Keccak256(body),
	), nil
}

// ServiceProposer signs proposals with an owner key and posts them to a
// Safe transaction service.
type ServiceProposer struct {
	base    *url.URL
	rpc     RPC
	owner   Signer
	chainID *big.Int
	http    *http.Client
}

// NewServiceProposer - rpc is used to read the safe nonce.
func NewServiceProposer(serviceURL string, rpc RPC, owner Signer, chainID *big.Int) (*ServiceProposer, error) {
	u, err := url.Parse(strings.TrimRight(serviceURL, "/"))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid safe service url %q", serviceURL)
	}
	return &ServiceProposer{
		base:    u,
		rpc:     rpc,
		owner:   owner,
		chainID: chainID,
		http:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type proposal struct {
	To                      string `json:"to"`
	Value                   string `json:"value"`
	Data                    string `json:"data"`
	Operation               int    `json:"operation"`
	SafeTxGas               string `json:"safeTxGas"`
	BaseGas                 string `json:"baseGas"`
	GasPrice                string `json:"gasPrice"`
	GasToken                string `json:"gasToken"`
	RefundReceiver          string `json:"refundReceiver"`
	Nonce                   string `json:"nonce"`
	ContractTransactionHash string `json:"contractTransactionHash"`
	Sender                  string `json:"sender"`
	Signature               string `json:"signature"`
}

// Propose implements SafeProposer.
func (p *ServiceProposer) Propose(ctx context.Context, tx SafeTx) (string, error) {
	if tx.Nonce == nil {
		nonce, err := p.safeNonce(ctx, tx.Safe)
		if err != nil {
			return "", err
		}
		tx.Nonce = nonce
	}
	if tx.Value == nil {
		tx.Value = new(big.Int)
	}
	hash, err := SafeTxHash(p.chainID, tx)
	if err != nil {
		return "", err
	}
	sig, err := p.owner.SignHash(hash)
	if err != nil {
		return "", fmt.Errorf("failed to sign safe tx: %w", err)
	}

	body, err := json.Marshal(proposal{
		To:                      tx.To.Hex(),
		Value:                   tx.Value.String(),
		Data:                    hexutil.Encode(tx.Data),
		SafeTxGas:               "0",
		BaseGas:                 "0",
		GasPrice:                "0",
		GasToken:                common.Address{}.Hex(),
		RefundReceiver:          common.Address{}.Hex(),
		Nonce:                   tx.Nonce.String(),
		ContractTransactionHash: hash.Hex(),
		Sender:                  p.owner.Address().Hex(),
		Signature:               hexutil.Encode(sig),
	})
	if err != nil {
		return "", err
	}

	endpoint := p.base.JoinPath("api", "v1", "safes", tx.Safe.Hex(), "multisig-transactions").String() + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("safe service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return hash.Hex(), nil
}

func (p *ServiceProposer) safeNonce(ctx context.Context, safe common.Address) (*big.Int, error) {
	data, err := safeABI.Pack("nonce")
	if err != nil {
		return nil, err
	}
	out, err := p.rpc.CallContract(ctx, ethereum.CallMsg{To: &safe, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read safe nonce: %w", err)
	}
	vals, err := safeABI.Unpack("nonce", out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode safe nonce: %w", err)
	}
	return vals[0].(*big.Int), nil
}
