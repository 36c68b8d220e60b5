package chainaptos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotFound - the node does not know the transaction
	ErrNotFound = errors.New("transaction not found")
	// ErrPending - the transaction is in the mempool
	ErrPending = errors.New("transaction pending")
)

// Transaction is the subset of the node's transaction JSON used here.
type Transaction struct {
	Type            string `json:"type"`
	Hash            string `json:"hash"`
	Version         string `json:"version"`
	StateChangeHash string `json:"state_change_hash"`
	GasUsed         string `json:"gas_used"`
	Success         bool   `json:"success"`
	VMStatus        string `json:"vm_status"`
}

// Node is a client for the node REST API (/v1).
type Node struct {
	base *url.URL
	http *http.Client
}

// NewNode - baseURL like https://api.testnet.aptoslabs.com/v1
func NewNode(baseURL string) (*Node, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid node url %q", baseURL)
	}
	return &Node{base: u, http: &http.Client{Timeout: 15 * time.Second}}, nil
}

func (n *Node) get(ctx context.Context, out any, path ...string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.base.JoinPath(path...).String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ChainID reads the ledger info.
func (n *Node) ChainID(ctx context.Context) (uint8, error) {
	var info struct {
		ChainID uint8 `json:"chain_id"`
	}
	if err := n.get(ctx, &info); err != nil {
		return 0, err
	}
	return info.ChainID, nil
}

// TransactionByHash implements TxQuerier.
func (n *Node) TransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	var tx Transaction
	if err := n.get(ctx, &tx, "transactions", "by_hash", hash); err != nil {
		return nil, err
	}
	return &tx, nil
}
