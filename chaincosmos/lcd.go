package chaincosmos

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

// ErrTxNotFound - the node does not know the transaction (yet)
var ErrTxNotFound = errors.New("transaction not found")

// TxResponse is the subset of cosmos.base.abci.v1beta1.TxResponse used here.
type TxResponse struct {
	Height    string `json:"height"`
	TxHash    string `json:"txhash"`
	Codespace string `json:"codespace"`
	Code      uint32 `json:"code"`
	RawLog    string `json:"raw_log"`
	GasUsed   string `json:"gas_used"`
}

// LCD is a REST (gRPC gateway) client for tx and node queries.
type LCD struct {
	base *url.URL
	http *http.Client
}

// NewLCD - baseURL is the node's REST endpoint.
func NewLCD(baseURL string) (*LCD, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid lcd url %q", baseURL)
	}
	return &LCD{base: u, http: &http.Client{Timeout: 15 * time.Second}}, nil
}

func (l *LCD) get(ctx context.Context, out any, path ...string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.base.JoinPath(path...).String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := l.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrTxNotFound
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("lcd returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Tx implements TxQuerier.
func (l *LCD) Tx(ctx context.Context, hash string) (*TxResponse, error) {
	var out struct {
		TxResponse *TxResponse `json:"tx_response"`
	}
	if err := l.get(ctx, &out, "cosmos", "tx", "v1beta1", "txs", strings.ToUpper(strings.TrimPrefix(hash, "0x"))); err != nil {
		return nil, err
	}
	if out.TxResponse == nil {
		return nil, ErrTxNotFound
	}
	return out.TxResponse, nil
}

// ChainID reads the network name from node info.
func (l *LCD) ChainID(ctx context.Context) (string, error) {
	var out struct {
		DefaultNodeInfo struct {
			Network string `json:"network"`
		} `json:"default_node_info"`
	}
	if err := l.get(ctx, &out, "cosmos", "base", "tendermint", "v1beta1", "node_info"); err != nil {
		return "", err
	}
	return out.DefaultNodeInfo.Network, nil
}
