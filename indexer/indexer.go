package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	log "github.com/sirupsen/logrus"

	"zkgm/chains"
	"zkgm/channel"
	"zkgm/retry"
)

// ModuleName is the error codespace of this package.
const ModuleName = "indexer"

var (
	ErrInvalidURL   = errorsmod.Register(ModuleName, 2, "invalid indexer url")
	ErrTransport    = errorsmod.Register(ModuleName, 3, "indexer request failed")
	ErrQuery        = errorsmod.Register(ModuleName, 4, "indexer query returned errors")
	ErrNotIndexed   = errorsmod.Register(ModuleName, 5, "transaction not indexed yet")
	ErrIndexTimeout = errorsmod.Register(ModuleName, 6, "indexer did not report the packet in time")
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 10 * time.Minute
)

const packetHashQuery = `query PacketHashBySubmissionTxHash($submission_tx_hash: String!) {
  v2_transfers(args: { p_transaction_hash: $submission_tx_hash }) {
    packet_hash
  }
}`

const channelsQuery = `query Channels($source: String!, $destination: String!) {
  v2_channels(args: { p_source_universal_chain_id: $source, p_destination_universal_chain_id: $destination }) {
    source_universal_chain_id
    source_connection_id
    source_channel_id
    source_port_id
    destination_universal_chain_id
    destination_connection_id
    destination_channel_id
    destination_port_id
    fees { action token amount }
  }
}`

// Config - indexer client settings
type Config struct {
	URL          string
	PollInterval time.Duration
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       log.FieldLogger
}

// Client queries the packet indexer over GraphQL.
type Client struct {
	url          string
	pollInterval time.Duration
	timeout      time.Duration
	http         *http.Client
	logger       log.FieldLogger
}

// New validates cfg and fills defaults.
func New(cfg Config) (*Client, error) {
	u, err := url.ParseRequestURI(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errorsmod.Wrapf(ErrInvalidURL, "%q", cfg.URL)
	}
	c := &Client{
		url:          cfg.URL,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
		http:         cfg.HTTPClient,
		logger:       cfg.Logger,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.logger == nil {
		c.logger = log.StandardLogger()
	}
	return c, nil
}

// Timeout is the configured indexing window.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// Query posts a GraphQL document and decodes its data field into out.
func (c *Client) Query(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return errorsmod.Wrap(ErrQuery, err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errorsmod.Wrap(ErrTransport, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errorsmod.Wrap(ErrTransport, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errorsmod.Wrap(ErrTransport, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return errorsmod.Wrapf(ErrTransport, "status %d", resp.StatusCode)
	}

	var gr graphqlResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return errorsmod.Wrapf(ErrQuery, "decode response: %v", err)
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, len(gr.Errors))
		for i, e := range gr.Errors {
			msgs[i] = e.Message
		}
		return errorsmod.Wrap(ErrQuery, strings.Join(msgs, "; "))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return errorsmod.Wrapf(ErrQuery, "decode data: %v", err)
	}
	return nil
}

// PacketHash looks up the packet sent by txHash. It returns ErrNotIndexed
// while the indexer has no row for it.
func (c *Client) PacketHash(ctx context.Context, txHash string) (string, error) {
	var data struct {
		Transfers []struct {
			PacketHash string `json:"packet_hash"`
		} `json:"v2_transfers"`
	}
	vars := map[string]any{"submission_tx_hash": strings.ToLower(txHash)}
	if err := c.Query(ctx, packetHashQuery, vars, &data); err != nil {
		return "", err
	}
	for _, t := range data.Transfers {
		if t.PacketHash != "" {
			return t.PacketHash, nil
		}
	}
	return "", ErrNotIndexed
}

// WaitForPacketHash polls PacketHash until a hash appears. When the
// configured window passes first it returns ErrIndexTimeout; transport
// hiccups inside the window are retried.
func (c *Client) WaitForPacketHash(ctx context.Context, txHash string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var hash string
	err := retry.Do(ctx, retry.IndexerPolling(c.pollInterval), func(ctx context.Context) error {
		h, err := c.PacketHash(ctx, txHash)
		if err != nil {
			return err
		}
		hash = h
		return nil
	}, retry.Notify(func(err error, attempt int, next time.Duration) {
		entry := c.logger.WithFields(log.Fields{"tx_hash": txHash, "attempt": attempt})
		if errors.Is(err, ErrNotIndexed) {
			entry.Debug("packet not indexed yet")
			return
		}
		entry.WithError(err).Warn("indexer query failed, retrying")
	}), retry.RetryIf(func(err error) bool {
		return !errors.Is(err, ErrQuery)
	}))
	if err == nil {
		return hash, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", errorsmod.Wrapf(ErrIndexTimeout, "%s after %s", txHash, c.timeout)
	}
	return "", err
}

// Channels implements channel.Source.
func (c *Client) Channels(ctx context.Context, src, dst chains.UniversalChainID) ([]channel.Record, error) {
	var data struct {
		Channels []channel.Record `json:"v2_channels"`
	}
	vars := map[string]any{"source": string(src), "destination": string(dst)}
	if err := c.Query(ctx, channelsQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return data.Channels, nil
}
