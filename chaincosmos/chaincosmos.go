package chaincosmos

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
	"unicode"

	"github.com/ethereum/go-ethereum/common/hexutil"
	log "github.com/sirupsen/logrus"

	"zkgm/chains"
	"zkgm/client"
	"zkgm/primitives"
	"zkgm/retry"
)

// Coin is a native denom amount attached to an execute message.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Broadcaster signs and broadcasts a wasm execute message.
type Broadcaster interface {
	ChainID(ctx context.Context) (string, error)
	ExecuteContract(ctx context.Context, sender, contract string, msg []byte, funds []Coin) (string, error)
}

// TxQuerier looks up an included transaction. It returns ErrTxNotFound
// until the transaction is in a block.
type TxQuerier interface {
	Tx(ctx context.Context, hash string) (*TxResponse, error)
}

// Config - Cosmos backend settings
type Config struct {
	Chain chains.Chain
	// Bech32Prefix of sender and contract addresses, e.g. "union".
	Bech32Prefix        string
	ReceiptPollInterval time.Duration
	Logger              log.FieldLogger
}

// CosmosChain - submission backend for CosmWasm chains
type CosmosChain struct {
	broadcaster Broadcaster
	txs         TxQuerier
	chain       chains.Chain
	prefix      string
	poll        time.Duration
	logger      log.FieldLogger
}

var _ client.Backend = (*CosmosChain)(nil)

// NewCosmosChain validates the ucs03 contract address against the prefix.
func NewCosmosChain(config Config, broadcaster Broadcaster, txs TxQuerier) (*CosmosChain, error) {
	if config.Chain.Family != chains.FamilyCosmos {
		return nil, fmt.Errorf("chain %s is not a cosmos chain", config.Chain.UniversalChainID)
	}
	hrp, _, err := primitives.Bech32Decode(config.Chain.UCS03Address)
	if err != nil {
		return nil, fmt.Errorf("chain %s: invalid ucs03 address: %w", config.Chain.UniversalChainID, err)
	}
	if config.Bech32Prefix == "" {
		config.Bech32Prefix = hrp
	}
	if hrp != config.Bech32Prefix {
		return nil, fmt.Errorf("chain %s: ucs03 address prefix %q, expected %q", config.Chain.UniversalChainID, hrp, config.Bech32Prefix)
	}
	if config.ReceiptPollInterval <= 0 {
		config.ReceiptPollInterval = time.Second
	}
	if config.Logger == nil {
		config.Logger = log.StandardLogger()
	}
	return &CosmosChain{
		broadcaster: broadcaster,
		txs:         txs,
		chain:       config.Chain,
		prefix:      config.Bech32Prefix,
		poll:        config.ReceiptPollInterval,
		logger:      config.Logger.WithField("chain", config.Chain.UniversalChainID),
	}, nil
}

// Family implements client.Backend.
func (c *CosmosChain) Family() chains.Family {
	return chains.FamilyCosmos
}

// SendMsg is the ucs03 wasm execute message.
type SendMsg struct {
	Send SendParams `json:"send"`
}

type SendParams struct {
	ChannelID        uint32 `json:"channel_id"`
	TimeoutHeight    string `json:"timeout_height"`
	TimeoutTimestamp string `json:"timeout_timestamp"`
	Salt             string `json:"salt"`
	Instruction      string `json:"instruction"`
}

// ExecuteMsg builds the JSON execute message for req. The instruction is
// the abi encoding of (version, opcode, operand).
func ExecuteMsg(req *client.Request, instruction []byte) ([]byte, error) {
	return json.Marshal(SendMsg{Send: SendParams{
		ChannelID:        req.Channel.SourceChannelID,
		TimeoutHeight:    "0",
		TimeoutTimestamp: strconv.FormatUint(req.TimeoutTimestamp, 10),
		Salt:             hexutil.Encode(req.Packet.Salt[:]),
		Instruction:      hexutil.Encode(instruction),
	}})
}

// Funds lists the native coins the orders of req spend, sorted by denom.
// Base tokens that are contract addresses of this chain are cw20 tokens and
// move by allowance instead.
func (c *CosmosChain) Funds(req *client.Request) []Coin {
	var coins []Coin
	for token, amount := range req.Funds() {
		if !isDenom(token) {
			continue
		}
		if hrp, _, err := primitives.Bech32Decode(token); err == nil && hrp == c.prefix {
			continue
		}
		coins = append(coins, Coin{Denom: token, Amount: amount.String()})
	}
	sort.Slice(coins, func(i, j int) bool { return coins[i].Denom < coins[j].Denom })
	return coins
}

func isDenom(s string) bool {
	if len(s) < 2 || len(s) > 128 {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '/' || r == ':' || r == '.' || r == '_' || r == '-') {
			return false
		}
	}
	return true
}

// Submit - broadcast the send execute message
func (c *CosmosChain) Submit(ctx context.Context, req *client.Request, payload client.Payload) (client.Submission, error) {
	if req.Source.IsMultisig() {
		return client.Submission{}, fmt.Errorf("%w: multisig sources are not supported on cosmos chains", client.ErrInvalidRequest)
	}
	hrp, _, err := primitives.Bech32Decode(req.Source.Sender)
	if err != nil || hrp != c.prefix {
		return client.Submission{}, fmt.Errorf("%w: sender %q is not a %s address", client.ErrInvalidRequest, req.Source.Sender, c.prefix)
	}

	chainID, err := c.broadcaster.ChainID(ctx)
	if err != nil {
		return client.Submission{}, client.TransportError(err)
	}
	if want := c.chain.UniversalChainID.ChainID(); chainID != want {
		return client.Submission{}, client.SwitchChainError(want, chainID)
	}

	instruction, err := payload.Instruction.Bytes()
	if err != nil {
		return client.Submission{}, client.EncodeError(err)
	}
	msg, err := ExecuteMsg(req, instruction)
	if err != nil {
		return client.Submission{}, client.EncodeError(err)
	}
	funds := c.Funds(req)

	txHash, err := c.broadcaster.ExecuteContract(ctx, req.Source.Sender, c.chain.UCS03Address, msg, funds)
	if err != nil {
		return client.Submission{}, client.TransportError(err)
	}
	c.logger.WithFields(log.Fields{"tx_hash": txHash, "funds": funds}).Info("execute message broadcast")
	return client.Submission{TxHash: txHash}, nil
}

// AwaitReceipt - poll the tx endpoint until the transaction is in a block
func (c *CosmosChain) AwaitReceipt(ctx context.Context, txHash string) (client.Receipt, error) {
	var tx *TxResponse
	err := retry.Do(ctx, retry.Fixed(c.poll, 0), func(ctx context.Context) error {
		r, err := c.txs.Tx(ctx, txHash)
		if err != nil {
			return err
		}
		tx = r
		return nil
	}, retry.Notify(func(err error, attempt int, _ time.Duration) {
		c.logger.WithError(err).WithFields(log.Fields{"tx_hash": txHash, "attempt": attempt}).Debug("transaction not found yet")
	}))
	if err != nil {
		return client.Receipt{}, fmt.Errorf("waiting for %s: %w", txHash, err)
	}

	gas, _ := strconv.ParseUint(tx.GasUsed, 10, 64)
	height, _ := strconv.ParseUint(tx.Height, 10, 64)
	rcpt := client.Receipt{
		TxHash:  tx.TxHash,
		Height:  height,
		GasUsed: gas,
		Success: tx.Code == 0,
	}
	if !rcpt.Success {
		rcpt.Reason = fmt.Sprintf("code %d (%s): %s", tx.Code, tx.Codespace, tx.RawLog)
	}
	return rcpt, nil
}
