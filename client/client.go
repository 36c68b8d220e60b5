package client

import (
	"context"
	"errors"
	"fmt"
	"time"
	"weak"

	log "github.com/sirupsen/logrus"

	"zkgm/chains"
	"zkgm/indexer"
	"zkgm/lifecycle"
	"zkgm/ucs03"
)

// ZkgmClient submits packets and reports their progress.
type ZkgmClient interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Backend submits on one chain family.
type Backend interface {
	Family() chains.Family
	// Submit signs and broadcasts, or proposes for a multisig source.
	Submit(ctx context.Context, req *Request, payload Payload) (Submission, error)
	// AwaitReceipt blocks until txHash is included.
	AwaitReceipt(ctx context.Context, txHash string) (Receipt, error)
}

// PacketIndexer maps submission tx hashes to packet hashes. It returns an
// error matching indexer.ErrIndexTimeout when the window passes.
type PacketIndexer interface {
	WaitForPacketHash(ctx context.Context, txHash string) (string, error)
}

// SafeResolver turns multisig proposal hashes into transaction hashes.
type SafeResolver interface {
	Resolve(ctx context.Context, hash string) (string, bool)
}

// Transition is one recorded lifecycle step.
type Transition struct {
	Key         string
	Source      chains.UniversalChainID
	Destination chains.UniversalChainID
	Sender      string
	Event       lifecycle.Event
	At          time.Time
}

// Recorder persists transitions. Errors are logged, never fatal.
type Recorder interface {
	Record(ctx context.Context, t Transition) error
}

// Config - collaborators of Client. Indexer, Safe and Recorder are optional.
type Config struct {
	Codec    ucs03.Codec
	Indexer  PacketIndexer
	Safe     SafeResolver
	Recorder Recorder
	Logger   log.FieldLogger
	// SafeRounds bounds how many times the resolver is run for one proposal;
	// 0 keeps resolving until the stream is cancelled.
	SafeRounds int
}

// Client dispatches requests to the backend registered for their family.
type Client struct {
	cfg      Config
	backends map[chains.Family]Backend
	logger   log.FieldLogger
}

var _ ZkgmClient = (*Client)(nil)

// New registers one backend per family.
func New(cfg Config, backends ...Backend) (*Client, error) {
	c := &Client{cfg: cfg, backends: make(map[chains.Family]Backend, len(backends)), logger: cfg.Logger}
	if c.logger == nil {
		c.logger = log.StandardLogger()
	}
	for _, b := range backends {
		if _, dup := c.backends[b.Family()]; dup {
			return nil, fmt.Errorf("duplicate backend for family %s", b.Family())
		}
		c.backends[b.Family()] = b
	}
	return c, nil
}

// Families lists the registered backend families.
func (c *Client) Families() []chains.Family {
	out := make([]chains.Family, 0, len(c.backends))
	for f := range c.backends {
		out = append(out, f)
	}
	return out
}

// Execute validates and encodes req, then hands it to its backend. It
// returns once the backend accepted the submission; receipt and indexing
// are reported on Response.Stream, whose producer lives until ctx ends,
// the stream is closed, or a terminal event was consumed.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	backend, ok := c.backends[req.Source.Family]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, req.Source.Family)
	}

	logger := c.logger.WithFields(log.Fields{
		"family": req.Source.Family,
		"chain":  req.Source.UniversalChainID,
	})

	payload, err := c.encode(req)
	if err != nil {
		return nil, EncodeError(err)
	}

	sub, err := backend.Submit(ctx, req, payload)
	if err != nil {
		logger.WithError(err).Error("submission failed")
		var reqErr *RequestError
		var respErr *ResponseError
		if errors.As(err, &reqErr) || errors.As(err, &respErr) || errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}
		return nil, TransportError(err)
	}
	if sub.TxHash == "" && sub.SafeHash == "" {
		return nil, TransportError(errors.New("backend returned no hash"))
	}

	key := sub.TxHash
	if sub.SafeHash != "" {
		key = sub.SafeHash
	}
	logger = logger.WithField("tx_hash", key)
	logger.Info("submission dispatched")

	p := &pipeline{client: c, backend: backend, req: req, sub: sub, key: key, logger: logger}
	return &Response{
		request:  weak.Make(req),
		TxHash:   sub.TxHash,
		SafeHash: sub.SafeHash,
		Stream:   lifecycle.NewStream(ctx, p.run),
	}, nil
}

func (c *Client) encode(req *Request) (Payload, error) {
	if req.Packet.Instruction == nil {
		return Payload{}, ucs03.ErrNilInstruction
	}
	raw, err := c.cfg.Codec.EncodeRaw(req.Packet.Instruction)
	if err != nil {
		return Payload{}, err
	}
	packet, err := c.cfg.Codec.EncodePacket(req.Packet)
	if err != nil {
		return Payload{}, err
	}
	return Payload{Salt: req.Packet.Salt, Instruction: raw, Packet: packet}, nil
}

type pipeline struct {
	client  *Client
	backend Backend
	req     *Request
	sub     Submission
	key     string
	logger  log.FieldLogger
}

func (p *pipeline) run(ctx context.Context, emit lifecycle.Emit) error {
	emit = p.recording(ctx, emit)

	if err := emit(lifecycle.Dispatched{TxHash: p.key}); err != nil {
		return err
	}

	txHash := p.sub.TxHash
	if p.sub.SafeHash != "" {
		if err := emit(lifecycle.WaitForSafeWalletHash{Hash: p.sub.SafeHash}); err != nil {
			return err
		}
		h, err := p.resolveSafe(ctx)
		if err != nil {
			return p.fail(ctx, emit, err)
		}
		txHash = h
		p.logger = p.logger.WithField("tx_hash", txHash)
	}

	rcpt, err := p.backend.AwaitReceipt(ctx, txHash)
	if err != nil {
		return p.fail(ctx, emit, err)
	}
	if rcpt.TxHash == "" {
		rcpt.TxHash = txHash
	}
	// a reverted transaction is still included; its receipt goes out first
	if err := emit(lifecycle.TransactionReceiptComplete{
		TxHash:    rcpt.TxHash,
		BlockHash: rcpt.BlockHash,
		GasUsed:   rcpt.GasUsed,
	}); err != nil {
		return err
	}
	if !rcpt.Success {
		reason := rcpt.Reason
		if reason == "" {
			reason = "transaction reverted"
		}
		return p.fail(ctx, emit, OnChainError(rcpt.TxHash, errors.New(reason)))
	}

	idx := p.client.cfg.Indexer
	if idx == nil {
		return nil
	}
	if err := emit(lifecycle.IndexerPending{TxHash: rcpt.TxHash}); err != nil {
		return err
	}
	packetHash, err := idx.WaitForPacketHash(ctx, rcpt.TxHash)
	switch {
	case err == nil:
		p.logger.WithField("packet_hash", packetHash).Info("packet indexed")
		return emit(lifecycle.Indexed{PacketHash: packetHash})
	case errors.Is(err, indexer.ErrIndexTimeout):
		p.logger.Warn("indexer did not report the packet in time")
		return emit(lifecycle.IndexTimeout{TxHash: rcpt.TxHash})
	default:
		return p.fail(ctx, emit, err)
	}
}

func (p *pipeline) resolveSafe(ctx context.Context) (string, error) {
	resolver := p.client.cfg.Safe
	if resolver == nil {
		return "", fmt.Errorf("%w: no resolver configured", ErrSafeUnresolved)
	}
	for round := 1; p.client.cfg.SafeRounds == 0 || round <= p.client.cfg.SafeRounds; round++ {
		if h, ok := resolver.Resolve(ctx, p.sub.SafeHash); ok {
			return h, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p.logger.WithField("round", round).Debug("multisig proposal still pending")
	}
	return "", fmt.Errorf("%w: %s", ErrSafeUnresolved, p.sub.SafeHash)
}

// fail emits Failed unless the stream is already cancelled, and returns err.
func (p *pipeline) fail(ctx context.Context, emit lifecycle.Emit, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	p.logger.WithError(err).Error("submission failed")
	if emitErr := emit(lifecycle.Failed{Err: err}); emitErr != nil {
		return emitErr
	}
	return err
}

func (p *pipeline) recording(ctx context.Context, emit lifecycle.Emit) lifecycle.Emit {
	rec := p.client.cfg.Recorder
	if rec == nil {
		return emit
	}
	return func(ev lifecycle.Event) error {
		t := Transition{
			Key:         p.key,
			Source:      p.req.Source.UniversalChainID,
			Destination: p.req.Channel.DestinationUniversalChainID,
			Sender:      p.req.Source.Sender,
			Event:       ev,
			At:          time.Now().UTC(),
		}
		if err := rec.Record(ctx, t); err != nil {
			p.logger.WithError(err).WithField("event", ev.Tag()).Warn("failed to record transition")
		}
		return emit(ev)
	}
}
