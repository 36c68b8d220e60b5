package client

import (
	"fmt"
	"math/big"
	"time"
	"weak"

	"zkgm/chains"
	"zkgm/channel"
	"zkgm/lifecycle"
	"zkgm/salt"
	"zkgm/ucs03"
)

// DefaultPacketTimeout is used by NewRequest when no timeout is given.
const DefaultPacketTimeout = 24 * time.Hour

// Request is one packet to submit from Source over Channel.
type Request struct {
	Source  chains.Context
	Channel channel.Channel
	Packet  ucs03.Packet
	// TimeoutTimestamp is the packet timeout in unix nanoseconds.
	TimeoutTimestamp uint64
}

// NewRequest wraps ins in a packet with a fresh salt for the source family
// and path 0.
func NewRequest(source chains.Context, ch channel.Channel, ins ucs03.Instruction, timeout time.Duration) (*Request, error) {
	s, err := salt.Generate(source.Family)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultPacketTimeout
	}
	return &Request{
		Source:           source,
		Channel:          ch,
		Packet:           ucs03.NewPacket(s.Bytes32(), ins),
		TimeoutTimestamp: uint64(time.Now().Add(timeout).UnixNano()),
	}, nil
}

func (r *Request) validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if _, err := chains.ParseFamily(string(r.Source.Family)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.Source.Sender == "" {
		return fmt.Errorf("%w: missing sender", ErrInvalidRequest)
	}
	if r.Channel.SourceUniversalChainID != r.Source.UniversalChainID {
		return fmt.Errorf("%w: channel starts on %s, request is on %s",
			ErrInvalidRequest, r.Channel.SourceUniversalChainID, r.Source.UniversalChainID)
	}
	if r.TimeoutTimestamp == 0 {
		return fmt.Errorf("%w: missing timeout", ErrInvalidRequest)
	}
	return nil
}

// TokenOrders lists every token order in the packet, batches flattened in
// order.
func (r *Request) TokenOrders() []ucs03.TokenOrder {
	var out []ucs03.TokenOrder
	ucs03.Walk(r.Packet.Instruction, func(ins ucs03.Instruction) bool {
		switch o := ins.(type) {
		case ucs03.TokenOrder:
			out = append(out, o)
		case *ucs03.TokenOrder:
			out = append(out, *o)
		}
		return true
	})
	return out
}

// Funds sums base amounts per base token, keyed by the token bytes as
// given in the orders.
func (r *Request) Funds() map[string]*big.Int {
	funds := make(map[string]*big.Int)
	for _, o := range r.TokenOrders() {
		if o.BaseAmount == nil {
			continue
		}
		key := string(o.BaseToken)
		if funds[key] == nil {
			funds[key] = new(big.Int)
		}
		funds[key].Add(funds[key], o.BaseAmount)
	}
	return funds
}

// Payload is the encoded request handed to a backend.
type Payload struct {
	Salt        [32]byte
	Instruction ucs03.RawInstruction
	// Packet is the full envelope encoding.
	Packet []byte
}

// Submission is what a backend returns once it accepted a request. A
// multisig source yields SafeHash and no TxHash.
type Submission struct {
	TxHash   string
	SafeHash string
}

// Receipt is a backend's view of an included transaction.
type Receipt struct {
	TxHash    string
	BlockHash string
	Height    uint64
	GasUsed   uint64
	Success   bool
	// Reason describes a failed execution when the chain reports one.
	Reason string
}

// Response tracks one accepted submission.
type Response struct {
	request weak.Pointer[Request]

	TxHash   string
	SafeHash string
	Stream   *lifecycle.Stream
}

// Request returns the originating request, or nil once it was collected.
func (r *Response) Request() *Request {
	return r.request.Value()
}
