package ucs03

import (
	"fmt"
	"math/big"
)

// Packet is the envelope submitted on chain: a random salt, the forwarding
// path (0 for direct sends) and the root instruction.
type Packet struct {
	Salt        [32]byte
	Path        *big.Int
	Instruction Instruction
}

// NewPacket builds a direct-send packet.
func NewPacket(salt [32]byte, ins Instruction) Packet {
	return Packet{Salt: salt, Path: new(big.Int), Instruction: ins}
}

// EncodePacket encodes p with the default codec.
func EncodePacket(p Packet) ([]byte, error) { return defaultCodec.EncodePacket(p) }

// DecodePacket decodes with the default codec.
func DecodePacket(data []byte) (Packet, error) { return defaultCodec.DecodePacket(data) }

// EncodePacket returns abi.encode(salt, path, instruction).
func (c Codec) EncodePacket(p Packet) ([]byte, error) {
	path, err := checkUint256("path", p.Path)
	if err != nil {
		return nil, err
	}
	raw, err := c.EncodeRaw(p.Instruction)
	if err != nil {
		return nil, err
	}
	return packetArgs.Pack(p.Salt, path, raw)
}

// DecodePacket parses the output of EncodePacket.
func (c Codec) DecodePacket(data []byte) (Packet, error) {
	vals, err := packetArgs.Unpack(data)
	if err != nil {
		return Packet{}, fmt.Errorf("%w: packet: %v", ErrDecode, err)
	}
	salt, ok := vals[0].([32]byte)
	if !ok {
		return Packet{}, fmt.Errorf("%w: salt is %T", ErrDecode, vals[0])
	}
	path, ok := vals[1].(*big.Int)
	if !ok {
		return Packet{}, fmt.Errorf("%w: path is %T", ErrDecode, vals[1])
	}
	raw, err := rawFromABI(vals[2])
	if err != nil {
		return Packet{}, err
	}
	ins, err := c.DecodeRaw(raw)
	if err != nil {
		return Packet{}, err
	}
	p := Packet{Salt: salt, Path: path, Instruction: ins}
	if err := checkCanonical(data, func() ([]byte, error) { return c.EncodePacket(p) }); err != nil {
		return Packet{}, err
	}
	return p, nil
}
