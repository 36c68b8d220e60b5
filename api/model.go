package api

import (
	"zkgm/primitives"
	"zkgm/ucs03"
)

// ErrorResponse - Standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// InstructionResponse - ABI encoded instruction
type InstructionResponse struct {
	Instruction primitives.Hex `json:"instruction"`
	Version     uint8          `json:"version"`
	Opcode      uint8          `json:"opcode"`
}

// DecodeRequest - hex to decode, instruction or packet
type DecodeRequest struct {
	Data primitives.Hex `json:"data"`
}

// PacketRequest - packet to encode; Salt is generated for Family when empty
type PacketRequest struct {
	Family      string         `json:"family"`
	Salt        primitives.Hex `json:"salt,omitempty"`
	Path        string         `json:"path,omitempty"`
	Instruction ucs03.Document `json:"instruction"`
}

// PacketResponse - an encoded packet alongside its parts
type PacketResponse struct {
	Packet      primitives.Hex `json:"packet,omitempty"`
	Salt        primitives.Hex `json:"salt"`
	Path        string         `json:"path"`
	Instruction ucs03.Document `json:"instruction"`
	// SaltVerified reports whether Salt carries a valid checksum, padded or not.
	SaltVerified bool `json:"salt_verified"`
}

// SaltResponse - a fresh checksummed salt
type SaltResponse struct {
	Family string         `json:"family"`
	Salt   primitives.Hex `json:"salt"`
	// Bytes32 is the salt as it appears in the packet envelope.
	Bytes32 primitives.Hex `json:"bytes32"`
}

// BalanceResponse - one token balance; Token is "0x" for the native token
type BalanceResponse struct {
	Token  primitives.Hex `json:"token"`
	Amount string         `json:"amount"`
}
