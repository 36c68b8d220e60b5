package chainsol

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"zkgm/client"
)

// PDA seeds
var (
	SeedChannel = []byte("channel")
	SeedVault   = []byte("vault")
)

func discriminator(name string) [8]byte {
	hash := sha256.Sum256([]byte("global:" + name))
	var disc [8]byte
	copy(disc[:], hash[:8])
	return disc
}

// SendDisc is the anchor discriminator of the send instruction.
var SendDisc = discriminator("send")

// SendArgs - borsh layout of the send instruction arguments
type SendArgs struct {
	ChannelID        uint32
	TimeoutHeight    uint64
	TimeoutTimestamp uint64
	Salt             [32]byte
	Version          uint8
	Opcode           uint8
	Operand          []byte
}

// DeriveChannelPDA derives the per channel state account.
func DeriveChannelPDA(programID solana.PublicKey, channelID uint32) (solana.PublicKey, uint8, error) {
	id := make([]byte, 4)
	binary.LittleEndian.PutUint32(id, channelID)
	return solana.FindProgramAddress([][]byte{SeedChannel, id}, programID)
}

// DeriveVaultPDA derives the program's escrow account.
func DeriveVaultPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{SeedVault}, programID)
}

// EncodeSendData returns discriminator || borsh(args).
func EncodeSendData(args SendArgs) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(SendDisc[:])
	if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
		return nil, fmt.Errorf("failed to encode send args: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSendData is the inverse of EncodeSendData.
func DecodeSendData(data []byte) (SendArgs, error) {
	var args SendArgs
	if len(data) < 8 || !bytes.Equal(data[:8], SendDisc[:]) {
		return args, fmt.Errorf("not a send instruction")
	}
	if err := bin.NewBorshDecoder(data[8:]).Decode(&args); err != nil {
		return args, fmt.Errorf("failed to decode send args: %w", err)
	}
	return args, nil
}

// BuildSendInstruction builds the send instruction for payer.
func BuildSendInstruction(programID, payer solana.PublicKey, req *client.Request, payload client.Payload) (solana.Instruction, error) {
	channelPDA, _, err := DeriveChannelPDA(programID, req.Channel.SourceChannelID)
	if err != nil {
		return nil, err
	}
	vaultPDA, _, err := DeriveVaultPDA(programID)
	if err != nil {
		return nil, err
	}
	data, err := EncodeSendData(SendArgs{
		ChannelID:        req.Channel.SourceChannelID,
		TimeoutTimestamp: req.TimeoutTimestamp,
		Salt:             payload.Salt,
		Version:          payload.Instruction.Version,
		Opcode:           payload.Instruction.Opcode,
		Operand:          payload.Instruction.Operand,
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		programID,
		solana.AccountMetaSlice{
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(channelPDA).WRITE(),
			solana.Meta(vaultPDA).WRITE(),
			solana.Meta(solana.SystemProgramID),
		},
		data,
	), nil
}
