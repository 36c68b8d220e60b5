package ucs03

import (
	"bytes"
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func sampleOrder(amount int64) TokenOrder {
	return TokenOrder{
		Sender:            common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3").Bytes(),
		Receiver:          []byte("union1qyqszqgpqyqszqgpqyqszqgpqyqszqgp"),
		BaseToken:         common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238").Bytes(),
		BaseAmount:        big.NewInt(amount),
		BaseTokenSymbol:   "USDC",
		BaseTokenName:     "USD Coin",
		BaseTokenDecimals: 6,
		BaseTokenPath:     big.NewInt(0),
		QuoteToken:        []byte("union1usdc"),
		QuoteAmount:       big.NewInt(amount),
	}
}

func randomBytes(r *rand.Rand, max int) []byte {
	b := make([]byte, r.Intn(max))
	r.Read(b)
	return b
}

func randomInstruction(r *rand.Rand, depth int) Instruction {
	kind := r.Intn(3)
	if depth >= 3 && kind == 2 {
		kind = r.Intn(2)
	}
	switch kind {
	case 0:
		return Call{
			SendTransaction:  r.Intn(2) == 1,
			ContractAddress:  randomBytes(r, 40),
			ContractCallData: randomBytes(r, 200),
		}
	case 1:
		amount := new(big.Int).SetBytes(randomBytes(r, 33))
		if amount.BitLen() > 256 {
			amount.Rsh(amount, uint(amount.BitLen()-256))
		}
		return TokenOrder{
			Sender:            randomBytes(r, 33),
			Receiver:          randomBytes(r, 64),
			BaseToken:         randomBytes(r, 33),
			BaseAmount:        amount,
			BaseTokenSymbol:   string(randomBytes(r, 8)),
			BaseTokenName:     string(randomBytes(r, 40)),
			BaseTokenDecimals: uint8(r.Intn(256)),
			BaseTokenPath:     big.NewInt(r.Int63()),
			QuoteToken:        randomBytes(r, 33),
			QuoteAmount:       big.NewInt(r.Int63()),
		}
	default:
		n := r.Intn(4)
		b := Batch{}
		for i := 0; i < n; i++ {
			b.Instructions = append(b.Instructions, randomInstruction(r, depth+1))
		}
		return b
	}
}

func TestRoundTripGenerated(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 300; i++ {
		ins := randomInstruction(r, 0)

		encoded, err := Encode(ins)
		require.NoError(t, err)

		again, err := Encode(ins)
		require.NoError(t, err)
		require.True(t, bytes.Equal(encoded, again), "encoding must be deterministic")

		decoded, err := Decode(encoded)
		require.NoError(t, err)
		require.True(t, Equal(ins, decoded), "round trip %d: %#v != %#v", i, ins, decoded)
	}
}

func TestInstructionHeadLayout(t *testing.T) {
	encoded, err := Encode(Call{SendTransaction: true, ContractAddress: []byte{0xaa}, ContractCallData: []byte{0xbb}})
	require.NoError(t, err)

	// version, opcode, offset of operand
	require.Equal(t, big.NewInt(int64(VersionCall)), new(big.Int).SetBytes(encoded[0:32]))
	require.Equal(t, big.NewInt(int64(OpCall)), new(big.Int).SetBytes(encoded[32:64]))
	require.Equal(t, big.NewInt(0x60), new(big.Int).SetBytes(encoded[64:96]))

	operandLen := new(big.Int).SetBytes(encoded[96:128]).Int64()
	operand := encoded[128 : 128+operandLen]
	// bool, offset(addr), offset(calldata), len(addr), addr, len(calldata), calldata
	require.Equal(t, int64(7*32), operandLen)
	require.Equal(t, byte(1), operand[31])
	require.Equal(t, byte(0x60), operand[63])
	require.Equal(t, byte(0xa0), operand[95])
	require.Equal(t, byte(1), operand[127])
	require.Equal(t, byte(0xaa), operand[128])
}

func TestTokenOrderHeader(t *testing.T) {
	encoded, err := Encode(sampleOrder(1000000))
	require.NoError(t, err)
	require.Equal(t, byte(VersionTokenOrder), encoded[31])
	require.Equal(t, byte(OpTokenOrder), encoded[63])
}

func TestBatchOfTwoOrders(t *testing.T) {
	first := sampleOrder(1000000)
	second := sampleOrder(42)
	second.BaseTokenSymbol = "WETH"
	second.BaseTokenDecimals = 18

	encoded, err := Encode(Batch{Instructions: []Instruction{first, second}})
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	batch, ok := decoded.(Batch)
	require.True(t, ok)
	require.Len(t, batch.Instructions, 2)

	got0 := batch.Instructions[0].(TokenOrder)
	got1 := batch.Instructions[1].(TokenOrder)
	require.True(t, Equal(first, got0))
	require.True(t, Equal(second, got1))
	require.Equal(t, "USDC", got0.BaseTokenSymbol)
	require.Equal(t, uint8(18), got1.BaseTokenDecimals)
	require.Equal(t, int64(42), got1.BaseAmount.Int64())
}

func TestPointerVariants(t *testing.T) {
	order := sampleOrder(5)
	fromPtr, err := Encode(&Batch{Instructions: []Instruction{&order}})
	require.NoError(t, err)
	fromVal, err := Encode(Batch{Instructions: []Instruction{order}})
	require.NoError(t, err)
	require.Equal(t, fromVal, fromPtr)

	var nilCall *Call
	_, err = Encode(nilCall)
	require.ErrorIs(t, err, ErrNilInstruction)
	_, err = Encode(Batch{Instructions: []Instruction{nil}})
	require.ErrorIs(t, err, ErrNilInstruction)
}

func TestUnknownVariantRejected(t *testing.T) {
	known := map[[2]uint8]bool{
		{VersionCall, OpCall}:             true,
		{VersionBatch, OpBatch}:           true,
		{VersionTokenOrder, OpTokenOrder}: true,
	}
	operand, err := callArgs.Pack(false, []byte{}, []byte{})
	require.NoError(t, err)

	for version := 0; version < 4; version++ {
		for opcode := 0; opcode < 8; opcode++ {
			if known[[2]uint8{uint8(version), uint8(opcode)}] {
				continue
			}
			data, err := instructionArgs.Pack(uint8(version), uint8(opcode), operand)
			require.NoError(t, err)

			_, err = Decode(data)
			require.ErrorIs(t, err, ErrUnknownInstructionVariant)
			var uv *UnknownVariantError
			require.True(t, errors.As(err, &uv))
			require.Equal(t, uint8(version), uv.Version)
			require.Equal(t, uint8(opcode), uv.Opcode)
		}
	}
}

func TestUnknownVariantInsideBatch(t *testing.T) {
	operand, err := batchArgs.Pack([]RawInstruction{{Version: 9, Opcode: OpTokenOrder, Operand: []byte{}}})
	require.NoError(t, err)
	data, err := instructionArgs.Pack(VersionBatch, OpBatch, operand)
	require.NoError(t, err)

	_, err = Decode(data)
	require.ErrorIs(t, err, ErrUnknownInstructionVariant)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode(nil)
	require.ErrorIs(t, err, ErrDecode)

	_, err = Decode([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrDecode)

	data, err := instructionArgs.Pack(VersionTokenOrder, OpTokenOrder, []byte{0xde, 0xad})
	require.NoError(t, err)
	_, err = Decode(data)
	require.ErrorIs(t, err, ErrDecode)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	data, err := Encode(sampleOrder(7))
	require.NoError(t, err)
	_, err = Decode(data)
	require.NoError(t, err)

	_, err = Decode(append(append([]byte{}, data...), make([]byte, 32)...))
	require.ErrorIs(t, err, ErrDecode)
	require.ErrorContains(t, err, "32 trailing bytes")

	_, err = Decode(append(append([]byte{}, data...), 0x01))
	require.ErrorIs(t, err, ErrDecode)

	// an operand with trailing bytes changes the outer encoding too
	raw, err := defaultCodec.EncodeRaw(sampleOrder(7))
	require.NoError(t, err)
	padded, err := instructionArgs.Pack(raw.Version, raw.Opcode, append(raw.Operand, make([]byte, 32)...))
	require.NoError(t, err)
	_, err = Decode(padded)
	require.ErrorIs(t, err, ErrDecode)

	packet, err := EncodePacket(NewPacket([32]byte{1}, sampleOrder(7)))
	require.NoError(t, err)
	_, err = DecodePacket(append(packet, make([]byte, 32)...))
	require.ErrorIs(t, err, ErrDecode)
}

func TestAmountRange(t *testing.T) {
	neg := sampleOrder(1)
	neg.BaseAmount = big.NewInt(-1)
	_, err := Encode(neg)
	require.ErrorIs(t, err, ErrAmountOutOfRange)

	huge := sampleOrder(1)
	huge.QuoteAmount = new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = Encode(huge)
	require.ErrorIs(t, err, ErrAmountOutOfRange)

	max := sampleOrder(1)
	max.BaseAmount = new(big.Int).Set(maxUint256)
	encoded, err := Encode(max)
	require.NoError(t, err)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, 0, decoded.(TokenOrder).BaseAmount.Cmp(maxUint256))

	zero := sampleOrder(1)
	zero.BaseAmount = nil
	encoded, err = Encode(zero)
	require.NoError(t, err)
	decoded, err = Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, 0, decoded.(TokenOrder).BaseAmount.Sign())
}

func nested(depth int) Instruction {
	var ins Instruction = sampleOrder(1)
	for i := 0; i < depth; i++ {
		ins = Batch{Instructions: []Instruction{ins}}
	}
	return ins
}

func TestMaxDepth(t *testing.T) {
	shallow := Codec{MaxDepth: 3}

	_, err := shallow.Encode(nested(3))
	require.NoError(t, err)

	_, err = shallow.Encode(nested(4))
	require.ErrorIs(t, err, ErrMaxDepthExceeded)

	deep := Codec{MaxDepth: 100}
	encoded, err := deep.Encode(nested(50))
	require.NoError(t, err)

	decoded, err := deep.Decode(encoded)
	require.NoError(t, err)
	require.True(t, Equal(nested(50), decoded))

	_, err = shallow.Decode(encoded)
	require.ErrorIs(t, err, ErrMaxDepthExceeded)

	_, err = Codec{}.Encode(nested(DefaultMaxDepth + 1))
	require.ErrorIs(t, err, ErrMaxDepthExceeded)
}

func TestEmptyBatch(t *testing.T) {
	encoded, err := Encode(Batch{})
	require.NoError(t, err)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.True(t, Equal(Batch{}, decoded))
	require.Empty(t, decoded.(Batch).Instructions)
}

func TestWalk(t *testing.T) {
	tree := Batch{Instructions: []Instruction{
		sampleOrder(1),
		Batch{Instructions: []Instruction{sampleOrder(2), Call{}}},
		sampleOrder(3),
	}}
	var amounts []int64
	Walk(tree, func(ins Instruction) bool {
		if o, ok := ins.(TokenOrder); ok {
			amounts = append(amounts, o.BaseAmount.Int64())
		}
		return true
	})
	require.Equal(t, []int64{1, 2, 3}, amounts)

	visited := 0
	Walk(tree, func(ins Instruction) bool {
		visited++
		_, isBatch := ins.(Batch)
		return !isBatch || visited == 1
	})
	// root, order 1, inner batch (children skipped), order 3
	require.Equal(t, 4, visited)
}

func TestEqual(t *testing.T) {
	require.True(t, Equal(Call{}, Call{ContractAddress: []byte{}}))
	require.False(t, Equal(Call{}, Call{SendTransaction: true}))
	require.False(t, Equal(Call{}, sampleOrder(1)))
	require.False(t, Equal(sampleOrder(1), sampleOrder(2)))
	require.False(t, Equal(Batch{Instructions: []Instruction{Call{}}}, Batch{}))
	require.True(t, Equal(nil, nil))
	require.False(t, Equal(nil, Call{}))
}
