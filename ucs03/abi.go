package ucs03

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// InstructionComponents describes the on-chain Instruction struct.
var InstructionComponents = []abi.ArgumentMarshaling{
	{Name: "version", Type: "uint8"},
	{Name: "opcode", Type: "uint8"},
	{Name: "operand", Type: "bytes"},
}

var (
	boolT    = mustType("bool")
	uint8T   = mustType("uint8")
	uint256T = mustType("uint256")
	bytesT   = mustType("bytes")
	bytes32T = mustType("bytes32")
	stringT  = mustType("string")

	// InstructionTupleType is (uint8 version, uint8 opcode, bytes operand).
	InstructionTupleType = mustType("tuple", InstructionComponents...)
	instructionArrayT    = mustType("tuple[]", InstructionComponents...)
)

var (
	instructionArgs = abi.Arguments{
		{Name: "version", Type: uint8T},
		{Name: "opcode", Type: uint8T},
		{Name: "operand", Type: bytesT},
	}
	callArgs = abi.Arguments{
		{Name: "sendTransaction", Type: boolT},
		{Name: "contractAddress", Type: bytesT},
		{Name: "contractCalldata", Type: bytesT},
	}
	batchArgs = abi.Arguments{
		{Name: "instructions", Type: instructionArrayT},
	}
	tokenOrderArgs = abi.Arguments{
		{Name: "sender", Type: bytesT},
		{Name: "receiver", Type: bytesT},
		{Name: "baseToken", Type: bytesT},
		{Name: "baseAmount", Type: uint256T},
		{Name: "baseTokenSymbol", Type: stringT},
		{Name: "baseTokenName", Type: stringT},
		{Name: "baseTokenDecimals", Type: uint8T},
		{Name: "baseTokenPath", Type: uint256T},
		{Name: "quoteToken", Type: bytesT},
		{Name: "quoteAmount", Type: uint256T},
	}
	packetArgs = abi.Arguments{
		{Name: "salt", Type: bytes32T},
		{Name: "path", Type: uint256T},
		{Name: "instruction", Type: InstructionTupleType},
	}
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func mustType(t string, components ...abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(fmt.Sprintf("ucs03: bad abi type %s: %v", t, err))
	}
	return typ
}

// checkUint256 rejects values the contracts cannot represent. Nil is zero.
func checkUint256(name string, v *big.Int) (*big.Int, error) {
	if v == nil {
		return new(big.Int), nil
	}
	if v.Sign() < 0 || v.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("%w: %s = %s", ErrAmountOutOfRange, name, v.String())
	}
	return v, nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// rawFromABI reads a (version, opcode, operand) tuple produced by abi.Unpack.
// Unpack builds anonymous structs, so the fields are read by name.
func rawFromABI(v interface{}) (RawInstruction, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return RawInstruction{}, fmt.Errorf("%w: instruction is %T", ErrDecode, v)
	}
	version, ok1 := fieldAs[uint8](rv, "Version")
	opcode, ok2 := fieldAs[uint8](rv, "Opcode")
	operand, ok3 := fieldAs[[]byte](rv, "Operand")
	if !ok1 || !ok2 || !ok3 {
		return RawInstruction{}, fmt.Errorf("%w: unexpected instruction tuple %T", ErrDecode, v)
	}
	return RawInstruction{Version: version, Opcode: opcode, Operand: operand}, nil
}

func fieldAs[T any](rv reflect.Value, name string) (T, bool) {
	var zero T
	f := rv.FieldByName(name)
	if !f.IsValid() || !f.CanInterface() {
		return zero, false
	}
	out, ok := f.Interface().(T)
	return out, ok
}
