package ucs03

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"
)

// DefaultMaxDepth bounds how many Batch levels may nest.
const DefaultMaxDepth = 32

// Codec encodes and decodes instructions. The zero value uses DefaultMaxDepth.
type Codec struct {
	// MaxDepth is the maximum number of nested Batch levels, the outermost
	// batch counting as one.
	MaxDepth int
}

var defaultCodec = Codec{MaxDepth: DefaultMaxDepth}

// Encode encodes ins with the default codec.
func Encode(ins Instruction) ([]byte, error) { return defaultCodec.Encode(ins) }

// Decode decodes data with the default codec.
func Decode(data []byte) (Instruction, error) { return defaultCodec.Decode(data) }

func (c Codec) maxDepth() int {
	if c.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return c.MaxDepth
}

// Encode returns abi.encode(version, opcode, operand) for ins.
func (c Codec) Encode(ins Instruction) ([]byte, error) {
	raw, err := c.EncodeRaw(ins)
	if err != nil {
		return nil, err
	}
	return raw.Bytes()
}

// Bytes returns abi.encode(version, opcode, operand).
func (r RawInstruction) Bytes() ([]byte, error) {
	return instructionArgs.Pack(r.Version, r.Opcode, nonNil(r.Operand))
}

// Decode parses the output of Encode.
func (c Codec) Decode(data []byte) (Instruction, error) {
	vals, err := instructionArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	raw := RawInstruction{}
	var ok bool
	if raw.Version, ok = vals[0].(uint8); !ok {
		return nil, fmt.Errorf("%w: version is %T", ErrDecode, vals[0])
	}
	if raw.Opcode, ok = vals[1].(uint8); !ok {
		return nil, fmt.Errorf("%w: opcode is %T", ErrDecode, vals[1])
	}
	if raw.Operand, ok = vals[2].([]byte); !ok {
		return nil, fmt.Errorf("%w: operand is %T", ErrDecode, vals[2])
	}
	ins, err := c.DecodeRaw(raw)
	if err != nil {
		return nil, err
	}
	if err := checkCanonical(data, func() ([]byte, error) { return c.Encode(ins) }); err != nil {
		return nil, err
	}
	return ins, nil
}

// checkCanonical rejects input that decodes but is not what the encoder
// produces for the result, such as trailing bytes or dirty padding.
func checkCanonical(data []byte, encode func() ([]byte, error)) error {
	want, err := encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(data) > len(want) && bytes.Equal(data[:len(want)], want) {
		return fmt.Errorf("%w: %d trailing bytes", ErrDecode, len(data)-len(want))
	}
	if !bytes.Equal(data, want) {
		return fmt.Errorf("%w: non-canonical encoding", ErrDecode)
	}
	return nil
}

type encodeFrame struct {
	batch Batch
	next  int
	parts []RawInstruction
}

// EncodeRaw encodes the operand of ins. Nested batches are walked with an
// explicit stack so deep trees do not grow the goroutine stack.
func (c Codec) EncodeRaw(ins Instruction) (RawInstruction, error) {
	ins = value(ins)
	if ins == nil {
		return RawInstruction{}, ErrNilInstruction
	}
	root, ok := ins.(Batch)
	if !ok {
		return encodeLeaf(ins)
	}

	stack := []*encodeFrame{{batch: root}}
	for {
		top := stack[len(stack)-1]
		if top.next < len(top.batch.Instructions) {
			child := value(top.batch.Instructions[top.next])
			top.next++
			if child == nil {
				return RawInstruction{}, ErrNilInstruction
			}
			if b, isBatch := child.(Batch); isBatch {
				if len(stack)+1 > c.maxDepth() {
					return RawInstruction{}, fmt.Errorf("%w: limit %d", ErrMaxDepthExceeded, c.maxDepth())
				}
				stack = append(stack, &encodeFrame{batch: b})
				continue
			}
			raw, err := encodeLeaf(child)
			if err != nil {
				return RawInstruction{}, err
			}
			top.parts = append(top.parts, raw)
			continue
		}

		parts := top.parts
		if parts == nil {
			parts = []RawInstruction{}
		}
		operand, err := batchArgs.Pack(parts)
		if err != nil {
			return RawInstruction{}, fmt.Errorf("encoding batch: %w", err)
		}
		done := RawInstruction{Version: VersionBatch, Opcode: OpBatch, Operand: operand}
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return done, nil
		}
		parent := stack[len(stack)-1]
		parent.parts = append(parent.parts, done)
	}
}

func encodeLeaf(ins Instruction) (RawInstruction, error) {
	var (
		operand []byte
		err     error
	)
	switch v := ins.(type) {
	case Call:
		operand, err = callArgs.Pack(v.SendTransaction, nonNil(v.ContractAddress), nonNil(v.ContractCallData))
	case TokenOrder:
		operand, err = packTokenOrder(v)
	default:
		return RawInstruction{}, fmt.Errorf("%w: %T", ErrUnknownInstructionVariant, ins)
	}
	if err != nil {
		return RawInstruction{}, err
	}
	return RawInstruction{Version: ins.Version(), Opcode: ins.Opcode(), Operand: operand}, nil
}

func packTokenOrder(o TokenOrder) ([]byte, error) {
	baseAmount, err := checkUint256("baseAmount", o.BaseAmount)
	if err != nil {
		return nil, err
	}
	path, err := checkUint256("baseTokenPath", o.BaseTokenPath)
	if err != nil {
		return nil, err
	}
	quoteAmount, err := checkUint256("quoteAmount", o.QuoteAmount)
	if err != nil {
		return nil, err
	}
	return tokenOrderArgs.Pack(
		nonNil(o.Sender),
		nonNil(o.Receiver),
		nonNil(o.BaseToken),
		baseAmount,
		o.BaseTokenSymbol,
		o.BaseTokenName,
		o.BaseTokenDecimals,
		path,
		nonNil(o.QuoteToken),
		quoteAmount,
	)
}

type decodeFrame struct {
	children []RawInstruction
	next     int
	out      []Instruction
}

// DecodeRaw decodes a (version, opcode, operand) triple.
func (c Codec) DecodeRaw(raw RawInstruction) (Instruction, error) {
	if !raw.isBatch() {
		return decodeLeaf(raw)
	}
	children, err := unpackBatch(raw.Operand)
	if err != nil {
		return nil, err
	}

	stack := []*decodeFrame{{children: children}}
	for {
		top := stack[len(stack)-1]
		if top.next < len(top.children) {
			child := top.children[top.next]
			top.next++
			if child.isBatch() {
				if len(stack)+1 > c.maxDepth() {
					return nil, fmt.Errorf("%w: limit %d", ErrMaxDepthExceeded, c.maxDepth())
				}
				grand, err := unpackBatch(child.Operand)
				if err != nil {
					return nil, err
				}
				stack = append(stack, &decodeFrame{children: grand})
				continue
			}
			leaf, err := decodeLeaf(child)
			if err != nil {
				return nil, err
			}
			top.out = append(top.out, leaf)
			continue
		}

		done := Batch{Instructions: top.out}
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return done, nil
		}
		parent := stack[len(stack)-1]
		parent.out = append(parent.out, done)
	}
}

func unpackBatch(operand []byte) ([]RawInstruction, error) {
	vals, err := batchArgs.Unpack(operand)
	if err != nil {
		return nil, fmt.Errorf("%w: batch: %v", ErrDecode, err)
	}
	list := reflect.ValueOf(vals[0])
	if list.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%w: batch operand is %T", ErrDecode, vals[0])
	}
	out := make([]RawInstruction, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		raw, err := rawFromABI(list.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func decodeLeaf(raw RawInstruction) (Instruction, error) {
	switch {
	case raw.Version == VersionCall && raw.Opcode == OpCall:
		return unpackCall(raw.Operand)
	case raw.Version == VersionTokenOrder && raw.Opcode == OpTokenOrder:
		return unpackTokenOrder(raw.Operand)
	default:
		return nil, &UnknownVariantError{Version: raw.Version, Opcode: raw.Opcode}
	}
}

func unpackCall(operand []byte) (Instruction, error) {
	vals, err := callArgs.Unpack(operand)
	if err != nil {
		return nil, fmt.Errorf("%w: call: %v", ErrDecode, err)
	}
	send, ok1 := vals[0].(bool)
	addr, ok2 := vals[1].([]byte)
	data, ok3 := vals[2].([]byte)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("%w: call fields", ErrDecode)
	}
	return Call{SendTransaction: send, ContractAddress: addr, ContractCallData: data}, nil
}

func unpackTokenOrder(operand []byte) (Instruction, error) {
	vals, err := tokenOrderArgs.Unpack(operand)
	if err != nil {
		return nil, fmt.Errorf("%w: token order: %v", ErrDecode, err)
	}
	var (
		o  TokenOrder
		ok = true
	)
	assign := func(dst interface{}, v interface{}) {
		switch d := dst.(type) {
		case *[]byte:
			b, good := v.([]byte)
			*d, ok = b, ok && good
		case **big.Int:
			n, good := v.(*big.Int)
			*d, ok = n, ok && good
		case *string:
			s, good := v.(string)
			*d, ok = s, ok && good
		case *uint8:
			u, good := v.(uint8)
			*d, ok = u, ok && good
		}
	}
	assign(&o.Sender, vals[0])
	assign(&o.Receiver, vals[1])
	assign(&o.BaseToken, vals[2])
	assign(&o.BaseAmount, vals[3])
	assign(&o.BaseTokenSymbol, vals[4])
	assign(&o.BaseTokenName, vals[5])
	assign(&o.BaseTokenDecimals, vals[6])
	assign(&o.BaseTokenPath, vals[7])
	assign(&o.QuoteToken, vals[8])
	assign(&o.QuoteAmount, vals[9])
	if !ok {
		return nil, fmt.Errorf("%w: token order fields", ErrDecode)
	}
	return o, nil
}
