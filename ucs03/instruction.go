package ucs03

import (
	"bytes"
	"math/big"
)

// Opcodes and versions understood by the on-chain UCS03 contracts.
const (
	OpCall       uint8 = 0
	OpBatch      uint8 = 2
	OpTokenOrder uint8 = 3

	VersionCall       uint8 = 0
	VersionBatch      uint8 = 0
	VersionTokenOrder uint8 = 1
)

// Instruction is one node of the recursive message tree. The set of
// implementations is closed: Call, Batch and TokenOrder.
type Instruction interface {
	Version() uint8
	Opcode() uint8
	isInstruction()
}

// Call invokes a contract on the destination chain.
type Call struct {
	SendTransaction  bool
	ContractAddress  []byte
	ContractCallData []byte
}

func (Call) Version() uint8 { return VersionCall }
func (Call) Opcode() uint8  { return OpCall }
func (Call) isInstruction() {}

// Batch executes its instructions in order.
type Batch struct {
	Instructions []Instruction
}

func (Batch) Version() uint8 { return VersionBatch }
func (Batch) Opcode() uint8  { return OpBatch }
func (Batch) isInstruction() {}

// TokenOrder moves BaseAmount of BaseToken from Sender and asks for
// QuoteAmount of QuoteToken to be delivered to Receiver.
type TokenOrder struct {
	Sender            []byte
	Receiver          []byte
	BaseToken         []byte
	BaseAmount        *big.Int
	BaseTokenSymbol   string
	BaseTokenName     string
	BaseTokenDecimals uint8
	BaseTokenPath     *big.Int
	QuoteToken        []byte
	QuoteAmount       *big.Int
}

func (TokenOrder) Version() uint8 { return VersionTokenOrder }
func (TokenOrder) Opcode() uint8  { return OpTokenOrder }
func (TokenOrder) isInstruction() {}

// RawInstruction is the (version, opcode, operand) triple as it sits on chain.
type RawInstruction struct {
	Version uint8
	Opcode  uint8
	Operand []byte
}

func (r RawInstruction) isBatch() bool {
	return r.Version == VersionBatch && r.Opcode == OpBatch
}

// value returns a dereferenced copy of ins, or nil for a nil pointer.
func value(ins Instruction) Instruction {
	switch v := ins.(type) {
	case *Call:
		if v == nil {
			return nil
		}
		return *v
	case *Batch:
		if v == nil {
			return nil
		}
		return *v
	case *TokenOrder:
		if v == nil {
			return nil
		}
		return *v
	}
	return ins
}

// Walk visits ins and every nested instruction in pre-order. Returning
// false from fn skips the children of the current node.
func Walk(ins Instruction, fn func(Instruction) bool) {
	stack := []Instruction{ins}
	for len(stack) > 0 {
		cur := value(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		if cur == nil {
			continue
		}
		if !fn(cur) {
			continue
		}
		if b, ok := cur.(Batch); ok {
			for i := len(b.Instructions) - 1; i >= 0; i-- {
				stack = append(stack, b.Instructions[i])
			}
		}
	}
}

// Equal compares two instruction trees by value. Nil amounts compare equal
// to zero and nil byte slices to empty ones, matching the encoding.
func Equal(a, b Instruction) bool {
	type pair struct{ a, b Instruction }
	stack := []pair{{a, b}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := value(p.a), value(p.b)
		if x == nil || y == nil {
			if x != nil || y != nil {
				return false
			}
			continue
		}
		switch xv := x.(type) {
		case Call:
			yv, ok := y.(Call)
			if !ok || xv.SendTransaction != yv.SendTransaction ||
				!bytes.Equal(xv.ContractAddress, yv.ContractAddress) ||
				!bytes.Equal(xv.ContractCallData, yv.ContractCallData) {
				return false
			}
		case TokenOrder:
			yv, ok := y.(TokenOrder)
			if !ok || !tokenOrderEqual(xv, yv) {
				return false
			}
		case Batch:
			yv, ok := y.(Batch)
			if !ok || len(xv.Instructions) != len(yv.Instructions) {
				return false
			}
			for i := range xv.Instructions {
				stack = append(stack, pair{xv.Instructions[i], yv.Instructions[i]})
			}
		default:
			return false
		}
	}
	return true
}

func tokenOrderEqual(a, b TokenOrder) bool {
	return bytes.Equal(a.Sender, b.Sender) &&
		bytes.Equal(a.Receiver, b.Receiver) &&
		bytes.Equal(a.BaseToken, b.BaseToken) &&
		amountOrZero(a.BaseAmount).Cmp(amountOrZero(b.BaseAmount)) == 0 &&
		a.BaseTokenSymbol == b.BaseTokenSymbol &&
		a.BaseTokenName == b.BaseTokenName &&
		a.BaseTokenDecimals == b.BaseTokenDecimals &&
		amountOrZero(a.BaseTokenPath).Cmp(amountOrZero(b.BaseTokenPath)) == 0 &&
		bytes.Equal(a.QuoteToken, b.QuoteToken) &&
		amountOrZero(a.QuoteAmount).Cmp(amountOrZero(b.QuoteAmount)) == 0
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
