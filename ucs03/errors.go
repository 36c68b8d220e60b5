package ucs03

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
)

// ModuleName is the error codespace of this package.
const ModuleName = "ucs03"

var (
	ErrUnknownInstructionVariant = errorsmod.Register(ModuleName, 2, "unknown instruction variant")
	ErrDecode                    = errorsmod.Register(ModuleName, 3, "malformed instruction encoding")
	ErrAmountOutOfRange          = errorsmod.Register(ModuleName, 4, "amount outside uint256 range")
	ErrMaxDepthExceeded          = errorsmod.Register(ModuleName, 5, "batch nesting exceeds maximum depth")
	ErrNilInstruction            = errorsmod.Register(ModuleName, 6, "nil instruction")
)

// UnknownVariantError carries the opcode/version pair that has no decoder.
type UnknownVariantError struct {
	Version uint8
	Opcode  uint8
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("%s: version %d opcode %d", ErrUnknownInstructionVariant.Error(), e.Version, e.Opcode)
}

func (e *UnknownVariantError) Unwrap() error {
	return ErrUnknownInstructionVariant
}
