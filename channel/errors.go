package channel

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"zkgm/chains"
)

// ModuleName is the error codespace of this package.
const ModuleName = "channel"

var (
	ErrChannelValidation  = errorsmod.Register(ModuleName, 2, "channel validation failed")
	ErrNoChannel          = errorsmod.Register(ModuleName, 3, "no confirmed channel between chains")
	ErrAmbiguousChannel   = errorsmod.Register(ModuleName, 4, "more than one channel between chains")
	ErrMissingLeg         = errorsmod.Register(ModuleName, 5, "channel is missing a required leg")
	ErrSourceUnavailable  = errorsmod.Register(ModuleName, 6, "channel source unavailable")
	ErrInvalidChannelFile = errorsmod.Register(ModuleName, 7, "invalid channel registry file")
)

// ValidationError reports why no single complete channel connects Source to
// Destination. It matches both ErrChannelValidation and its Cause.
type ValidationError struct {
	Source      chains.UniversalChainID
	Destination chains.UniversalChainID
	Cause       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s -> %s: %v", ErrChannelValidation.Error(), e.Source, e.Destination, e.Cause)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrChannelValidation, e.Cause}
}
