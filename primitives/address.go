package primitives

import (
	"fmt"

	"github.com/cosmos/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"zkgm/chains"
)

const bech32Limit = 1023

// Bech32Encode converts 8-bit data to 5-bit groups and encodes it with hrp.
func Bech32Encode(hrp string, data []byte) (string, error) {
	converted, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("converting bits: %w", err)
	}
	return bech32.Encode(hrp, converted)
}

// Bech32Decode returns the human readable part and the 8-bit payload.
func Bech32Decode(s string) (string, []byte, error) {
	hrp, data, err := bech32.Decode(s, bech32Limit)
	if err != nil {
		return "", nil, fmt.Errorf("decoding bech32 %q: %w", s, err)
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, fmt.Errorf("converting bits: %w", err)
	}
	return hrp, converted, nil
}

// AddressBytes decodes an account address in the family's native format
// into the raw bytes carried inside instructions.
func AddressBytes(family chains.Family, addr string) ([]byte, error) {
	switch family {
	case chains.FamilyEVM:
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid evm address %q", addr)
		}
		return common.HexToAddress(addr).Bytes(), nil
	case chains.FamilyCosmos:
		_, b, err := Bech32Decode(addr)
		return b, err
	case chains.FamilyAptos, chains.FamilySui:
		h, err := ParseHex(addr)
		if err != nil {
			return nil, err
		}
		if h.Len() > 32 {
			return nil, fmt.Errorf("move address %q longer than 32 bytes", addr)
		}
		padded, _ := LeftPad32(h.Bytes())
		return padded[:], nil
	case chains.FamilySVM:
		pk, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid svm address %q: %w", addr, err)
		}
		return pk.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported family %q", family)
	}
}

// FormatAddress is the inverse of AddressBytes. hrp is only used for
// cosmos addresses.
func FormatAddress(family chains.Family, b []byte, hrp string) (string, error) {
	switch family {
	case chains.FamilyEVM:
		if len(b) != common.AddressLength {
			return "", fmt.Errorf("evm address must be %d bytes, got %d", common.AddressLength, len(b))
		}
		return common.BytesToAddress(b).Hex(), nil
	case chains.FamilyCosmos:
		if hrp == "" {
			return "", fmt.Errorf("bech32 prefix required")
		}
		return Bech32Encode(hrp, b)
	case chains.FamilyAptos, chains.FamilySui:
		padded, err := LeftPad32(b)
		if err != nil {
			return "", err
		}
		return HexFromBytes(padded[:]).String(), nil
	case chains.FamilySVM:
		if len(b) != solana.PublicKeyLength {
			return "", fmt.Errorf("svm address must be %d bytes, got %d", solana.PublicKeyLength, len(b))
		}
		return solana.PublicKeyFromBytes(b).String(), nil
	default:
		return "", fmt.Errorf("unsupported family %q", family)
	}
}
