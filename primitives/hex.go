package primitives

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hex is a validated 0x-prefixed, even-length hex string.
type Hex string

// ParseHex validates s and returns it as Hex. Upper-case digits are
// normalised to lower case.
func ParseHex(s string) (Hex, error) {
	if _, err := hexutil.Decode(s); err != nil {
		return "", fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return Hex("0x" + strings.ToLower(s[2:])), nil
}

// MustParseHex is ParseHex for constants; it panics on invalid input.
func MustParseHex(s string) Hex {
	h, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return h
}

// HexFromBytes encodes b.
func HexFromBytes(b []byte) Hex {
	return Hex(hexutil.Encode(b))
}

// Bytes decodes the hex string. A zero Hex decodes to an empty slice.
func (h Hex) Bytes() []byte {
	if h == "" {
		return []byte{}
	}
	b, err := hexutil.Decode(string(h))
	if err != nil {
		return []byte{}
	}
	return b
}

func (h Hex) String() string { return string(h) }

// Len is the decoded byte length.
func (h Hex) Len() int {
	if len(h) < 2 {
		return 0
	}
	return (len(h) - 2) / 2
}

// UnmarshalJSON validates the string on decode.
func (h *Hex) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// LeftPad32 left-pads b with zeros into a 32-byte array.
func LeftPad32(b []byte) ([32]byte, error) {
	var out [32]byte
	if len(b) > 32 {
		return out, fmt.Errorf("value is %d bytes, exceeds 32", len(b))
	}
	copy(out[32-len(b):], b)
	return out, nil
}
