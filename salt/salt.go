package salt

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/crypto"

	"zkgm/chains"
	"zkgm/primitives"
)

// ModuleName is the error codespace of this package.
const ModuleName = "salt"

var (
	ErrEntropyUnavailable = errorsmod.Register(ModuleName, 2, "secure entropy source unavailable")
	ErrInvalidSalt        = errorsmod.Register(ModuleName, 3, "invalid salt")
)

const (
	// Length is the salt size for every family except Move-style chains.
	Length = 32
	// MoveLength is the salt size for Move-style chains.
	MoveLength = 14

	checksumLength = 4
)

var domain = []byte("zkgm-salt/v1")

// Salt is a random value whose last four bytes are a keccak checksum of
// the rest.
type Salt []byte

// Generator draws salts from Entropy. A nil Entropy means crypto/rand.
type Generator struct {
	Entropy io.Reader
}

// Generate returns a salt for family using crypto/rand.
func Generate(family chains.Family) (Salt, error) {
	return Generator{}.Generate(family)
}

// LengthFor returns the salt length used by family.
func LengthFor(family chains.Family) int {
	if family.IsMoveStyle() {
		return MoveLength
	}
	return Length
}

// Generate returns a fresh salt. A short or failed read is reported as
// ErrEntropyUnavailable; there is no fallback source.
func (g Generator) Generate(family chains.Family) (Salt, error) {
	src := g.Entropy
	if src == nil {
		src = rand.Reader
	}
	n := LengthFor(family)
	body := make([]byte, n-checksumLength)
	if _, err := io.ReadFull(src, body); err != nil {
		return nil, errorsmod.Wrap(ErrEntropyUnavailable, err.Error())
	}
	return append(body, checksum(body)...), nil
}

// Verify recomputes the embedded checksum.
func Verify(s Salt) bool {
	n := len(s)
	if n != Length && n != MoveLength {
		return false
	}
	return subtle.ConstantTimeCompare(s[n-checksumLength:], checksum(s[:n-checksumLength])) == 1
}

func checksum(body []byte) []byte {
	sum := crypto.Keccak256(domain, []byte{byte(len(body) + checksumLength)}, body)
	return sum[:checksumLength]
}

// Parse decodes a 0x hex salt and verifies it.
func Parse(s string) (Salt, error) {
	h, err := primitives.ParseHex(s)
	if err != nil {
		return nil, errorsmod.Wrap(ErrInvalidSalt, err.Error())
	}
	out := Salt(h.Bytes())
	if !Verify(out) {
		return nil, errorsmod.Wrapf(ErrInvalidSalt, "checksum mismatch for %s", s)
	}
	return out, nil
}

// Bytes32 left-pads the salt into the packet's bytes32 field. A padded
// Move-style salt no longer passes Verify; use FromBytes32 to read it back.
func (s Salt) Bytes32() [32]byte {
	out, err := primitives.LeftPad32(s)
	if err != nil {
		panic(fmt.Sprintf("salt: %d bytes does not fit bytes32", len(s)))
	}
	return out
}

// FromBytes32 recovers the salt stored in a packet's bytes32 field: the
// full 32 bytes when they verify, otherwise a Move-style salt in the last
// 14 bytes behind zero padding.
func FromBytes32(b [32]byte) (Salt, error) {
	if full := Salt(b[:]); Verify(full) {
		return full, nil
	}
	pad := Length - MoveLength
	for _, c := range b[:pad] {
		if c != 0 {
			return nil, errorsmod.Wrap(ErrInvalidSalt, "checksum mismatch")
		}
	}
	if tail := Salt(b[pad:]); Verify(tail) {
		return tail, nil
	}
	return nil, errorsmod.Wrap(ErrInvalidSalt, "checksum mismatch")
}

// VerifyBytes32 is Verify for a salt as it appears in a packet.
func VerifyBytes32(b [32]byte) bool {
	_, err := FromBytes32(b)
	return err == nil
}

func (s Salt) String() string {
	return primitives.HexFromBytes(s).String()
}
