package salt

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"zkgm/chains"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestGenerateVerify(t *testing.T) {
	for _, family := range []chains.Family{chains.FamilyEVM, chains.FamilyCosmos, chains.FamilyAptos, chains.FamilySui, chains.FamilySVM} {
		for i := 0; i < 50; i++ {
			s, err := Generate(family)
			require.NoError(t, err)
			require.Len(t, s, LengthFor(family))
			require.True(t, Verify(s), "family %s", family)
		}
	}
}

func TestMoveSaltLength(t *testing.T) {
	s, err := Generate(chains.FamilyAptos)
	require.NoError(t, err)
	require.Len(t, s, MoveLength)

	padded := s.Bytes32()
	require.Equal(t, make([]byte, 32-MoveLength), padded[:32-MoveLength])
	require.Equal(t, []byte(s), padded[32-MoveLength:])
}

func TestBytes32RoundTrip(t *testing.T) {
	for _, family := range []chains.Family{chains.FamilyEVM, chains.FamilyAptos} {
		s, err := Generate(family)
		require.NoError(t, err)
		b := s.Bytes32()

		got, err := FromBytes32(b)
		require.NoError(t, err, "family %s", family)
		require.Equal(t, s, got)
		require.True(t, VerifyBytes32(b))
	}

	move, err := Generate(chains.FamilyAptos)
	require.NoError(t, err)
	padded := move.Bytes32()
	require.False(t, Verify(padded[:]))

	padded[0] = 1
	_, err = FromBytes32(padded)
	require.ErrorIs(t, err, ErrInvalidSalt)

	require.False(t, VerifyBytes32([32]byte{}))
}

func TestGenerateDistinct(t *testing.T) {
	a, err := Generate(chains.FamilyEVM)
	require.NoError(t, err)
	b, err := Generate(chains.FamilyEVM)
	require.NoError(t, err)
	require.False(t, bytes.Equal(a, b))
}

func TestEntropyUnavailable(t *testing.T) {
	_, err := Generator{Entropy: failingReader{}}.Generate(chains.FamilyEVM)
	require.ErrorIs(t, err, ErrEntropyUnavailable)

	// a short read must not yield a salt either
	_, err = Generator{Entropy: bytes.NewReader([]byte{1, 2, 3})}.Generate(chains.FamilyEVM)
	require.ErrorIs(t, err, ErrEntropyUnavailable)
}

func TestVerifyRejectsTampering(t *testing.T) {
	s, err := Generate(chains.FamilyEVM)
	require.NoError(t, err)

	tampered := append(Salt(nil), s...)
	tampered[0] ^= 0xff
	require.False(t, Verify(tampered))

	require.False(t, Verify(s[:31]))
	require.False(t, Verify(nil))
}

func TestParse(t *testing.T) {
	s, err := Generate(chains.FamilySui)
	require.NoError(t, err)

	parsed, err := Parse(s.String())
	require.NoError(t, err)
	require.Equal(t, s, parsed)

	tampered := append(Salt(nil), s...)
	tampered[2] ^= 0x01
	_, err = Parse(tampered.String())
	require.ErrorIs(t, err, ErrInvalidSalt)
	_, err = Parse("nothex")
	require.ErrorIs(t, err, ErrInvalidSalt)
}
