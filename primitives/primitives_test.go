package primitives

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"zkgm/chains"
)

func TestParseHex(t *testing.T) {
	h, err := ParseHex("0xDEADbeef")
	require.NoError(t, err)
	require.Equal(t, Hex("0xdeadbeef"), h)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, h.Bytes())
	require.Equal(t, 4, h.Len())

	empty, err := ParseHex("0x")
	require.NoError(t, err)
	require.Empty(t, empty.Bytes())

	for _, bad := range []string{"", "deadbeef", "0xabc", "0xzz"} {
		_, err := ParseHex(bad)
		require.Error(t, err, bad)
	}
}

func TestHexJSON(t *testing.T) {
	var v struct {
		Data Hex `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"data":"0x0102"}`), &v))
	require.Equal(t, []byte{1, 2}, v.Data.Bytes())
	require.Error(t, json.Unmarshal([]byte(`{"data":"0102"}`), &v))
}

func TestLeftPad32(t *testing.T) {
	out, err := LeftPad32([]byte{1, 2})
	require.NoError(t, err)
	require.Equal(t, byte(1), out[30])
	require.Equal(t, byte(2), out[31])
	require.True(t, bytes.Equal(out[:30], make([]byte, 30)))

	_, err = LeftPad32(make([]byte, 33))
	require.Error(t, err)
}

func TestBech32RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xab}, 20)
	addr, err := Bech32Encode("union", payload)
	require.NoError(t, err)
	require.Contains(t, addr, "union1")

	hrp, decoded, err := Bech32Decode(addr)
	require.NoError(t, err)
	require.Equal(t, "union", hrp)
	require.Equal(t, payload, decoded)

	_, _, err = Bech32Decode("union1invalid")
	require.Error(t, err)
}

func TestAddressBytes(t *testing.T) {
	evm, err := AddressBytes(chains.FamilyEVM, "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	require.NoError(t, err)
	require.Len(t, evm, 20)
	back, err := FormatAddress(chains.FamilyEVM, evm, "")
	require.NoError(t, err)
	require.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", back)

	_, err = AddressBytes(chains.FamilyEVM, "0x1234")
	require.Error(t, err)

	move, err := AddressBytes(chains.FamilyAptos, "0x1")
	require.NoError(t, err)
	require.Len(t, move, 32)
	require.Equal(t, byte(1), move[31])

	pk := solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	svm, err := AddressBytes(chains.FamilySVM, pk.String())
	require.NoError(t, err)
	require.Len(t, svm, 32)
	svmBack, err := FormatAddress(chains.FamilySVM, svm, "")
	require.NoError(t, err)
	require.Equal(t, pk.String(), svmBack)

	cosmosAddr, err := FormatAddress(chains.FamilyCosmos, evm, "union")
	require.NoError(t, err)
	cosmosBytes, err := AddressBytes(chains.FamilyCosmos, cosmosAddr)
	require.NoError(t, err)
	require.Equal(t, evm, cosmosBytes)

	_, err = FormatAddress(chains.FamilyCosmos, evm, "")
	require.Error(t, err)
	_, err = AddressBytes("tron", "x")
	require.Error(t, err)
}
