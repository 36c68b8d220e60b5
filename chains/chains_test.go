package chains

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFamily(t *testing.T) {
	f, err := ParseFamily(" EVM ")
	require.NoError(t, err)
	require.Equal(t, FamilyEVM, f)

	_, err = ParseFamily("bitcoin")
	require.Error(t, err)

	require.True(t, FamilyAptos.IsMoveStyle())
	require.False(t, FamilySui.IsMoveStyle())
}

func TestUniversalChainID(t *testing.T) {
	id, err := ParseUniversalChainID("union.union-testnet-10")
	require.NoError(t, err)
	require.Equal(t, "union", id.Namespace())
	require.Equal(t, "union-testnet-10", id.ChainID())

	for _, bad := range []string{"", "ethereum", ".1", "ethereum."} {
		_, err := ParseUniversalChainID(bad)
		require.Error(t, err, bad)
	}
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry([]Chain{
		{UniversalChainID: "union.union-1", Family: FamilyCosmos},
		{UniversalChainID: "ethereum.1", Family: FamilyEVM, ExplorerTxURL: "https://etherscan.io/tx/"},
	})
	require.NoError(t, err)

	c, ok := reg.Get("ethereum.1")
	require.True(t, ok)
	require.Equal(t, "https://etherscan.io/tx/0xab", c.ExplorerURL("0xab"))

	all := reg.All()
	require.Len(t, all, 2)
	require.Equal(t, UniversalChainID("ethereum.1"), all[0].UniversalChainID)

	_, err = NewRegistry([]Chain{
		{UniversalChainID: "ethereum.1", Family: FamilyEVM},
		{UniversalChainID: "ethereum.1", Family: FamilyEVM},
	})
	require.Error(t, err)

	_, err = NewRegistry([]Chain{{UniversalChainID: "ethereum.1", Family: "tron"}})
	require.Error(t, err)
}

func TestExplorerURLFormat(t *testing.T) {
	c := Chain{ExplorerTxURL: "https://explorer.solana.com/tx/%s?cluster=devnet"}
	require.Equal(t, "https://explorer.solana.com/tx/sig?cluster=devnet", c.ExplorerURL("sig"))
	require.Empty(t, Chain{}.ExplorerURL("x"))
}
