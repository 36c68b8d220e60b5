package chainsui

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"zkgm/chains"
	"zkgm/channel"
	"zkgm/client"
	"zkgm/lifecycle"
	"zkgm/ucs03"
)

func objectID(b string) string { return "0x" + strings.Repeat(b, 32) }

var suiTestnet = chains.Chain{
	UniversalChainID: "sui.4c78adac",
	Family:           chains.FamilySui,
	UCS03Address:     objectID("be"),
}

type fakeExecutor struct {
	call MoveCall
}

func (f *fakeExecutor) ExecuteMoveCall(_ context.Context, _ string, call MoveCall) (string, error) {
	f.call = call
	return "5vYa8Z2QzvGfK2pLqQmXk9a1bnWcRjTQ6Ho2c7p3sV1N", nil
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func newRPC(t *testing.T, handle func(method string) any) *rpc.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req rpcRequest
		require.NoError(t, json.Unmarshal(body, &req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": handle(req.Method)})
	}))
	t.Cleanup(srv.Close)
	c, err := rpc.Dial(srv.URL)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func objects() Objects {
	return Objects{IBCStore: objectID("01"), RelayStore: objectID("02"), Vault: objectID("03")}
}

func TestSubmitMoveCall(t *testing.T) {
	var polls atomic.Int32
	c := newRPC(t, func(method string) any {
		switch method {
		case "sui_getChainIdentifier":
			return "4c78adac"
		case "sui_getTransactionBlock":
			if polls.Add(1) == 1 {
				return map[string]any{"digest": "5vYa8Z2QzvGfK2pLqQmXk9a1bnWcRjTQ6Ho2c7p3sV1N"}
			}
			return map[string]any{
				"digest":     "5vYa8Z2QzvGfK2pLqQmXk9a1bnWcRjTQ6Ho2c7p3sV1N",
				"checkpoint": "1774",
				"effects": map[string]any{
					"status":  map[string]any{"status": "success"},
					"gasUsed": map[string]any{"computationCost": "1000000", "storageCost": "2964000", "storageRebate": "978120"},
				},
			}
		}
		return nil
	})
	exec := &fakeExecutor{}
	backend, err := NewSuiChain(Config{Chain: suiTestnet, Objects: objects(), ChainIdentifier: "4c78adac", ReceiptPollInterval: time.Millisecond}, exec, c)
	require.NoError(t, err)
	zc, err := client.New(client.Config{}, backend)
	require.NoError(t, err)

	req, err := client.NewRequest(chains.Context{Chain: suiTestnet, Sender: objectID("0c")}, channel.Channel{
		SourceUniversalChainID: suiTestnet.UniversalChainID,
		SourceChannelID:        9,
	}, ucs03.TokenOrder{BaseAmount: big.NewInt(1), QuoteAmount: big.NewInt(1)}, time.Hour)
	require.NoError(t, err)

	resp, err := zc.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "zkgm", exec.call.Module)
	require.Equal(t, suiTestnet.UCS03Address, exec.call.Package)
	require.Equal(t, objectID("01"), exec.call.Arguments[0])
	require.Equal(t, uint32(9), exec.call.Arguments[3])

	ev, ok, err := resp.Stream.WaitFor(context.Background(), lifecycle.IsComplete)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2985880), ev.(lifecycle.TransactionReceiptComplete).GasUsed)
}

func TestSubmitWrongNetwork(t *testing.T) {
	c := newRPC(t, func(string) any { return "35834a8a" })
	backend, err := NewSuiChain(Config{Chain: suiTestnet, Objects: objects(), ChainIdentifier: "4c78adac"}, &fakeExecutor{}, c)
	require.NoError(t, err)

	req := &client.Request{Source: chains.Context{Chain: suiTestnet, Sender: objectID("0c")}}
	_, err = backend.Submit(context.Background(), req, client.Payload{})
	var respErr *client.ResponseError
	require.ErrorAs(t, err, &respErr)
	require.Equal(t, client.ReasonSwitchChain, respErr.Reason)
}

func TestNewSuiChainValidatesObjects(t *testing.T) {
	o := objects()
	o.Vault = "vault"
	_, err := NewSuiChain(Config{Chain: suiTestnet, Objects: o}, nil, nil)
	require.Error(t, err)
}

func TestGasTotal(t *testing.T) {
	require.Equal(t, uint64(0), gasCost{ComputationCost: "1", StorageRebate: "5"}.total())
	require.Equal(t, uint64(6), gasCost{ComputationCost: "1", StorageCost: "5"}.total())
}
