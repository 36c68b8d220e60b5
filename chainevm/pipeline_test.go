package chainevm

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"zkgm/client"
	"zkgm/indexer"
	"zkgm/lifecycle"
)

func TestTransferIndexedEndToEnd(t *testing.T) {
	rpc := &fakeRPC{chainID: 11155111, receipts: map[common.Hash]*types.Receipt{}, misses: 1}
	e, signer := newTestChain(t, rpc)

	var queries atomic.Int32
	var wantTx atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		// the first poll finds nothing yet
		if queries.Add(1) == 1 || body.Variables["submission_tx_hash"] != wantTx.Load() {
			_, _ = w.Write([]byte(`{"data":{"v2_transfers":[]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"v2_transfers":[{"packet_hash":"0x7e57"}]}}`))
	}))
	t.Cleanup(srv.Close)

	idx, err := indexer.New(indexer.Config{URL: srv.URL, PollInterval: 5 * time.Millisecond, Timeout: 5 * time.Second})
	require.NoError(t, err)
	c, err := client.New(client.Config{Indexer: idx}, e)
	require.NoError(t, err)

	req := newRequest(t, signer.Address().Hex(), nativeOrder(42))
	resp, err := c.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, rpc.sent, 1)
	tx := rpc.sent[0]
	wantTx.Store(strings.ToLower(tx.Hash().Hex()))

	rpc.mu.Lock()
	rpc.receipts[tx.Hash()] = &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 88000, BlockHash: common.HexToHash("0xb10c"), BlockNumber: big.NewInt(100)}
	rpc.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	events, err := resp.Stream.Collect(ctx)
	require.NoError(t, err)

	got := make([]lifecycle.Tag, len(events))
	for i, ev := range events {
		got[i] = ev.Tag()
	}
	require.Equal(t, []lifecycle.Tag{
		lifecycle.TagDispatched,
		lifecycle.TagTransactionReceiptComplete,
		lifecycle.TagIndexerPending,
		lifecycle.TagIndexed,
	}, got)
	require.Equal(t, lifecycle.Dispatched{TxHash: tx.Hash().Hex()}, events[0])
	require.Equal(t, uint64(88000), events[1].(lifecycle.TransactionReceiptComplete).GasUsed)
	require.Equal(t, lifecycle.IndexerPending{TxHash: tx.Hash().Hex()}, events[2])
	require.Equal(t, lifecycle.Indexed{PacketHash: "0x7e57"}, events[3])
	require.GreaterOrEqual(t, queries.Load(), int32(2))

	args, err := ucs03ABI.Methods["send"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	require.Equal(t, req.Packet.Salt, args[3])
}
