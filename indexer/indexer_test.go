package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zkgm/chains"
	"zkgm/channel"
)

func newServer(t *testing.T, handle func(req graphqlRequest) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		status, body := handle(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(Config{URL: url, PollInterval: 5 * time.Millisecond, Timeout: timeout})
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "ftp://indexer", "http://"} {
		_, err := New(Config{URL: u})
		require.ErrorIs(t, err, ErrInvalidURL, u)
	}
}

func TestWaitForPacketHash(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(req graphqlRequest) (int, string) {
		require.Equal(t, "0xabc", req.Variables["submission_tx_hash"])
		switch calls.Add(1) {
		case 1:
			return http.StatusOK, `{"data":{"v2_transfers":[]}}`
		case 2:
			return http.StatusBadGateway, `oops`
		default:
			return http.StatusOK, `{"data":{"v2_transfers":[{"packet_hash":"0xpacket"}]}}`
		}
	})

	c := newClient(t, srv.URL, time.Second)
	hash, err := c.WaitForPacketHash(context.Background(), "0xABC")
	require.NoError(t, err)
	require.Equal(t, "0xpacket", hash)
	require.EqualValues(t, 3, calls.Load())
}

func TestWaitForPacketHashTimeout(t *testing.T) {
	srv := newServer(t, func(graphqlRequest) (int, string) {
		return http.StatusOK, `{"data":{"v2_transfers":[]}}`
	})
	c := newClient(t, srv.URL, 40*time.Millisecond)
	_, err := c.WaitForPacketHash(context.Background(), "0xabc")
	require.ErrorIs(t, err, ErrIndexTimeout)
}

func TestWaitForPacketHashQueryError(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(graphqlRequest) (int, string) {
		calls.Add(1)
		return http.StatusOK, `{"errors":[{"message":"field 'v2_transfers' not found"}]}`
	})
	c := newClient(t, srv.URL, time.Second)
	_, err := c.WaitForPacketHash(context.Background(), "0xabc")
	require.ErrorIs(t, err, ErrQuery)
	require.Contains(t, err.Error(), "v2_transfers")
	require.EqualValues(t, 1, calls.Load())
}

func TestWaitForPacketHashCancel(t *testing.T) {
	srv := newServer(t, func(graphqlRequest) (int, string) {
		return http.StatusOK, `{"data":{"v2_transfers":[]}}`
	})
	c := newClient(t, srv.URL, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := c.WaitForPacketHash(ctx, "0xabc")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrIndexTimeout)
}

func TestChannels(t *testing.T) {
	srv := newServer(t, func(req graphqlRequest) (int, string) {
		require.Equal(t, "ethereum.11155111", req.Variables["source"])
		require.Equal(t, "union.union-testnet-10", req.Variables["destination"])
		return http.StatusOK, `{"data":{"v2_channels":[{
			"source_universal_chain_id":"ethereum.11155111",
			"source_connection_id":1,
			"source_channel_id":7,
			"source_port_id":"0x05fd55c1abe31d3ed09a76216ca8f0372f4b2ec5",
			"destination_universal_chain_id":"union.union-testnet-10",
			"destination_connection_id":2,
			"destination_channel_id":null,
			"destination_port_id":"756e696f6e",
			"fees":[]
		}]}}`
	})
	c := newClient(t, srv.URL, time.Second)

	src := chains.UniversalChainID("ethereum.11155111")
	dst := chains.UniversalChainID("union.union-testnet-10")
	records, err := c.Channels(context.Background(), src, dst)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Nil(t, records[0].DestinationChannelID)
	require.Equal(t, uint32(7), *records[0].SourceChannelID)

	reg, err := channel.NewRegistry(c, 0, nil)
	require.NoError(t, err)
	_, err = reg.Resolve(context.Background(), src, dst)
	require.ErrorIs(t, err, channel.ErrMissingLeg)
}
