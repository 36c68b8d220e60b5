package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func emitAll(events ...Event) Producer {
	return func(ctx context.Context, emit Emit) error {
		for _, ev := range events {
			if err := emit(ev); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestStreamOrder(t *testing.T) {
	want := []Event{
		Dispatched{TxHash: "0x01"},
		TransactionReceiptComplete{TxHash: "0x01", BlockHash: "0xb1", GasUsed: 21000},
		IndexerPending{TxHash: "0x01"},
		Indexed{PacketHash: "0xpp"},
	}
	s := NewStream(context.Background(), emitAll(want...))
	got, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

func TestWaitFor(t *testing.T) {
	s := NewStream(context.Background(), emitAll(
		Dispatched{TxHash: "0x01"},
		TransactionReceiptComplete{TxHash: "0x01"},
		IndexerPending{TxHash: "0x01"},
		Indexed{PacketHash: "0xpp"},
	))

	ev, ok, err := s.WaitFor(context.Background(), IsComplete)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, TagTransactionReceiptComplete, ev.Tag())

	ev, ok, err = s.WaitForTerminal(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Indexed{PacketHash: "0xpp"}, ev)

	// nothing left
	_, ok, err = s.WaitFor(context.Background(), IsComplete)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWaitForCancelStopsProducer(t *testing.T) {
	stopped := make(chan struct{})
	s := NewStream(context.Background(), func(ctx context.Context, emit Emit) error {
		defer close(stopped)
		if err := emit(Dispatched{TxHash: "0x01"}); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok, err := s.WaitForTerminal(ctx)
	require.False(t, ok)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("producer still running after cancelled wait")
	}
	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, ErrStreamClosed)
}

func TestCloseUnblocksEmit(t *testing.T) {
	emitErr := make(chan error, 1)
	s := NewStream(context.Background(), func(ctx context.Context, emit Emit) error {
		err := emit(Dispatched{TxHash: "0x01"})
		emitErr <- err
		return err
	})
	s.Close()
	require.ErrorIs(t, <-emitErr, context.Canceled)
	require.ErrorIs(t, s.Err(), context.Canceled)
	s.Close()
}

func TestProducerError(t *testing.T) {
	boom := errors.New("boom")
	s := NewStream(context.Background(), func(ctx context.Context, emit Emit) error {
		if err := emit(Failed{Err: boom}); err != nil {
			return err
		}
		return boom
	})
	ev, ok, err := s.WaitForTerminal(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "boom", ev.(Failed).Error())

	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestSingleSubscriber(t *testing.T) {
	s := NewStream(context.Background(), emitAll(Dispatched{TxHash: "0x01"}))
	ch, err := s.Events()
	require.NoError(t, err)

	_, err = s.Events()
	require.ErrorIs(t, err, ErrStreamConsumed)
	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, ErrStreamConsumed)

	var got []Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Equal(t, []Event{Dispatched{TxHash: "0x01"}}, got)

	pulled := NewStream(context.Background(), emitAll())
	_, err = pulled.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)
	_, err = pulled.Events()
	require.ErrorIs(t, err, ErrStreamConsumed)
}

type revertErr struct{ included bool }

func (revertErr) Error() string    { return "execution reverted" }
func (e revertErr) Reverted() bool { return e.included }

func TestPredicates(t *testing.T) {
	tests := []struct {
		ev       Event
		complete bool
		terminal bool
		state    State
	}{
		{Dispatched{}, false, false, StateDispatched},
		{WaitForSafeWalletHash{}, true, false, StateBackendPending},
		{TransactionReceiptComplete{}, true, false, StateBackendConfirmed},
		{IndexerPending{}, false, false, StateIndexerPending},
		{Indexed{}, true, true, StateIndexed},
		{IndexTimeout{}, false, true, StateIndexTimeout},
		{Failed{}, false, true, StateFailed},
		{Failed{Err: errors.New("dial tcp: i/o timeout")}, false, true, StateFailed},
		{Failed{Err: fmt.Errorf("tx 0xtx: %w", revertErr{included: true})}, false, true, StateReverted},
		{Failed{Err: revertErr{included: false}}, false, true, StateFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.ev.Tag())+"/"+string(tt.state), func(t *testing.T) {
			require.Equal(t, tt.complete, IsComplete(tt.ev))
			require.Equal(t, tt.terminal, IsTerminal(tt.ev))
			require.Equal(t, tt.state, StateOf(tt.ev))
		})
	}

	match := HasTag(TagIndexed, TagIndexTimeout)
	require.True(t, match(IndexTimeout{}))
	require.False(t, match(Dispatched{}))
}
