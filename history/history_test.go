package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"

	"zkgm/client"
	"zkgm/lifecycle"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{DryRun: true})
	require.NoError(t, err)
	return db
}

func transition(ev lifecycle.Event, at time.Time) client.Transition {
	return client.Transition{
		Key:         "0xsafe",
		Source:      "ethereum.1",
		Destination: "union.union-1",
		Sender:      "0x01",
		Event:       ev,
		At:          at,
	}
}

func TestApply(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var s Submission
	steps := []struct {
		ev     lifecycle.Event
		status lifecycle.State
	}{
		{lifecycle.Dispatched{TxHash: "0xsafe"}, lifecycle.StateDispatched},
		{lifecycle.WaitForSafeWalletHash{Hash: "0xsafe"}, lifecycle.StateBackendPending},
		{lifecycle.TransactionReceiptComplete{TxHash: "0xtx", BlockHash: "0xb", GasUsed: 21000}, lifecycle.StateBackendConfirmed},
		{lifecycle.IndexerPending{TxHash: "0xtx"}, lifecycle.StateIndexerPending},
		{lifecycle.Indexed{PacketHash: "0xpacket"}, lifecycle.StateIndexed},
	}
	for i, step := range steps {
		Apply(&s, transition(step.ev, t0.Add(time.Duration(i)*time.Second)))
		require.Equal(t, step.status, s.Status)
	}
	require.Equal(t, "0xsafe", s.Key)
	require.Equal(t, "0xsafe", s.SafeHash)
	require.Equal(t, "0xtx", s.TxHash)
	require.Equal(t, "0xpacket", s.PacketHash)
	require.Equal(t, uint64(21000), s.GasUsed)
	require.Equal(t, "ethereum.1", s.Source)
	require.Equal(t, t0, s.CreatedAt)
	require.Equal(t, t0.Add(4*time.Second), s.UpdatedAt)
	require.Equal(t, t0.Add(2*time.Second), *s.ConfirmedAt)

	var failed Submission
	Apply(&failed, transition(lifecycle.Failed{Err: errors.New("reverted")}, t0))
	require.Equal(t, lifecycle.StateFailed, failed.Status)
	require.Equal(t, "reverted", failed.ErrorMessage)
}

func TestApplyRevertVersusTransportFailure(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var reverted Submission
	Apply(&reverted, transition(lifecycle.Dispatched{TxHash: "0xtx"}, t0))
	Apply(&reverted, transition(lifecycle.TransactionReceiptComplete{TxHash: "0xtx", BlockHash: "0xb", GasUsed: 50000}, t0.Add(time.Second)))
	Apply(&reverted, transition(lifecycle.Failed{Err: client.OnChainError("0xtx", errors.New("execution reverted"))}, t0.Add(time.Second)))
	require.Equal(t, lifecycle.StateReverted, reverted.Status)
	require.Equal(t, "0xb", reverted.BlockHash)
	require.Equal(t, uint64(50000), reverted.GasUsed)
	require.NotNil(t, reverted.ConfirmedAt)

	var dropped Submission
	Apply(&dropped, transition(lifecycle.Dispatched{TxHash: "0xtx"}, t0))
	Apply(&dropped, transition(lifecycle.Failed{Err: client.TransportError(errors.New("connection reset"))}, t0.Add(time.Second)))
	require.Equal(t, lifecycle.StateFailed, dropped.Status)
	require.Empty(t, dropped.BlockHash)
	require.Nil(t, dropped.ConfirmedAt)

	require.NotEqual(t, reverted.Status, dropped.Status)
}

func TestOpenWithoutDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.ErrorIs(t, err, ErrNoDatabase)
}

func TestNoDatabase(t *testing.T) {
	s := NewStore(nil)
	require.ErrorIs(t, s.Record(context.Background(), transition(lifecycle.Dispatched{}, time.Now())), ErrNoDatabase)
	_, err := s.ByAddress(context.Background(), "0x01", 10)
	require.ErrorIs(t, err, ErrNoDatabase)
	_, err = s.Get(context.Background(), "0x01")
	require.ErrorIs(t, err, ErrNoDatabase)
	require.ErrorIs(t, s.Migrate(context.Background()), ErrNoDatabase)
	require.EqualError(t, ErrNoDatabase, "database not configured")
}

func TestRecordDryRun(t *testing.T) {
	s := NewStore(dryRunDB(t))
	require.NoError(t, s.Record(context.Background(), transition(lifecycle.Dispatched{TxHash: "0xtx"}, time.Now())))
	rows, err := s.ByAddress(context.Background(), "0x01", 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestQueries(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return upsert(tx, &Submission{Key: "0xtx", Status: lifecycle.StateDispatched})
	})
	require.Contains(t, sql, "INSERT INTO")
	require.Contains(t, sql, "zkgm_submissions")
	require.Contains(t, sql, "ON CONFLICT")
	require.Contains(t, sql, "submission_key")

	sql = db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []Submission
		return byAddress(tx, "0x01", 1000).Find(&rows)
	})
	require.Contains(t, sql, "sender = \"0x01\"")
	require.Contains(t, sql, "ORDER BY created_at DESC")
	require.Contains(t, sql, "LIMIT 100")
}
