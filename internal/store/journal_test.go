package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-engine/internal/models"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalOrdersNewestFirst(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	base := time.Now().UnixMilli()
	for i, symbol := range []string{"TCS", "INFY", "TCS"} {
		require.NoError(t, j.AppendOrder(ctx, models.OrderRecord{
			OrderID:   string(rune('a' + i)),
			Symbol:    symbol,
			Side:      models.OrderSideBuy,
			Quantity:  10 * (i + 1),
			Price:     100,
			Mode:      models.OrderModePaper,
			Timestamp: base + int64(i),
		}))
	}

	all, err := j.Orders(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].OrderID, "newest order must come first")

	tcs, err := j.Orders(ctx, "TCS", 10)
	require.NoError(t, err)
	require.Len(t, tcs, 2)
	assert.Equal(t, "c", tcs[0].OrderID)
	assert.Equal(t, "a", tcs[1].OrderID)
	assert.Equal(t, 30, tcs[0].Quantity)
	assert.Equal(t, models.OrderSideBuy, tcs[0].Side)
	assert.Equal(t, models.OrderModePaper, tcs[0].Mode)

	limited, err := j.Orders(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestJournalDuplicateOrderRejected(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	rec := models.OrderRecord{
		OrderID:   "dup",
		Symbol:    "TCS",
		Side:      models.OrderSideBuy,
		Quantity:  10,
		Price:     100,
		Mode:      models.OrderModeLive,
		Timestamp: time.Now().UnixMilli(),
	}
	require.NoError(t, j.AppendOrder(ctx, rec))
	assert.Error(t, j.AppendOrder(ctx, rec), "order IDs are primary keys")
}

func TestJournalTradeLifecycle(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	trade := models.ActiveTradeRecord{
		TradeID:    "trade-1",
		Symbol:     "SBIN",
		Strategy:   "orb",
		Type:       models.SignalLong,
		SignalTime: time.Now(),
		EntryPrice: 550,
		Status:     models.TradeWaitingForEntry,
	}
	require.NoError(t, j.RecordTradeOpen(ctx, trade, 100))
	require.NoError(t, j.RecordTradeClose(ctx, "trade-1", 565, 1500))

	assert.Error(t, j.RecordTradeClose(ctx, "no-such-trade", 1, 1))
}
