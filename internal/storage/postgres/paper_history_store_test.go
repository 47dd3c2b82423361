package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

func TestPaperHistoryStore_AppendAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPaperHistoryStore(pool)
	ctx := context.Background()

	snaps := []domain.PortfolioSnapshot{
		{Timestamp: 200, TotalValueEur: 1010, Balances: map[string]float64{"EUR": 10, "BTC": 0.02}, Weights: map[string]float64{"BTC-EUR": 0.99}},
		{Timestamp: 100, TotalValueEur: 1000, Balances: map[string]float64{"EUR": 1000}, Weights: map[string]float64{}},
	}
	require.NoError(t, store.AppendSnapshots(ctx, "cand-1", snaps))
	require.NoError(t, store.AppendSnapshots(ctx, "cand-2", snaps[:1]))

	trades := []domain.SimulatedTrade{
		{Timestamp: 150, Pair: "BTC-EUR", Side: domain.SideBuy, AmountEur: 990, Price: 49500, Reason: "rebalance"},
		{Timestamp: 150, Pair: "BTC-EUR", Side: domain.SideSell, AmountEur: 10, Price: 49400},
	}
	require.NoError(t, store.AppendTrades(ctx, "cand-1", trades))

	gotSnaps, err := store.GetSnapshots(ctx, "cand-1")
	require.NoError(t, err)
	require.Len(t, gotSnaps, 2)
	assert.Equal(t, snaps[1], gotSnaps[0])
	assert.Equal(t, snaps[0], gotSnaps[1])

	gotTrades, err := store.GetTrades(ctx, "cand-1")
	require.NoError(t, err)
	assert.Equal(t, trades, gotTrades)

	empty, err := store.GetTrades(ctx, "cand-2")
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.ErrorIs(t, store.AppendTrades(ctx, "", trades), storage.ErrInvalidInput)
}
