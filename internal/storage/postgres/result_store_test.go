package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/storage"
)

func createTestRun(id string) *domain.RunRecord {
	return &domain.RunRecord{
		RunID:          id,
		Status:         domain.RunStatusRunning,
		Policy:         domain.PersistAll,
		StrategyCount:  2,
		TokenCount:     3,
		InitialBalance: 1_000_000_000,
		CreatedAtMs:    1700000000000,
		UpdatedAtMs:    1700000000000,
	}
}

func createTestStrategyResult(strategyID string, pnl int64) *domain.StrategyResult {
	return &domain.StrategyResult{
		StrategyID:     strategyID,
		PnLLamports:    pnl,
		ROIPct:         float64(pnl) / 1e9 * 100,
		WinRatePct:     50,
		Wins:           1,
		Losses:         1,
		Trades:         2,
		TokensTotal:    3,
		TokensSkipped:  1,
		BiggestWin:     pnl,
		BiggestLoss:    -100,
		MaxDrawdownPct: 12.5,
	}
}

func TestResultStore_RunLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewResultStore(pool)

	run := createTestRun("run-pg-1")
	require.NoError(t, store.CreateRun(ctx, run))

	err := store.CreateRun(ctx, run)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	run.Status = domain.RunStatusCompleted
	run.BestStrategyID = "winner"
	run.BestPnL = 42
	run.UpdatedAtMs = 1700000001000
	require.NoError(t, store.UpdateRun(ctx, run))

	got, err := store.GetRun(ctx, "run-pg-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.Equal(t, domain.PersistAll, got.Policy)
	assert.Equal(t, "winner", got.BestStrategyID)
	assert.Equal(t, int64(42), got.BestPnL)
	assert.Equal(t, int64(1700000001000), got.UpdatedAtMs)

	err = store.UpdateRun(ctx, createTestRun("missing"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResultStore_UpsertReplacesSlot(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewResultStore(pool)
	require.NoError(t, store.CreateRun(ctx, createTestRun("run-pg-2")))

	require.NoError(t, store.UpsertStrategyResult(ctx, "run-pg-2", "best",
		createTestStrategyResult("first", 100)))
	require.NoError(t, store.UpsertStrategyResult(ctx, "run-pg-2", "best",
		createTestStrategyResult("second", 900)))

	got, err := store.GetStrategyResult(ctx, "run-pg-2", "best")
	require.NoError(t, err)
	assert.Equal(t, "second", got.StrategyID)
	assert.Equal(t, int64(900), got.PnLLamports)
	assert.InDelta(t, 12.5, got.MaxDrawdownPct, 0.0001)

	_, err = store.GetStrategyResult(ctx, "run-pg-2", "absent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResultStore_TokenResultsRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewResultStore(pool)
	require.NoError(t, store.CreateRun(ctx, createTestRun("run-pg-3")))
	require.NoError(t, store.UpsertStrategyResult(ctx, "run-pg-3", "s1",
		createTestStrategyResult("s1", 250)))

	traded := &domain.SimulationResult{
		Mint: "mintA",
		Trade: &domain.TradeOutcome{
			Transactions: []*domain.TradeTransaction{
				{
					TimestampMs:   1000,
					Type:          domain.TxBuy,
					GrossLamports: -100_000_000,
					NetLamports:   -100_150_000,
					FeeLamports:   150_000,
					PriceSOL:      0.0001,
					TokenAmount:   1_000_000_000,
					Metadata:      map[string]string{"reason": "intervals_matched"},
				},
			},
			FinalBalance:      1_100_000_000,
			ProfitLamports:    100_000_000,
			ROIPct:            10,
			FirstBuyTimestamp: 1000,
		},
	}
	exited := &domain.SimulationResult{
		Mint: "mintB",
		Exit: &domain.ExitOutcome{Code: domain.ExitCodeTokenDumped, Message: "price collapsed", TimestampMs: 2000},
	}

	require.NoError(t, store.InsertTokenResult(ctx, "run-pg-3", "s1", traded))
	require.NoError(t, store.InsertTokenResult(ctx, "run-pg-3", "s1", exited))

	err := store.InsertTokenResult(ctx, "run-pg-3", "s1", traded)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetStrategyResult(ctx, "run-pg-3", "s1")
	require.NoError(t, err)
	require.Len(t, got.TokenResults, 2)

	gotTraded := got.TokenResults["mintA"]
	require.NotNil(t, gotTraded)
	require.True(t, gotTraded.Traded())
	require.Len(t, gotTraded.Trade.Transactions, 1)
	assert.Equal(t, domain.TxBuy, gotTraded.Trade.Transactions[0].Type)
	assert.Equal(t, int64(-100_000_000), gotTraded.Trade.Transactions[0].GrossLamports)
	assert.Equal(t, "intervals_matched", gotTraded.Trade.Transactions[0].Metadata["reason"])
	assert.Equal(t, int64(100_000_000), gotTraded.Trade.ProfitLamports)

	gotExited := got.TokenResults["mintB"]
	require.NotNil(t, gotExited)
	assert.False(t, gotExited.Traded())
	assert.Equal(t, domain.ExitCodeTokenDumped, gotExited.Exit.Code)
}

func TestResultStore_BestStrategyResults(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewResultStore(pool)
	require.NoError(t, store.CreateRun(ctx, createTestRun("run-pg-4")))
	require.NoError(t, store.CreateRun(ctx, createTestRun("run-pg-5")))

	require.NoError(t, store.UpsertStrategyResult(ctx, "run-pg-4", "a", createTestStrategyResult("a", 100)))
	require.NoError(t, store.UpsertStrategyResult(ctx, "run-pg-4", "b", createTestStrategyResult("b", 300)))
	require.NoError(t, store.UpsertStrategyResult(ctx, "run-pg-5", "c", createTestStrategyResult("c", 200)))

	best, err := store.BestStrategyResults(ctx, 2)
	require.NoError(t, err)
	require.Len(t, best, 2)
	assert.Equal(t, "b", best[0].StrategyID)
	assert.Equal(t, "c", best[1].StrategyID)

	_, err = store.BestStrategyResults(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestResultStore_ListStrategyResults(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewResultStore(pool)
	require.NoError(t, store.CreateRun(ctx, createTestRun("run-pg-6")))
	require.NoError(t, store.CreateRun(ctx, createTestRun("run-pg-7")))

	require.NoError(t, store.UpsertStrategyResult(ctx, "run-pg-6", "a", createTestStrategyResult("a", 100)))
	require.NoError(t, store.UpsertStrategyResult(ctx, "run-pg-6", "b", createTestStrategyResult("b", 300)))
	require.NoError(t, store.UpsertStrategyResult(ctx, "run-pg-7", "c", createTestStrategyResult("c", 200)))

	results, err := store.ListStrategyResults(ctx, "run-pg-6")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].StrategyID)
	assert.Equal(t, "a", results[1].StrategyID)

	_, err = store.ListStrategyResults(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.ListStrategyResults(ctx, "run-pg-missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
