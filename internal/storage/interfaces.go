package storage

import (
	"context"

	"solana-strategy-lab/internal/domain"
)

// ResultStore persists orchestrator runs and their results.
// The orchestrator writes a draft run row at start, streams incremental
// updates during the run, and queries best results afterwards.
type ResultStore interface {
	// CreateRun inserts a draft run row. Returns ErrDuplicateKey if run_id exists.
	CreateRun(ctx context.Context, run *domain.RunRecord) error

	// UpdateRun applies a status transition and summary fields.
	// Returns ErrNotFound if run_id does not exist.
	UpdateRun(ctx context.Context, run *domain.RunRecord) error

	// GetRun retrieves a run by id. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)

	// UpsertStrategyResult inserts or replaces a strategy result for a run.
	// Used both by the "all" policy (one row per strategy) and the
	// "best_only" policy (a single reused slot).
	UpsertStrategyResult(ctx context.Context, runID, slotID string, res *domain.StrategyResult) error

	// GetStrategyResult retrieves one slot. Returns ErrNotFound if not exists.
	GetStrategyResult(ctx context.Context, runID, slotID string) (*domain.StrategyResult, error)

	// InsertTokenResult adds one token's detail for a strategy slot.
	// Returns ErrDuplicateKey on repeated (run, slot, mint).
	InsertTokenResult(ctx context.Context, runID, slotID string, res *domain.SimulationResult) error

	// ListStrategyResults returns every persisted slot of one run,
	// ordered by total PnL descending. Token detail is not loaded.
	ListStrategyResults(ctx context.Context, runID string) ([]*domain.StrategyResult, error)

	// BestStrategyResults returns the best-N persisted strategy results
	// across all runs, ordered by total PnL descending.
	BestStrategyResults(ctx context.Context, n int) ([]*domain.StrategyResult, error)
}

// SnapshotStore persists recorded token history series for large sweeps.
type SnapshotStore interface {
	// InsertSeries stores a full series. Returns ErrDuplicateKey if the
	// mint already has entries.
	InsertSeries(ctx context.Context, h *domain.TokenHistory) error

	// GetByMint retrieves the full series for a mint, entries ordered by
	// timestamp ASC. Returns ErrNotFound if the mint is unknown.
	GetByMint(ctx context.Context, mint string) (*domain.TokenHistory, error)

	// ListMints returns all mints with stored history, sorted.
	ListMints(ctx context.Context) ([]string, error)
}
