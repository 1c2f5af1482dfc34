package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/storage"
)

// ResultStore implements storage.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// CreateRun inserts a draft run row. Returns ErrDuplicateKey if run_id exists.
func (s *ResultStore) CreateRun(ctx context.Context, run *domain.RunRecord) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO runs (
			run_id, status, policy, message,
			strategy_count, token_count, initial_balance,
			best_pnl, best_strategy_id, created_at_ms, updated_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		run.RunID, string(run.Status), string(run.Policy), run.Message,
		run.StrategyCount, run.TokenCount, run.InitialBalance,
		run.BestPnL, run.BestStrategyID, run.CreatedAtMs, run.UpdatedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRun applies a status transition and summary fields.
func (s *ResultStore) UpdateRun(ctx context.Context, run *domain.RunRecord) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE runs SET
			status = $2, policy = $3, message = $4,
			strategy_count = $5, token_count = $6, initial_balance = $7,
			best_pnl = $8, best_strategy_id = $9, updated_at_ms = $10
		WHERE run_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		run.RunID, string(run.Status), string(run.Policy), run.Message,
		run.StrategyCount, run.TokenCount, run.InitialBalance,
		run.BestPnL, run.BestStrategyID, run.UpdatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetRun retrieves a run by id. Returns ErrNotFound if not exists.
func (s *ResultStore) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := `
		SELECT run_id, status, policy, message,
		       strategy_count, token_count, initial_balance,
		       best_pnl, best_strategy_id, created_at_ms, updated_at_ms
		FROM runs WHERE run_id = $1
	`

	var run domain.RunRecord
	var status, policy string
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.RunID, &status, &policy, &run.Message,
		&run.StrategyCount, &run.TokenCount, &run.InitialBalance,
		&run.BestPnL, &run.BestStrategyID, &run.CreatedAtMs, &run.UpdatedAtMs,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.Status = domain.RunStatus(status)
	run.Policy = domain.PersistPolicy(policy)
	return &run, nil
}

// UpsertStrategyResult inserts or replaces a strategy result slot.
func (s *ResultStore) UpsertStrategyResult(ctx context.Context, runID, slotID string, res *domain.StrategyResult) error {
	if runID == "" || slotID == "" || res == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO strategy_results (
			run_id, slot_id, strategy_id,
			pnl_lamports, roi_pct, win_rate_pct,
			wins, losses, trades, tokens_total, tokens_skipped,
			biggest_win, biggest_loss, max_drawdown_pct
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (run_id, slot_id) DO UPDATE SET
			strategy_id = EXCLUDED.strategy_id,
			pnl_lamports = EXCLUDED.pnl_lamports,
			roi_pct = EXCLUDED.roi_pct,
			win_rate_pct = EXCLUDED.win_rate_pct,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			trades = EXCLUDED.trades,
			tokens_total = EXCLUDED.tokens_total,
			tokens_skipped = EXCLUDED.tokens_skipped,
			biggest_win = EXCLUDED.biggest_win,
			biggest_loss = EXCLUDED.biggest_loss,
			max_drawdown_pct = EXCLUDED.max_drawdown_pct
	`

	_, err := s.pool.Exec(ctx, query,
		runID, slotID, res.StrategyID,
		res.PnLLamports, res.ROIPct, res.WinRatePct,
		res.Wins, res.Losses, res.Trades, res.TokensTotal, res.TokensSkipped,
		res.BiggestWin, res.BiggestLoss, res.MaxDrawdownPct,
	)
	if err != nil {
		return fmt.Errorf("upsert strategy result: %w", err)
	}
	return nil
}

// GetStrategyResult retrieves one result slot with its token detail.
func (s *ResultStore) GetStrategyResult(ctx context.Context, runID, slotID string) (*domain.StrategyResult, error) {
	query := `
		SELECT strategy_id, pnl_lamports, roi_pct, win_rate_pct,
		       wins, losses, trades, tokens_total, tokens_skipped,
		       biggest_win, biggest_loss, max_drawdown_pct
		FROM strategy_results WHERE run_id = $1 AND slot_id = $2
	`

	var res domain.StrategyResult
	err := s.pool.QueryRow(ctx, query, runID, slotID).Scan(
		&res.StrategyID, &res.PnLLamports, &res.ROIPct, &res.WinRatePct,
		&res.Wins, &res.Losses, &res.Trades, &res.TokensTotal, &res.TokensSkipped,
		&res.BiggestWin, &res.BiggestLoss, &res.MaxDrawdownPct,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get strategy result: %w", err)
	}

	tokens, err := s.tokenResults(ctx, runID, slotID)
	if err != nil {
		return nil, err
	}
	res.TokenResults = tokens
	return &res, nil
}

// InsertTokenResult adds one token's detail for a strategy slot.
// The full SimulationResult (including transactions) is stored as JSONB.
func (s *ResultStore) InsertTokenResult(ctx context.Context, runID, slotID string, res *domain.SimulationResult) error {
	if runID == "" || slotID == "" || res == nil || res.Mint == "" {
		return storage.ErrInvalidInput
	}

	detail, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal token result: %w", err)
	}

	query := `
		INSERT INTO token_results (run_id, slot_id, mint, traded, detail)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.pool.Exec(ctx, query, runID, slotID, res.Mint, res.Traded(), detail)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token result: %w", err)
	}
	return nil
}

// ListStrategyResults returns every slot of one run, PnL descending.
func (s *ResultStore) ListStrategyResults(ctx context.Context, runID string) ([]*domain.StrategyResult, error) {
	if runID == "" {
		return nil, storage.ErrInvalidInput
	}

	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	query := `
		SELECT strategy_id, pnl_lamports, roi_pct, win_rate_pct,
		       wins, losses, trades, tokens_total, tokens_skipped,
		       biggest_win, biggest_loss, max_drawdown_pct
		FROM strategy_results
		WHERE run_id = $1
		ORDER BY pnl_lamports DESC, strategy_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query run results: %w", err)
	}
	defer rows.Close()

	var results []*domain.StrategyResult
	for rows.Next() {
		var res domain.StrategyResult
		err := rows.Scan(
			&res.StrategyID, &res.PnLLamports, &res.ROIPct, &res.WinRatePct,
			&res.Wins, &res.Losses, &res.Trades, &res.TokensTotal, &res.TokensSkipped,
			&res.BiggestWin, &res.BiggestLoss, &res.MaxDrawdownPct,
		)
		if err != nil {
			return nil, fmt.Errorf("scan strategy result: %w", err)
		}
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run results: %w", err)
	}
	return results, nil
}

// BestStrategyResults returns the best-N results by PnL descending.
func (s *ResultStore) BestStrategyResults(ctx context.Context, n int) ([]*domain.StrategyResult, error) {
	if n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT strategy_id, pnl_lamports, roi_pct, win_rate_pct,
		       wins, losses, trades, tokens_total, tokens_skipped,
		       biggest_win, biggest_loss, max_drawdown_pct
		FROM strategy_results
		ORDER BY pnl_lamports DESC, strategy_id ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("query best results: %w", err)
	}
	defer rows.Close()

	var results []*domain.StrategyResult
	for rows.Next() {
		var res domain.StrategyResult
		err := rows.Scan(
			&res.StrategyID, &res.PnLLamports, &res.ROIPct, &res.WinRatePct,
			&res.Wins, &res.Losses, &res.Trades, &res.TokensTotal, &res.TokensSkipped,
			&res.BiggestWin, &res.BiggestLoss, &res.MaxDrawdownPct,
		)
		if err != nil {
			return nil, fmt.Errorf("scan strategy result: %w", err)
		}
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strategy results: %w", err)
	}
	return results, nil
}

// tokenResults loads the per-token detail map for a slot.
func (s *ResultStore) tokenResults(ctx context.Context, runID, slotID string) (map[string]*domain.SimulationResult, error) {
	query := `SELECT detail FROM token_results WHERE run_id = $1 AND slot_id = $2`

	rows, err := s.pool.Query(ctx, query, runID, slotID)
	if err != nil {
		return nil, fmt.Errorf("query token results: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.SimulationResult)
	for rows.Next() {
		var detail []byte
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("scan token result: %w", err)
		}
		var res domain.SimulationResult
		if err := json.Unmarshal(detail, &res); err != nil {
			return nil, fmt.Errorf("unmarshal token result: %w", err)
		}
		out[res.Mint] = &res
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token results: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
