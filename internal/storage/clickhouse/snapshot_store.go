package clickhouse

import (
	"context"
	"fmt"

	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
// Monitor timing metadata is stored denormalized on every row; a zero
// interval means the series carried no timing metadata.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertSeries stores a full series. Returns ErrDuplicateKey if the mint
// already has entries. ClickHouse MergeTree does not enforce uniqueness,
// so existence is checked explicitly before the batch insert.
func (s *SnapshotStore) InsertSeries(ctx context.Context, h *domain.TokenHistory) error {
	if h == nil || h.Mint == "" || len(h.Entries) == 0 {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, h.Mint)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	var buyInterval, sellInterval int64
	if h.Timing != nil {
		buyInterval = h.Timing.BuyIntervalMs
		sellInterval = h.Timing.SellIntervalMs
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO token_history (
			mint, timestamp_ms, price_sol, market_cap_sol, bonding_curve_pct,
			top_holders_pct, dev_holding_pct, holder_count, volume_sol,
			buy_interval_ms, sell_interval_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range h.Entries {
		err = batch.Append(
			h.Mint, uint64(e.TimestampMs),
			e.PriceSOL, e.MarketCapSOL, e.BondingCurvePct,
			e.TopHoldersPct, e.DevHoldingPct, holderCount(e), e.VolumeSOL,
			uint64(buyInterval), uint64(sellInterval),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint retrieves the full series for a mint, ordered by timestamp ASC.
func (s *SnapshotStore) GetByMint(ctx context.Context, mint string) (*domain.TokenHistory, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT timestamp_ms, price_sol, market_cap_sol, bonding_curve_pct,
		       top_holders_pct, dev_holding_pct, holder_count, volume_sol,
		       buy_interval_ms, sell_interval_ms
		FROM token_history
		WHERE mint = ?
		ORDER BY timestamp_ms ASC
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("query token history: %w", err)
	}
	defer rows.Close()

	h := &domain.TokenHistory{Mint: mint}
	var buyInterval, sellInterval uint64

	for rows.Next() {
		var (
			ts    uint64
			e     domain.HistoryEntry
			count *uint32
		)
		err := rows.Scan(
			&ts, &e.PriceSOL, &e.MarketCapSOL, &e.BondingCurvePct,
			&e.TopHoldersPct, &e.DevHoldingPct, &count, &e.VolumeSOL,
			&buyInterval, &sellInterval,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.TimestampMs = int64(ts)
		if count != nil {
			n := int(*count)
			e.HolderCount = &n
		}
		h.Entries = append(h.Entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history entries: %w", err)
	}

	if len(h.Entries) == 0 {
		return nil, storage.ErrNotFound
	}
	if buyInterval > 0 && sellInterval > 0 {
		h.Timing = &domain.MonitorTiming{
			BuyIntervalMs:  int64(buyInterval),
			SellIntervalMs: int64(sellInterval),
		}
	}
	return h, nil
}

// ListMints returns all mints with stored history, sorted.
func (s *SnapshotStore) ListMints(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT mint FROM token_history ORDER BY mint ASC`)
	if err != nil {
		return nil, fmt.Errorf("query mints: %w", err)
	}
	defer rows.Close()

	var mints []string
	for rows.Next() {
		var mint string
		if err := rows.Scan(&mint); err != nil {
			return nil, fmt.Errorf("scan mint: %w", err)
		}
		mints = append(mints, mint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mints: %w", err)
	}
	return mints, nil
}

// exists checks whether any rows are stored for a mint.
func (s *SnapshotStore) exists(ctx context.Context, mint string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count() FROM token_history WHERE mint = ?`, mint).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// holderCount converts the nullable int to ClickHouse's nullable UInt32.
func holderCount(e *domain.HistoryEntry) *uint32 {
	if e.HolderCount == nil {
		return nil
	}
	n := uint32(*e.HolderCount)
	return &n
}
