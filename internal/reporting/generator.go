package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/lookup"
	"solana-strategy-lab/internal/storage"
)

// Generator produces run reports from stored results.
type Generator struct {
	results storage.ResultStore
	now     func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a report generator over a result store.
func NewGenerator(results storage.ResultStore) *Generator {
	return &Generator{
		results: results,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for one run. The series map (entries keyed
// by mint) supplies per-token price context for the winning strategy;
// mints absent from the map simply lose that context.
func (g *Generator) Generate(ctx context.Context, runID string, series map[string][]*domain.HistoryEntry) (*Report, error) {
	run, err := g.results.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	best, err := g.results.ListStrategyResults(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load strategy results: %w", err)
	}

	report := &Report{
		GeneratedAt:    g.now(),
		RunID:          run.RunID,
		Status:         string(run.Status),
		Policy:         string(run.Policy),
		Message:        run.Message,
		StrategyCount:  run.StrategyCount,
		TokenCount:     run.TokenCount,
		InitialBalance: run.InitialBalance,
	}

	for _, sr := range best {
		report.Strategies = append(report.Strategies, strategyRow(sr))
	}
	sort.SliceStable(report.Strategies, func(i, j int) bool {
		return report.Strategies[i].PnLSOL > report.Strategies[j].PnLSOL
	})

	if len(best) > 0 {
		report.BestTokens = g.tokenRows(ctx, run, best[0], series)
	}
	return report, nil
}

func strategyRow(sr *domain.StrategyResult) StrategyRow {
	return StrategyRow{
		StrategyID:     sr.StrategyID,
		PnLSOL:         lamportsToSOL(sr.PnLLamports),
		ROIPct:         sr.ROIPct,
		WinRatePct:     sr.WinRatePct,
		Wins:           sr.Wins,
		Losses:         sr.Losses,
		Trades:         sr.Trades,
		TokensTotal:    sr.TokensTotal,
		TokensSkipped:  sr.TokensSkipped,
		BiggestWinSOL:  lamportsToSOL(sr.BiggestWin),
		BiggestLossSOL: lamportsToSOL(sr.BiggestLoss),
		MaxDrawdownPct: sr.MaxDrawdownPct,
	}
}

// tokenRows builds the winner's per-token section. The detail map may
// live on the listed result already or require a slot fetch. Under the
// all policy each strategy owns a slot named after itself; under
// best_only the winner sits in the single reused "best" slot.
func (g *Generator) tokenRows(ctx context.Context, run *domain.RunRecord, winner *domain.StrategyResult, series map[string][]*domain.HistoryEntry) []TokenRow {
	detail := winner.TokenResults
	if len(detail) == 0 {
		slotID := winner.StrategyID
		if run.Policy == domain.PersistBestOnly {
			slotID = "best"
		}
		full, err := g.results.GetStrategyResult(ctx, run.RunID, slotID)
		if err == nil {
			detail = full.TokenResults
		}
	}

	mints := make([]string, 0, len(detail))
	for mint := range detail {
		mints = append(mints, mint)
	}
	sort.Strings(mints)

	rows := make([]TokenRow, 0, len(mints))
	for _, mint := range mints {
		rows = append(rows, tokenRow(mint, detail[mint], series[mint], run.InitialBalance))
	}
	return rows
}

func tokenRow(mint string, res *domain.SimulationResult, entries []*domain.HistoryEntry, initialBalance int64) TokenRow {
	row := TokenRow{Mint: mint, Traded: res.Traded()}

	if res.Exit != nil {
		row.ExitCode = res.Exit.Code
		return row
	}

	t := res.Trade
	row.ProfitSOL = lamportsToSOL(t.ProfitLamports)
	row.ROIPct = t.ROIPct

	var firstBuy, lastSell *domain.TradeTransaction
	for _, tx := range t.Transactions {
		switch tx.Type {
		case domain.TxBuy:
			if firstBuy == nil {
				firstBuy = tx
			}
		case domain.TxSell:
			lastSell = tx
		}
	}
	if lastSell != nil {
		row.LastSellReason = lastSell.Metadata["reason"]
	}
	if firstBuy == nil {
		return row
	}
	row.FirstBuyPrice = firstBuy.PriceSOL

	peak, _, err := lookup.Peak(entries)
	if err != nil {
		return row
	}
	row.SeriesPeak = peak

	if lastSell != nil && peak > firstBuy.PriceSOL {
		row.PeakCapture = (lastSell.PriceSOL - firstBuy.PriceSOL) / (peak - firstBuy.PriceSOL) * 100
	}
	return row
}

func lamportsToSOL(l int64) float64 {
	return float64(l) / float64(domain.LamportsPerSOL)
}
