package runner

import "solana-strategy-lab/internal/domain"

// aggregate is the mutable accumulator for one strategy's run across
// many assets. Mutated only by the runner driving one simulation at a
// time, never shared.
type aggregate struct {
	pnl           int64
	wins          int
	losses        int
	trades        int
	tokensTotal   int
	tokensSkipped int
	biggestWin    int64
	biggestLoss   int64
	maxDrawdown   float64
}

func newAggregate() *aggregate {
	return &aggregate{}
}

// apply folds one token's result into the running totals.
func (a *aggregate) apply(res *domain.SimulationResult) {
	a.tokensTotal++
	if !res.Traded() {
		a.tokensSkipped++
		return
	}

	trade := res.Trade
	for _, tx := range trade.Transactions {
		if tx.Type == domain.TxBuy {
			a.trades++
		}
	}
	a.pnl += trade.ProfitLamports

	if len(trade.Transactions) > 0 {
		if trade.ProfitLamports > 0 {
			a.wins++
			if trade.ProfitLamports > a.biggestWin {
				a.biggestWin = trade.ProfitLamports
			}
		} else if trade.ProfitLamports < 0 {
			a.losses++
			if trade.ProfitLamports < a.biggestLoss {
				a.biggestLoss = trade.ProfitLamports
			}
		}
	}
	if trade.MaxDrawdownPct > a.maxDrawdown {
		a.maxDrawdown = trade.MaxDrawdownPct
	}
}

// applyError counts a token whose simulation failed.
func (a *aggregate) applyError() {
	a.tokensTotal++
	a.tokensSkipped++
}

func (a *aggregate) roi(initialBalance int64) float64 {
	if initialBalance <= 0 {
		return 0
	}
	return float64(a.pnl) / float64(initialBalance) * 100
}

// finalize derives the immutable StrategyResult.
func (a *aggregate) finalize(strategyID string, initialBalance int64, tokenResults map[string]*domain.SimulationResult) *domain.StrategyResult {
	winRate := 0.0
	if decided := a.wins + a.losses; decided > 0 {
		winRate = float64(a.wins) / float64(decided) * 100
	}
	return &domain.StrategyResult{
		StrategyID:     strategyID,
		PnLLamports:    a.pnl,
		ROIPct:         a.roi(initialBalance),
		WinRatePct:     winRate,
		Wins:           a.wins,
		Losses:         a.losses,
		Trades:         a.trades,
		TokensTotal:    a.tokensTotal,
		TokensSkipped:  a.tokensSkipped,
		BiggestWin:     a.biggestWin,
		BiggestLoss:    a.biggestLoss,
		MaxDrawdownPct: a.maxDrawdown,
		TokenResults:   tokenResults,
	}
}
