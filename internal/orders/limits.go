package orders

import "solana-strategy-lab/internal/domain"

// Config selects which primitives a position carries. Nil fields are
// not configured.
type Config struct {
	StopLossPct         *float64                  `yaml:"stopLossPct" json:"stopLossPct,omitempty"`
	TrailingStopLossPct *float64                  `yaml:"trailingStopLossPct" json:"trailingStopLossPct,omitempty"`
	TakeProfitPct       *float64                  `yaml:"takeProfitPct" json:"takeProfitPct,omitempty"`
	TrailingTakeProfit  *TrailingTakeProfitConfig `yaml:"trailingTakeProfit" json:"trailingTakeProfit,omitempty"`
}

// TrailingTakeProfitConfig holds the two-phase trigger parameters.
type TrailingTakeProfitConfig struct {
	ProfitPct float64 `yaml:"profitPct" json:"profitPct"`
	StopPct   float64 `yaml:"stopPct" json:"stopPct"`
}

// Limits bundles the active order primitives of one open position.
type Limits struct {
	takeProfit         *TakeProfit
	trailingTakeProfit *TrailingTakeProfit
	trailingStopLoss   *TrailingStopLoss
	stopLoss           *StopLoss
}

// NewLimits instantiates the configured primitives against an entry price.
func NewLimits(entryPrice float64, cfg Config) *Limits {
	l := &Limits{}
	if cfg.TakeProfitPct != nil {
		l.takeProfit = NewTakeProfit(entryPrice, *cfg.TakeProfitPct)
	}
	if cfg.TrailingTakeProfit != nil {
		l.trailingTakeProfit = NewTrailingTakeProfit(entryPrice, cfg.TrailingTakeProfit.ProfitPct, cfg.TrailingTakeProfit.StopPct)
	}
	if cfg.TrailingStopLossPct != nil {
		l.trailingStopLoss = NewTrailingStopLoss(entryPrice, *cfg.TrailingStopLossPct)
	}
	if cfg.StopLossPct != nil {
		l.stopLoss = NewStopLoss(entryPrice, *cfg.StopLossPct)
	}
	return l
}

// Update feeds the current price to every configured primitive and returns
// the sell reason of the first trigger that fired, or "" when none did.
//
// Evaluation order is fixed: take-profit, trailing take-profit, trailing
// stop-loss, stop-loss. Profit-taking is checked before loss-cutting.
// Every primitive sees the price even when an earlier one fires, so
// trailing state stays consistent across steps.
func (l *Limits) Update(price float64) string {
	reason := ""
	if l.takeProfit != nil && l.takeProfit.Update(price) && reason == "" {
		reason = domain.SellReasonTakeProfit
	}
	if l.trailingTakeProfit != nil && l.trailingTakeProfit.Update(price) && reason == "" {
		reason = domain.SellReasonTrailingTakeProfit
	}
	if l.trailingStopLoss != nil && l.trailingStopLoss.Update(price) && reason == "" {
		reason = domain.SellReasonTrailingStopLoss
	}
	if l.stopLoss != nil && l.stopLoss.Update(price) && reason == "" {
		reason = domain.SellReasonStopLoss
	}
	return reason
}
