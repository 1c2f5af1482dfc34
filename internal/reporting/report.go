// Package reporting renders a finished run as Markdown and CSV: the
// run summary, the strategy leaderboard, and per-token context for the
// best strategy.
package reporting

import "time"

// Report is the renderable view of one finished run.
type Report struct {
	GeneratedAt time.Time

	RunID   string
	Status  string
	Policy  string
	Message string

	StrategyCount  int
	TokenCount     int
	InitialBalance int64 // lamports

	// Strategies are sorted by PnL descending.
	Strategies []StrategyRow

	// BestTokens holds per-token detail of the winning strategy.
	BestTokens []TokenRow
}

// StrategyRow is one leaderboard entry.
type StrategyRow struct {
	StrategyID     string
	PnLSOL         float64
	ROIPct         float64
	WinRatePct     float64
	Wins           int
	Losses         int
	Trades         int
	TokensTotal    int
	TokensSkipped  int
	BiggestWinSOL  float64
	BiggestLossSOL float64
	MaxDrawdownPct float64
}

// TokenRow is per-token context for the winning strategy. Peak price
// and the price in effect at the first buy come from the series itself,
// so a reader can judge how much of the move the strategy captured.
type TokenRow struct {
	Mint      string
	Traded    bool
	ProfitSOL float64
	ROIPct    float64

	// ExitCode is set for non-traded outcomes.
	ExitCode string

	// LastSellReason is the reason of the final sell, when traded.
	LastSellReason string

	FirstBuyPrice float64 // executed fill price of the first buy
	SeriesPeak    float64 // highest price the series reached
	PeakCapture   float64 // FirstBuyPrice to SeriesPeak headroom actually realized, pct
}
