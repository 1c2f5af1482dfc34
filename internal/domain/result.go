package domain

// Sell reason codes recorded on transactions and decisions.
const (
	SellReasonStopLoss           = "STOP_LOSS"
	SellReasonTrailingStopLoss   = "TRAILING_STOP_LOSS"
	SellReasonTakeProfit         = "TAKE_PROFIT"
	SellReasonTrailingTakeProfit = "TRAILING_TAKE_PROFIT"
	SellReasonAutoSellTimeout    = "AUTO_SELL_TIMEOUT"
	SellReasonEndOfData          = "END_OF_DATA"
	SellReasonPrediction         = "PREDICTION"
)

// Exit codes for simulations that end without a completed trade.
const (
	ExitCodeNoFunds      = "NO_FUNDS_TO_BUY"
	ExitCodeNoPump       = "NO_PUMP_TIMEOUT"
	ExitCodeTokenDumped  = "TOKEN_DUMPED"
	ExitCodeCurveStalled = "CURVE_STALLED"
)

// TradeOutcome holds the economic result of a simulation that traded.
type TradeOutcome struct {
	Transactions      []*TradeTransaction
	FinalBalance      int64   // lamports held at the end
	Holdings          int64   // token base units still held
	HoldingsValue     int64   // holdings marked to the last available price, lamports
	ProfitLamports    int64   // final equity minus initial balance
	ROIPct            float64 // profit / initial balance * 100
	MaxDrawdownPct    float64 // worst peak-to-trough equity decline
	FirstBuyTimestamp int64   // ms, 0 when no buy happened
}

// ExitOutcome describes a simulation that ended on an exit event
// without executing a trade.
type ExitOutcome struct {
	Code        string
	Message     string
	TimestampMs int64
}

// SimulationResult is the per-token result of one simulator run.
// Exactly one of Trade or Exit is set, never both.
type SimulationResult struct {
	Mint  string
	Trade *TradeOutcome
	Exit  *ExitOutcome
}

// Traded reports whether the simulation produced a trade outcome.
func (r *SimulationResult) Traded() bool {
	return r != nil && r.Trade != nil
}

// StrategyResult is the final aggregate for one strategy across all tokens
// of a run, plus the per-token detail keyed by mint.
type StrategyResult struct {
	StrategyID string

	PnLLamports    int64
	ROIPct         float64
	WinRatePct     float64
	Wins           int
	Losses         int
	Trades         int
	TokensTotal    int
	TokensSkipped  int // exit outcomes and per-token errors
	BiggestWin     int64
	BiggestLoss    int64
	MaxDrawdownPct float64

	TokenResults map[string]*SimulationResult
}
