package domain

// Unit conversion constants. All balances are tracked as integer lamports,
// token holdings as integer base units (6 decimals, the pump.fun standard).
const (
	LamportsPerSOL = int64(1_000_000_000)
	TokenBaseUnits = int64(1_000_000)
)

// HistoryEntry represents one recorded market snapshot for a token.
// Entries are immutable and ordered by timestamp within a series.
// Optional metrics are nullable; the simulator skips entries with a nil price.
type HistoryEntry struct {
	TimestampMs     int64    // Unix timestamp in milliseconds
	PriceSOL        *float64 // price in SOL per whole token (nullable)
	MarketCapSOL    *float64 // market capitalization in SOL
	BondingCurvePct *float64 // bonding-curve progress 0..100
	TopHoldersPct   *float64 // share held by the top holders, 0..100
	DevHoldingPct   *float64 // share held by the creator wallet, 0..100
	HolderCount     *int
	VolumeSOL       *float64 // trailing volume in SOL
}

// Price returns the snapshot price or (0, false) when the price is null.
func (e *HistoryEntry) Price() (float64, bool) {
	if e == nil || e.PriceSOL == nil {
		return 0, false
	}
	return *e.PriceSOL, true
}

// MonitorTiming describes the polling cadence the recording bot used.
// BuyIntervalMs must be an exact multiple of SellIntervalMs.
type MonitorTiming struct {
	BuyIntervalMs  int64
	SellIntervalMs int64
}

// TokenHistory is the ordered, replayable snapshot series for one token.
// It is never mutated during simulation.
type TokenHistory struct {
	Mint    string
	Entries []*HistoryEntry
	Timing  *MonitorTiming // optional per-file monitor timing metadata
}

// LastPrice returns the last non-null price in the series, or (0, false)
// when the series contains no usable price.
func (h *TokenHistory) LastPrice() (float64, bool) {
	for i := len(h.Entries) - 1; i >= 0; i-- {
		if p, ok := h.Entries[i].Price(); ok {
			return p, true
		}
	}
	return 0, false
}
