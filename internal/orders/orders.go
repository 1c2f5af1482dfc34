// Package orders implements stateful exit triggers evaluated against a
// stream of prices: stop-loss, trailing stop-loss, take-profit and
// trailing take-profit. State is mutated only through Update.
package orders

// StopLoss triggers when price falls to or below
// entry * (1 - pct/100). Stateless beyond the entry price.
type StopLoss struct {
	entryPrice float64
	pct        float64
}

// NewStopLoss creates a stop-loss for the given entry price and percentage.
func NewStopLoss(entryPrice, pct float64) *StopLoss {
	return &StopLoss{entryPrice: entryPrice, pct: pct}
}

// Update reports whether the stop-loss triggers at the current price.
func (s *StopLoss) Update(price float64) bool {
	return price <= s.entryPrice*(1-s.pct/100)
}

// TrailingStopLoss tracks the highest price observed since entry and
// triggers when price falls pct% below that running high.
type TrailingStopLoss struct {
	highWater float64
	pct       float64
}

// NewTrailingStopLoss creates a trailing stop-loss seeded with the entry price.
func NewTrailingStopLoss(entryPrice, pct float64) *TrailingStopLoss {
	return &TrailingStopLoss{highWater: entryPrice, pct: pct}
}

// Update advances the running high and reports whether the trail triggers.
func (s *TrailingStopLoss) Update(price float64) bool {
	if price > s.highWater {
		s.highWater = price
		return false
	}
	return price <= s.highWater*(1-s.pct/100)
}

// HighWater returns the running high since entry.
func (s *TrailingStopLoss) HighWater() float64 {
	return s.highWater
}

// TakeProfit triggers when price rises to or above
// entry * (1 + pct/100).
type TakeProfit struct {
	entryPrice float64
	pct        float64
}

// NewTakeProfit creates a take-profit for the given entry price and percentage.
func NewTakeProfit(entryPrice, pct float64) *TakeProfit {
	return &TakeProfit{entryPrice: entryPrice, pct: pct}
}

// Update reports whether the take-profit triggers at the current price.
func (t *TakeProfit) Update(price float64) bool {
	return price >= t.entryPrice*(1+t.pct/100)
}

// TrailingTakeProfit is a two-phase trigger. It arms once price first
// reaches entry * (1 + profitPct/100); once armed it tracks the running
// high and triggers when price falls stopPct% below it.
type TrailingTakeProfit struct {
	entryPrice float64
	profitPct  float64
	stopPct    float64

	armed     bool
	highWater float64
}

// NewTrailingTakeProfit creates a trailing take-profit in the inactive phase.
func NewTrailingTakeProfit(entryPrice, profitPct, stopPct float64) *TrailingTakeProfit {
	return &TrailingTakeProfit{
		entryPrice: entryPrice,
		profitPct:  profitPct,
		stopPct:    stopPct,
	}
}

// Update advances the inactive → armed → triggered state machine and
// reports whether the trigger fired at the current price.
func (t *TrailingTakeProfit) Update(price float64) bool {
	if !t.armed {
		if price >= t.entryPrice*(1+t.profitPct/100) {
			t.armed = true
			t.highWater = price
		}
		return false
	}
	if price > t.highWater {
		t.highWater = price
		return false
	}
	return price <= t.highWater*(1-t.stopPct/100)
}

// Armed reports whether the activation threshold has been reached.
func (t *TrailingTakeProfit) Armed() bool {
	return t.armed
}
