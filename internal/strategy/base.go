package strategy

import (
	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/orders"
)

// base holds the state shared by every strategy variant: the open
// position with its order primitives, and the consecutive-confirmation
// counters. Variants embed it instead of building a deeper hierarchy.
type base struct {
	orderCfg orders.Config
	position *Position

	buyStreak  int
	sellStreak int
}

// AfterBuy opens the position and instantiates the configured order
// primitives against the fill price.
func (b *base) AfterBuy(fillPrice float64, tx *domain.TradeTransaction) *orders.Limits {
	limits := orders.NewLimits(fillPrice, b.orderCfg)
	b.buyStreak = 0
	b.position = &Position{
		EntryPrice: fillPrice,
		EntryTx:    tx,
		OpenedAtMs: tx.TimestampMs,
		Holdings:   tx.HoldingsAfter,
		Limits:     limits,
	}
	return limits
}

// AfterSell destroys the position.
func (b *base) AfterSell() {
	b.position = nil
	b.sellStreak = 0
}

// Position returns the open position, or nil.
func (b *base) Position() *Position {
	return b.position
}

// ResetState clears position and confirmation state.
func (b *base) ResetState() {
	b.position = nil
	b.buyStreak = 0
	b.sellStreak = 0
}

// limitsTriggered feeds the current price to the position's order
// primitives and returns the first-match sell reason, or "".
func (b *base) limitsTriggered(price float64) string {
	if b.position == nil || b.position.Limits == nil {
		return ""
	}
	return b.position.Limits.Update(price)
}

// confirmBuy updates the consecutive-buy counter with one evaluation
// outcome and reports whether the required streak is reached. Any
// sub-threshold evaluation resets the counter to zero.
func (b *base) confirmBuy(passed bool, required int) bool {
	if !passed {
		b.buyStreak = 0
		return false
	}
	b.buyStreak++
	if required <= 1 {
		return true
	}
	return b.buyStreak >= required
}

// confirmSell is the sell-side counterpart of confirmBuy.
func (b *base) confirmSell(passed bool, required int) bool {
	if !passed {
		b.sellStreak = 0
		return false
	}
	b.sellStreak++
	if required <= 1 {
		return true
	}
	return b.sellStreak >= required
}
