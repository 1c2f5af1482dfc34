package strategy

import (
	"context"
	"fmt"

	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/orders"
)

// Interval is a numeric constraint with optional bounds. A nil bound is
// unconstrained on that side.
type Interval struct {
	Min *float64 `yaml:"min" json:"min,omitempty"`
	Max *float64 `yaml:"max" json:"max,omitempty"`
}

// Contains reports whether v satisfies both configured bounds.
func (iv *Interval) Contains(v float64) bool {
	if iv == nil {
		return true
	}
	if iv.Min != nil && v < *iv.Min {
		return false
	}
	if iv.Max != nil && v > *iv.Max {
		return false
	}
	return true
}

// ExitRules terminate a token's simulation before any buy happened.
type ExitRules struct {
	// NoPumpTimeoutMs exits when the price has not risen by
	// NoPumpRisePct percent over the first-seen price within the
	// timeout. Zero disables the rule.
	NoPumpTimeoutMs int64   `yaml:"noPumpTimeoutMs" json:"noPumpTimeoutMs,omitempty"`
	NoPumpRisePct   float64 `yaml:"noPumpRisePct" json:"noPumpRisePct,omitempty"`

	// DumpDropPct exits when the price has fallen this far below the
	// running maximum. Zero disables the rule.
	DumpDropPct float64 `yaml:"dumpDropPct" json:"dumpDropPct,omitempty"`

	// CurveStallPct exits when bonding-curve progress has moved less
	// than this many points since the first snapshot once
	// NoPumpTimeoutMs has elapsed. Zero disables the rule.
	CurveStallPct float64 `yaml:"curveStallPct" json:"curveStallPct,omitempty"`
}

// RuleConfig declares per-field buy intervals. All configured intervals
// must hold for a buy; an absent interval is unconstrained.
type RuleConfig struct {
	PriceSOL      *Interval `yaml:"priceSol" json:"priceSol,omitempty"`
	MarketCapSOL  *Interval `yaml:"marketCapSol" json:"marketCapSol,omitempty"`
	BondingCurve  *Interval `yaml:"bondingCurvePct" json:"bondingCurvePct,omitempty"`
	TopHoldersPct *Interval `yaml:"topHoldersPct" json:"topHoldersPct,omitempty"`
	DevHoldingPct *Interval `yaml:"devHoldingPct" json:"devHoldingPct,omitempty"`
	HolderCount   *Interval `yaml:"holderCount" json:"holderCount,omitempty"`
	VolumeSOL     *Interval `yaml:"volumeSol" json:"volumeSol,omitempty"`

	Exit *ExitRules `yaml:"exit" json:"exit,omitempty"`
}

// exitTracker carries the running observations the exit rules need:
// the first-seen price and curve progress, and the price maximum.
// Shared by the rule-based and prediction-driven variants.
type exitTracker struct {
	rules *ExitRules

	firstPrice float64
	firstCurve float64
	maxPrice   float64
	seeded     bool
}

func (t *exitTracker) observe(entry *domain.HistoryEntry) {
	price, ok := entry.Price()
	if !ok {
		return
	}
	if !t.seeded {
		t.seeded = true
		t.firstPrice = price
		if entry.BondingCurvePct != nil {
			t.firstCurve = *entry.BondingCurvePct
		}
	}
	if price > t.maxPrice {
		t.maxPrice = price
	}
}

// eval applies the configured exit rules to one snapshot. Returns nil
// when no rule fires.
func (t *exitTracker) eval(entry *domain.HistoryEntry, elapsedMs int64) *ExitDecision {
	if t.rules == nil {
		return nil
	}
	t.observe(entry)
	price, ok := entry.Price()
	if !ok {
		return nil
	}

	if t.rules.DumpDropPct > 0 && t.maxPrice > 0 {
		drop := (t.maxPrice - price) / t.maxPrice * 100
		if drop >= t.rules.DumpDropPct {
			return &ExitDecision{
				Exit:    true,
				Code:    domain.ExitCodeTokenDumped,
				Message: fmt.Sprintf("price dropped %.1f%% from peak", drop),
			}
		}
	}

	if t.rules.NoPumpTimeoutMs > 0 && elapsedMs >= t.rules.NoPumpTimeoutMs && t.firstPrice > 0 {
		if t.rules.CurveStallPct > 0 && entry.BondingCurvePct != nil {
			moved := *entry.BondingCurvePct - t.firstCurve
			if moved < t.rules.CurveStallPct {
				return &ExitDecision{
					Exit:    true,
					Code:    domain.ExitCodeCurveStalled,
					Message: fmt.Sprintf("curve moved %.2f points in %dms", moved, elapsedMs),
				}
			}
		}
		rise := (price - t.firstPrice) / t.firstPrice * 100
		if rise < t.rules.NoPumpRisePct {
			return &ExitDecision{
				Exit:    true,
				Code:    domain.ExitCodeNoPump,
				Message: fmt.Sprintf("price rose %.1f%% in %dms, needed %.1f%%", rise, elapsedMs, t.rules.NoPumpRisePct),
			}
		}
	}

	return nil
}

func (t *exitTracker) reset() {
	t.firstPrice = 0
	t.firstCurve = 0
	t.maxPrice = 0
	t.seeded = false
}

// RuleStrategy buys when every configured interval matches the current
// snapshot and sells on order-primitive triggers only.
type RuleStrategy struct {
	base
	exit exitTracker

	id    string
	rules RuleConfig
}

var _ Strategy = (*RuleStrategy)(nil)

// NewRuleStrategy builds a rule strategy with the given order config.
func NewRuleStrategy(id string, rules RuleConfig, orderCfg orders.Config) *RuleStrategy {
	return &RuleStrategy{
		id:    id,
		rules: rules,
		base:  base{orderCfg: orderCfg},
		exit:  exitTracker{rules: rules.Exit},
	}
}

func (s *RuleStrategy) ID() string { return s.id }

// matchField evaluates one interval against a nullable metric. A nil
// metric fails any configured interval.
func matchField(iv *Interval, v *float64) bool {
	if iv == nil {
		return true
	}
	if v == nil {
		return false
	}
	return iv.Contains(*v)
}

func holderCountValue(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

func (s *RuleStrategy) ShouldBuy(ctx context.Context, token *domain.TokenInfo, idx int, history []*domain.HistoryEntry) (*BuyDecision, error) {
	entry := history[idx]
	s.exit.observe(entry)

	price, ok := entry.Price()
	if !ok {
		return &BuyDecision{Buy: false, Reason: ReasonNoPrice}, nil
	}

	matched := matchField(s.rules.PriceSOL, &price) &&
		matchField(s.rules.MarketCapSOL, entry.MarketCapSOL) &&
		matchField(s.rules.BondingCurve, entry.BondingCurvePct) &&
		matchField(s.rules.TopHoldersPct, entry.TopHoldersPct) &&
		matchField(s.rules.DevHoldingPct, entry.DevHoldingPct) &&
		matchField(s.rules.HolderCount, holderCountValue(entry.HolderCount)) &&
		matchField(s.rules.VolumeSOL, entry.VolumeSOL)

	if !matched {
		return &BuyDecision{Buy: false, Reason: ReasonIntervalMiss}, nil
	}
	return &BuyDecision{Buy: true, Reason: ReasonIntervalsMatched}, nil
}

func (s *RuleStrategy) ShouldSell(ctx context.Context, idx int, history []*domain.HistoryEntry) (*SellDecision, error) {
	entry := history[idx]
	s.exit.observe(entry)

	price, ok := entry.Price()
	if !ok {
		return &SellDecision{Sell: false, Reason: ReasonNoPrice}, nil
	}
	if reason := s.limitsTriggered(price); reason != "" {
		return &SellDecision{Sell: true, Reason: reason}, nil
	}
	return &SellDecision{Sell: false}, nil
}

// ShouldExit applies the configured pre-buy exit rules.
func (s *RuleStrategy) ShouldExit(ctx context.Context, idx int, history []*domain.HistoryEntry, elapsedMs int64) (*ExitDecision, error) {
	return s.exit.eval(history[idx], elapsedMs), nil
}

func (s *RuleStrategy) ResetState() {
	s.base.ResetState()
	s.exit.reset()
}
