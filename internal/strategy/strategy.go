// Package strategy implements the decision framework driven by the
// execution simulator: rule-based and prediction-driven variants behind
// one capability-set interface.
package strategy

import (
	"context"

	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/orders"
)

// Decision reason codes. Sell reasons come from the orders package and
// use the domain constants; buy/exit reasons are strategy-level.
const (
	ReasonIntervalsMatched     = "intervals_matched"
	ReasonIntervalMiss         = "interval_miss"
	ReasonNoPrice              = "no_price"
	ReasonNoVariation          = "no_variation"
	ReasonBelowThreshold       = "below_threshold"
	ReasonAwaitingConfirmation = "awaiting_confirmation"
	ReasonConfidence           = "confidence"
	ReasonPredictionError      = "prediction_error"
	ReasonDownsideError        = "downside_prediction_error"
	ReasonDownsideVeto         = "downside_veto"
)

// BuyDecision is the outcome of one buy evaluation.
type BuyDecision struct {
	Buy        bool
	Reason     string
	Confidence float64
	Meta       map[string]string // raw status/body for prediction failures
}

// SellDecision is the outcome of one sell evaluation.
type SellDecision struct {
	Sell       bool
	Reason     string
	Confidence float64
	Meta       map[string]string
}

// ExitDecision requests ending a token's simulation without a trade.
type ExitDecision struct {
	Exit    bool
	Code    string
	Message string
}

// Position is the single open position a strategy instance may hold.
// Created by AfterBuy, destroyed by AfterSell; owned exclusively by the
// strategy instance.
type Position struct {
	EntryPrice float64
	EntryTx    *domain.TradeTransaction
	OpenedAtMs int64
	Holdings   int64 // token base units
	Limits     *orders.Limits
}

// Strategy is the capability set every decision variant implements.
// The simulator drives exactly one strategy instance per token series;
// implementations are not safe for concurrent use.
type Strategy interface {
	// ID returns the strategy identifier (includes parameters).
	ID() string

	// ShouldBuy evaluates the snapshot at history[idx] while no position
	// is open.
	ShouldBuy(ctx context.Context, token *domain.TokenInfo, idx int, history []*domain.HistoryEntry) (*BuyDecision, error)

	// AfterBuy records the opened position and returns the order limits
	// derived from the fill price.
	AfterBuy(fillPrice float64, tx *domain.TradeTransaction) *orders.Limits

	// ShouldSell evaluates the snapshot at history[idx] while a position
	// is open.
	ShouldSell(ctx context.Context, idx int, history []*domain.HistoryEntry) (*SellDecision, error)

	// AfterSell clears the position after a completed sell.
	AfterSell()

	// ShouldExit evaluates whether to end the token's simulation while no
	// position is open. elapsedMs is the time since the first snapshot.
	ShouldExit(ctx context.Context, idx int, history []*domain.HistoryEntry, elapsedMs int64) (*ExitDecision, error)

	// Position returns the open position, or nil.
	Position() *Position

	// ResetState restores the instance to its pre-run state so it can be
	// replayed against the next token series.
	ResetState()
}
