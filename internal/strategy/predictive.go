package strategy

import (
	"context"
	"fmt"

	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/orders"
	"solana-strategy-lab/internal/prediction"
)

// Source yields one confidence result per feature window. Satisfied by
// *prediction.Predictor and *prediction.Ensemble.
type Source interface {
	Predict(ctx context.Context, window *prediction.FeatureWindow) (*prediction.Result, error)
}

// Downside query modes.
const (
	DownsideAlways         = "always"
	DownsideOnBuyThreshold = "onBuyThreshold"
)

// Feature keys extractable from a snapshot.
const (
	FeaturePrice        = "priceSol"
	FeatureMarketCap    = "marketCapSol"
	FeatureBondingCurve = "bondingCurvePct"
	FeatureTopHolders   = "topHoldersPct"
	FeatureDevHolding   = "devHoldingPct"
	FeatureHolderCount  = "holderCount"
	FeatureVolume       = "volumeSol"
)

// defaultFeatures is the extraction set when none is configured.
var defaultFeatures = []string{
	FeaturePrice,
	FeatureMarketCap,
	FeatureBondingCurve,
	FeatureTopHolders,
	FeatureDevHolding,
	FeatureHolderCount,
	FeatureVolume,
}

// PredictionParams tunes one prediction-driven strategy instance.
type PredictionParams struct {
	BuyThreshold  float64
	SellThreshold float64

	// WindowSize caps how many trailing snapshots feed one request.
	WindowSize int

	// Features selects which snapshot fields are extracted. Empty means
	// all of them.
	Features []string

	// SkipNoVariation avoids the remote call when every selected
	// feature is identical across the whole window.
	SkipNoVariation bool

	// ConsecutiveBuys and ConsecutiveSells gate execution on a streak
	// of threshold passes. Values below 2 mean no gating.
	ConsecutiveBuys  int
	ConsecutiveSells int

	// DownsideMode is DownsideAlways or DownsideOnBuyThreshold; empty
	// when no downside source is wired.
	DownsideMode      string
	DownsideThreshold float64
}

// PredictionStrategy asks remote confidence predictors whether to buy,
// and optionally whether to sell. Order-primitive triggers always take
// precedence over the sell source.
type PredictionStrategy struct {
	base
	exit exitTracker

	id     string
	mint   string // token under evaluation, set on the first buy check
	params PredictionParams

	buySource  Source
	sellSource Source // optional
	downside   Source // optional
}

var _ Strategy = (*PredictionStrategy)(nil)

// NewPredictionStrategy wires a prediction strategy. sell and downside
// may be nil; a non-empty DownsideMode requires a downside source.
func NewPredictionStrategy(id string, params PredictionParams, orderCfg orders.Config, buy, sell, downside Source) (*PredictionStrategy, error) {
	if buy == nil {
		return nil, fmt.Errorf("%w: prediction strategy %s has no buy source", ErrInvalidStrategyConfig, id)
	}
	if params.DownsideMode != "" && downside == nil {
		return nil, fmt.Errorf("%w: downside mode %q set without a downside source", ErrInvalidStrategyConfig, params.DownsideMode)
	}
	switch params.DownsideMode {
	case "", DownsideAlways, DownsideOnBuyThreshold:
	default:
		return nil, fmt.Errorf("%w: unknown downside mode %q", ErrInvalidStrategyConfig, params.DownsideMode)
	}
	if len(params.Features) == 0 {
		params.Features = defaultFeatures
	}
	if params.WindowSize <= 0 {
		params.WindowSize = 1
	}
	return &PredictionStrategy{
		id:         id,
		params:     params,
		base:       base{orderCfg: orderCfg},
		buySource:  buy,
		sellSource: sell,
		downside:   downside,
	}, nil
}

func (s *PredictionStrategy) ID() string { return s.id }

// extractFeatures pulls the selected non-null fields out of a snapshot.
func extractFeatures(entry *domain.HistoryEntry, keys []string) map[string]float64 {
	out := make(map[string]float64, len(keys))
	for _, k := range keys {
		switch k {
		case FeaturePrice:
			if entry.PriceSOL != nil {
				out[k] = *entry.PriceSOL
			}
		case FeatureMarketCap:
			if entry.MarketCapSOL != nil {
				out[k] = *entry.MarketCapSOL
			}
		case FeatureBondingCurve:
			if entry.BondingCurvePct != nil {
				out[k] = *entry.BondingCurvePct
			}
		case FeatureTopHolders:
			if entry.TopHoldersPct != nil {
				out[k] = *entry.TopHoldersPct
			}
		case FeatureDevHolding:
			if entry.DevHoldingPct != nil {
				out[k] = *entry.DevHoldingPct
			}
		case FeatureHolderCount:
			if entry.HolderCount != nil {
				out[k] = float64(*entry.HolderCount)
			}
		case FeatureVolume:
			if entry.VolumeSOL != nil {
				out[k] = *entry.VolumeSOL
			}
		}
	}
	return out
}

// buildWindow assembles the feature request from the trailing snapshots
// ending at idx, oldest first.
func (s *PredictionStrategy) buildWindow(mint string, idx int, history []*domain.HistoryEntry) *prediction.FeatureWindow {
	start := idx - s.params.WindowSize + 1
	if start < 0 {
		start = 0
	}
	features := make([]map[string]float64, 0, idx-start+1)
	for i := start; i <= idx; i++ {
		features = append(features, extractFeatures(history[i], s.params.Features))
	}
	return &prediction.FeatureWindow{
		Mint:          mint,
		SnapshotIndex: idx,
		Features:      features,
	}
}

// noVariation reports whether every feature map in the window is
// identical. Dead windows carry no signal worth a network round trip.
func noVariation(features []map[string]float64) bool {
	if len(features) < 2 {
		return false
	}
	first := features[0]
	for _, f := range features[1:] {
		if len(f) != len(first) {
			return false
		}
		for k, v := range first {
			fv, ok := f[k]
			if !ok || fv != v {
				return false
			}
		}
	}
	return true
}

func failureMeta(res *prediction.Result) map[string]string {
	return map[string]string{
		"status": fmt.Sprintf("%d", res.Status),
		"body":   res.Body,
	}
}

func (s *PredictionStrategy) ShouldBuy(ctx context.Context, token *domain.TokenInfo, idx int, history []*domain.HistoryEntry) (*BuyDecision, error) {
	entry := history[idx]
	s.exit.observe(entry)
	if token != nil {
		s.mint = token.Mint
	}

	if _, ok := entry.Price(); !ok {
		return &BuyDecision{Buy: false, Reason: ReasonNoPrice}, nil
	}

	window := s.buildWindow(s.mint, idx, history)
	if s.params.SkipNoVariation && noVariation(window.Features) {
		return &BuyDecision{Buy: false, Reason: ReasonNoVariation}, nil
	}

	res, err := s.buySource.Predict(ctx, window)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return &BuyDecision{Buy: false, Reason: ReasonPredictionError, Meta: failureMeta(res)}, nil
	}

	passed := res.Confidence >= s.params.BuyThreshold
	confirmed := s.confirmBuy(passed, s.params.ConsecutiveBuys)

	// The confirmation counter is updated before the downside query so
	// a vetoed evaluation still counts toward the streak.
	var (
		downsideFailed *prediction.Result
		vetoed         bool
		downsideConf   float64
	)
	if s.downside != nil && (s.params.DownsideMode == DownsideAlways || passed) {
		dres, derr := s.downside.Predict(ctx, window)
		if derr != nil {
			return nil, derr
		}
		if !dres.OK {
			downsideFailed = dres
		} else {
			downsideConf = dres.Confidence
			vetoed = dres.Confidence >= s.params.DownsideThreshold
		}
	}

	switch {
	case !passed:
		return &BuyDecision{Buy: false, Reason: ReasonBelowThreshold, Confidence: res.Confidence}, nil
	case !confirmed:
		return &BuyDecision{Buy: false, Reason: ReasonAwaitingConfirmation, Confidence: res.Confidence}, nil
	case downsideFailed != nil:
		return &BuyDecision{Buy: false, Reason: ReasonDownsideError, Confidence: res.Confidence, Meta: failureMeta(downsideFailed)}, nil
	case vetoed:
		return &BuyDecision{
			Buy:        false,
			Reason:     ReasonDownsideVeto,
			Confidence: res.Confidence,
			Meta:       map[string]string{"downsideConfidence": fmt.Sprintf("%.4f", downsideConf)},
		}, nil
	default:
		return &BuyDecision{Buy: true, Reason: ReasonConfidence, Confidence: res.Confidence}, nil
	}
}

func (s *PredictionStrategy) ShouldSell(ctx context.Context, idx int, history []*domain.HistoryEntry) (*SellDecision, error) {
	entry := history[idx]
	s.exit.observe(entry)

	price, ok := entry.Price()
	if !ok {
		return &SellDecision{Sell: false, Reason: ReasonNoPrice}, nil
	}
	if reason := s.limitsTriggered(price); reason != "" {
		return &SellDecision{Sell: true, Reason: reason}, nil
	}
	if s.sellSource == nil {
		return &SellDecision{Sell: false}, nil
	}

	window := s.buildWindow(s.mint, idx, history)
	if s.params.SkipNoVariation && noVariation(window.Features) {
		return &SellDecision{Sell: false, Reason: ReasonNoVariation}, nil
	}

	res, err := s.sellSource.Predict(ctx, window)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return &SellDecision{Sell: false, Reason: ReasonPredictionError, Meta: failureMeta(res)}, nil
	}

	passed := res.Confidence >= s.params.SellThreshold
	if !s.confirmSell(passed, s.params.ConsecutiveSells) {
		reason := ReasonBelowThreshold
		if passed {
			reason = ReasonAwaitingConfirmation
		}
		return &SellDecision{Sell: false, Reason: reason, Confidence: res.Confidence}, nil
	}
	return &SellDecision{Sell: true, Reason: domain.SellReasonPrediction, Confidence: res.Confidence}, nil
}

func (s *PredictionStrategy) ShouldExit(ctx context.Context, idx int, history []*domain.HistoryEntry, elapsedMs int64) (*ExitDecision, error) {
	return s.exit.eval(history[idx], elapsedMs), nil
}

// SetExitRules attaches the pre-buy exit rules shared with the
// rule-based variant.
func (s *PredictionStrategy) SetExitRules(rules *ExitRules) {
	s.exit.rules = rules
}

func (s *PredictionStrategy) ResetState() {
	s.base.ResetState()
	s.exit.reset()
	s.mint = ""
}
