package strategy

import (
	"context"
	"errors"
	"testing"

	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/orders"
	"solana-strategy-lab/internal/prediction"
)

func f64(v float64) *float64 { return &v }

// Helper to create a snapshot series with the given prices, one entry
// per second.
func makeHistory(prices []float64) []*domain.HistoryEntry {
	result := make([]*domain.HistoryEntry, len(prices))
	for i, p := range prices {
		price := p
		result[i] = &domain.HistoryEntry{
			TimestampMs: int64(i) * 1000,
			PriceSOL:    &price,
		}
	}
	return result
}

func testToken() *domain.TokenInfo {
	return &domain.TokenInfo{Mint: "TestMint1111111111111111111111111111111111"}
}

func TestIntervalContains(t *testing.T) {
	tests := []struct {
		name string
		iv   *Interval
		v    float64
		want bool
	}{
		{"nil interval matches anything", nil, 42, true},
		{"inside both bounds", &Interval{Min: f64(1), Max: f64(10)}, 5, true},
		{"below min", &Interval{Min: f64(1)}, 0.5, false},
		{"above max", &Interval{Max: f64(10)}, 11, false},
		{"min boundary inclusive", &Interval{Min: f64(1)}, 1, true},
		{"max boundary inclusive", &Interval{Max: f64(10)}, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.iv.Contains(tt.v); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestRuleStrategy_BuyRequiresAllIntervals(t *testing.T) {
	rules := RuleConfig{
		PriceSOL:     &Interval{Min: f64(0.5), Max: f64(2)},
		MarketCapSOL: &Interval{Min: f64(100)},
	}
	s := NewRuleStrategy("rules-1", rules, orders.Config{})
	ctx := context.Background()

	history := makeHistory([]float64{1.0})
	history[0].MarketCapSOL = f64(200)

	dec, err := s.ShouldBuy(ctx, testToken(), 0, history)
	if err != nil {
		t.Fatalf("ShouldBuy failed: %v", err)
	}
	if !dec.Buy || dec.Reason != ReasonIntervalsMatched {
		t.Errorf("expected buy, got %+v", dec)
	}

	// One failing interval blocks the buy.
	history[0].MarketCapSOL = f64(50)
	dec, err = s.ShouldBuy(ctx, testToken(), 0, history)
	if err != nil {
		t.Fatalf("ShouldBuy failed: %v", err)
	}
	if dec.Buy || dec.Reason != ReasonIntervalMiss {
		t.Errorf("expected interval miss, got %+v", dec)
	}
}

func TestRuleStrategy_NilMetricFailsConfiguredInterval(t *testing.T) {
	rules := RuleConfig{
		TopHoldersPct: &Interval{Max: f64(40)},
	}
	s := NewRuleStrategy("rules-2", rules, orders.Config{})

	history := makeHistory([]float64{1.0})
	// TopHoldersPct left nil: the configured interval cannot hold.
	dec, err := s.ShouldBuy(context.Background(), testToken(), 0, history)
	if err != nil {
		t.Fatalf("ShouldBuy failed: %v", err)
	}
	if dec.Buy {
		t.Error("buy approved while a configured metric was absent")
	}
}

func TestRuleStrategy_UnconstrainedConfigAlwaysBuys(t *testing.T) {
	s := NewRuleStrategy("rules-3", RuleConfig{}, orders.Config{})
	history := makeHistory([]float64{0.0001})
	dec, err := s.ShouldBuy(context.Background(), testToken(), 0, history)
	if err != nil {
		t.Fatalf("ShouldBuy failed: %v", err)
	}
	if !dec.Buy {
		t.Errorf("expected buy with no configured intervals, got %+v", dec)
	}
}

func TestRuleStrategy_NullPrice(t *testing.T) {
	s := NewRuleStrategy("rules-4", RuleConfig{}, orders.Config{})
	history := []*domain.HistoryEntry{{TimestampMs: 0}}
	dec, err := s.ShouldBuy(context.Background(), testToken(), 0, history)
	if err != nil {
		t.Fatalf("ShouldBuy failed: %v", err)
	}
	if dec.Buy || dec.Reason != ReasonNoPrice {
		t.Errorf("expected no_price decision, got %+v", dec)
	}
}

func TestRuleStrategy_SellOnStopLoss(t *testing.T) {
	s := NewRuleStrategy("rules-5", RuleConfig{}, orders.Config{StopLossPct: f64(10)})
	ctx := context.Background()
	history := makeHistory([]float64{1.0, 0.95, 0.89})

	tx := &domain.TradeTransaction{TimestampMs: 0, Type: domain.TxBuy, HoldingsAfter: 1000}
	s.AfterBuy(1.0, tx)

	dec, err := s.ShouldSell(ctx, 1, history)
	if err != nil {
		t.Fatalf("ShouldSell failed: %v", err)
	}
	if dec.Sell {
		t.Errorf("sold at -5%%, stop loss is 10%%: %+v", dec)
	}

	dec, err = s.ShouldSell(ctx, 2, history)
	if err != nil {
		t.Fatalf("ShouldSell failed: %v", err)
	}
	if !dec.Sell || dec.Reason != domain.SellReasonStopLoss {
		t.Errorf("expected STOP_LOSS at -11%%, got %+v", dec)
	}
}

func TestRuleStrategy_NoPumpExit(t *testing.T) {
	rules := RuleConfig{
		// Price must double, which never happens here.
		PriceSOL: &Interval{Min: f64(100)},
		Exit: &ExitRules{
			NoPumpTimeoutMs: 5000,
			NoPumpRisePct:   50,
		},
	}
	s := NewRuleStrategy("rules-6", rules, orders.Config{})
	ctx := context.Background()
	history := makeHistory([]float64{1.0, 1.05, 1.1, 1.1, 1.1, 1.12, 1.13})

	// Before the timeout: no exit.
	s.exit.observe(history[0])
	dec, err := s.ShouldExit(ctx, 3, history, 3000)
	if err != nil {
		t.Fatalf("ShouldExit failed: %v", err)
	}
	if dec != nil {
		t.Errorf("exited before timeout: %+v", dec)
	}

	// After the timeout with only +13% rise: exit.
	dec, err = s.ShouldExit(ctx, 6, history, 6000)
	if err != nil {
		t.Fatalf("ShouldExit failed: %v", err)
	}
	if dec == nil || dec.Code != domain.ExitCodeNoPump {
		t.Errorf("expected NO_PUMP_TIMEOUT exit, got %+v", dec)
	}
}

func TestRuleStrategy_DumpExit(t *testing.T) {
	rules := RuleConfig{
		PriceSOL: &Interval{Min: f64(100)},
		Exit:     &ExitRules{DumpDropPct: 40},
	}
	s := NewRuleStrategy("rules-7", rules, orders.Config{})
	ctx := context.Background()
	history := makeHistory([]float64{1.0, 2.0, 1.0})

	s.exit.observe(history[0])
	s.exit.observe(history[1])
	dec, err := s.ShouldExit(ctx, 2, history, 2000)
	if err != nil {
		t.Fatalf("ShouldExit failed: %v", err)
	}
	if dec == nil || dec.Code != domain.ExitCodeTokenDumped {
		t.Errorf("expected TOKEN_DUMPED after -50%% from peak, got %+v", dec)
	}
}

// stubSource returns scripted results in order, then repeats the last.
type stubSource struct {
	results []*prediction.Result
	errs    []error
	calls   int
}

func (s *stubSource) Predict(ctx context.Context, window *prediction.FeatureWindow) (*prediction.Result, error) {
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	if s.errs != nil && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.results[i], nil
}

func okResult(conf float64) *prediction.Result {
	return &prediction.Result{OK: true, Confidence: conf, Status: 200}
}

func newTestPredictionStrategy(t *testing.T, params PredictionParams, buy, sell, downside Source) *PredictionStrategy {
	t.Helper()
	s, err := NewPredictionStrategy("pred-1", params, orders.Config{}, buy, sell, downside)
	if err != nil {
		t.Fatalf("NewPredictionStrategy failed: %v", err)
	}
	return s
}

func TestPredictionStrategy_BuyAboveThreshold(t *testing.T) {
	buy := &stubSource{results: []*prediction.Result{okResult(0.9)}}
	s := newTestPredictionStrategy(t, PredictionParams{BuyThreshold: 0.7}, buy, nil, nil)

	history := makeHistory([]float64{1.0})
	dec, err := s.ShouldBuy(context.Background(), testToken(), 0, history)
	if err != nil {
		t.Fatalf("ShouldBuy failed: %v", err)
	}
	if !dec.Buy || dec.Reason != ReasonConfidence || dec.Confidence != 0.9 {
		t.Errorf("expected confident buy, got %+v", dec)
	}
}

func TestPredictionStrategy_TransportFailureIsDecisionNotError(t *testing.T) {
	buy := &stubSource{results: []*prediction.Result{
		{OK: false, Status: 503, Body: "upstream down"},
	}}
	s := newTestPredictionStrategy(t, PredictionParams{BuyThreshold: 0.7}, buy, nil, nil)

	history := makeHistory([]float64{1.0})
	dec, err := s.ShouldBuy(context.Background(), testToken(), 0, history)
	if err != nil {
		t.Fatalf("transport failure must not be an error: %v", err)
	}
	if dec.Buy || dec.Reason != ReasonPredictionError {
		t.Errorf("expected prediction_error decision, got %+v", dec)
	}
	if dec.Meta["status"] != "503" || dec.Meta["body"] != "upstream down" {
		t.Errorf("diagnostics not carried: %+v", dec.Meta)
	}
}

func TestPredictionStrategy_ContractViolationPropagates(t *testing.T) {
	buy := &stubSource{
		results: []*prediction.Result{nil},
		errs:    []error{prediction.ErrMissingConfidence},
	}
	s := newTestPredictionStrategy(t, PredictionParams{BuyThreshold: 0.7}, buy, nil, nil)

	history := makeHistory([]float64{1.0})
	_, err := s.ShouldBuy(context.Background(), testToken(), 0, history)
	if !errors.Is(err, prediction.ErrMissingConfidence) {
		t.Errorf("expected ErrMissingConfidence, got %v", err)
	}
}

func TestPredictionStrategy_ConsecutiveConfirmation(t *testing.T) {
	buy := &stubSource{results: []*prediction.Result{
		okResult(0.9), // streak 1
		okResult(0.9), // streak 2
		okResult(0.3), // reset
		okResult(0.9), // streak 1
		okResult(0.9), // streak 2
		okResult(0.9), // streak 3: buy
	}}
	s := newTestPredictionStrategy(t, PredictionParams{BuyThreshold: 0.7, ConsecutiveBuys: 3}, buy, nil, nil)
	ctx := context.Background()
	history := makeHistory([]float64{1, 2, 3, 4, 5, 6})

	wantReasons := []string{
		ReasonAwaitingConfirmation,
		ReasonAwaitingConfirmation,
		ReasonBelowThreshold,
		ReasonAwaitingConfirmation,
		ReasonAwaitingConfirmation,
		ReasonConfidence,
	}
	for i, want := range wantReasons {
		dec, err := s.ShouldBuy(ctx, testToken(), i, history)
		if err != nil {
			t.Fatalf("eval %d failed: %v", i, err)
		}
		if dec.Reason != want {
			t.Errorf("eval %d: reason = %s, want %s", i, dec.Reason, want)
		}
		if dec.Buy != (want == ReasonConfidence) {
			t.Errorf("eval %d: buy = %v", i, dec.Buy)
		}
	}
}

func TestPredictionStrategy_DownsideVeto(t *testing.T) {
	buy := &stubSource{results: []*prediction.Result{okResult(0.9)}}
	downside := &stubSource{results: []*prediction.Result{okResult(0.8)}}
	s := newTestPredictionStrategy(t, PredictionParams{
		BuyThreshold:      0.7,
		DownsideMode:      DownsideOnBuyThreshold,
		DownsideThreshold: 0.6,
	}, buy, nil, downside)

	history := makeHistory([]float64{1.0})
	dec, err := s.ShouldBuy(context.Background(), testToken(), 0, history)
	if err != nil {
		t.Fatalf("ShouldBuy failed: %v", err)
	}
	if dec.Buy || dec.Reason != ReasonDownsideVeto {
		t.Errorf("expected downside veto, got %+v", dec)
	}
}

func TestPredictionStrategy_DownsideModes(t *testing.T) {
	t.Run("onBuyThreshold skips downside when primary fails", func(t *testing.T) {
		buy := &stubSource{results: []*prediction.Result{okResult(0.2)}}
		downside := &stubSource{results: []*prediction.Result{okResult(0.9)}}
		s := newTestPredictionStrategy(t, PredictionParams{
			BuyThreshold:      0.7,
			DownsideMode:      DownsideOnBuyThreshold,
			DownsideThreshold: 0.6,
		}, buy, nil, downside)

		history := makeHistory([]float64{1.0})
		if _, err := s.ShouldBuy(context.Background(), testToken(), 0, history); err != nil {
			t.Fatalf("ShouldBuy failed: %v", err)
		}
		if downside.calls != 0 {
			t.Errorf("downside queried %d times, want 0", downside.calls)
		}
	})

	t.Run("always queries downside on every evaluation", func(t *testing.T) {
		buy := &stubSource{results: []*prediction.Result{okResult(0.2)}}
		downside := &stubSource{results: []*prediction.Result{okResult(0.9)}}
		s := newTestPredictionStrategy(t, PredictionParams{
			BuyThreshold:      0.7,
			DownsideMode:      DownsideAlways,
			DownsideThreshold: 0.6,
		}, buy, nil, downside)

		history := makeHistory([]float64{1.0})
		if _, err := s.ShouldBuy(context.Background(), testToken(), 0, history); err != nil {
			t.Fatalf("ShouldBuy failed: %v", err)
		}
		if downside.calls != 1 {
			t.Errorf("downside queried %d times, want 1", downside.calls)
		}
	})
}

func TestPredictionStrategy_NoVariationSkipsCall(t *testing.T) {
	buy := &stubSource{results: []*prediction.Result{okResult(0.9)}}
	s := newTestPredictionStrategy(t, PredictionParams{
		BuyThreshold:    0.7,
		WindowSize:      3,
		SkipNoVariation: true,
	}, buy, nil, nil)

	// Three identical snapshots: dead data.
	history := makeHistory([]float64{1.0, 1.0, 1.0})
	dec, err := s.ShouldBuy(context.Background(), testToken(), 2, history)
	if err != nil {
		t.Fatalf("ShouldBuy failed: %v", err)
	}
	if dec.Buy || dec.Reason != ReasonNoVariation {
		t.Errorf("expected no_variation skip, got %+v", dec)
	}
	if buy.calls != 0 {
		t.Errorf("remote called %d times on dead window, want 0", buy.calls)
	}

	// Variation present: the call goes through.
	history = makeHistory([]float64{1.0, 1.1, 1.2})
	dec, err = s.ShouldBuy(context.Background(), testToken(), 2, history)
	if err != nil {
		t.Fatalf("ShouldBuy failed: %v", err)
	}
	if !dec.Buy {
		t.Errorf("expected buy on varied window, got %+v", dec)
	}
	if buy.calls != 1 {
		t.Errorf("remote called %d times, want 1", buy.calls)
	}
}

func TestPredictionStrategy_LimitsBeforeSellSource(t *testing.T) {
	sell := &stubSource{results: []*prediction.Result{okResult(0.0)}}
	buy := &stubSource{results: []*prediction.Result{okResult(0.9)}}
	s, err := NewPredictionStrategy("pred-sell", PredictionParams{
		BuyThreshold:  0.7,
		SellThreshold: 0.8,
	}, orders.Config{StopLossPct: f64(10)}, buy, sell, nil)
	if err != nil {
		t.Fatalf("NewPredictionStrategy failed: %v", err)
	}

	tx := &domain.TradeTransaction{TimestampMs: 0, Type: domain.TxBuy, HoldingsAfter: 1000}
	s.AfterBuy(1.0, tx)

	history := makeHistory([]float64{1.0, 0.85})
	dec, err := s.ShouldSell(context.Background(), 1, history)
	if err != nil {
		t.Fatalf("ShouldSell failed: %v", err)
	}
	if !dec.Sell || dec.Reason != domain.SellReasonStopLoss {
		t.Errorf("stop loss must fire before the sell source, got %+v", dec)
	}
	if sell.calls != 0 {
		t.Errorf("sell source queried while a limit fired, calls = %d", sell.calls)
	}
}

func TestPredictionStrategy_SellOnPrediction(t *testing.T) {
	sell := &stubSource{results: []*prediction.Result{okResult(0.95)}}
	buy := &stubSource{results: []*prediction.Result{okResult(0.9)}}
	s, err := NewPredictionStrategy("pred-sell2", PredictionParams{
		BuyThreshold:  0.7,
		SellThreshold: 0.8,
	}, orders.Config{}, buy, sell, nil)
	if err != nil {
		t.Fatalf("NewPredictionStrategy failed: %v", err)
	}

	tx := &domain.TradeTransaction{TimestampMs: 0, Type: domain.TxBuy, HoldingsAfter: 1000}
	s.AfterBuy(1.0, tx)

	history := makeHistory([]float64{1.0, 1.2})
	dec, err := s.ShouldSell(context.Background(), 1, history)
	if err != nil {
		t.Fatalf("ShouldSell failed: %v", err)
	}
	if !dec.Sell || dec.Reason != domain.SellReasonPrediction {
		t.Errorf("expected PREDICTION sell, got %+v", dec)
	}
}

func TestPredictionStrategy_ResetStateClearsStreaks(t *testing.T) {
	buy := &stubSource{results: []*prediction.Result{okResult(0.9)}}
	s := newTestPredictionStrategy(t, PredictionParams{BuyThreshold: 0.7, ConsecutiveBuys: 2}, buy, nil, nil)
	ctx := context.Background()
	history := makeHistory([]float64{1, 2, 3})

	if dec, _ := s.ShouldBuy(ctx, testToken(), 0, history); dec.Buy {
		t.Fatal("bought on first confirmation")
	}
	s.ResetState()
	// The streak restarted, so the next pass is again only the first.
	dec, err := s.ShouldBuy(ctx, testToken(), 1, history)
	if err != nil {
		t.Fatalf("ShouldBuy failed: %v", err)
	}
	if dec.Buy || dec.Reason != ReasonAwaitingConfirmation {
		t.Errorf("streak survived ResetState: %+v", dec)
	}
}

func TestAfterBuyOpensPositionWithLimits(t *testing.T) {
	s := NewRuleStrategy("rules-8", RuleConfig{}, orders.Config{TakeProfitPct: f64(50)})
	tx := &domain.TradeTransaction{TimestampMs: 5000, Type: domain.TxBuy, HoldingsAfter: 123456}

	limits := s.AfterBuy(2.0, tx)
	if limits == nil {
		t.Fatal("AfterBuy returned nil limits")
	}
	pos := s.Position()
	if pos == nil {
		t.Fatal("no position after AfterBuy")
	}
	if pos.EntryPrice != 2.0 || pos.Holdings != 123456 || pos.OpenedAtMs != 5000 {
		t.Errorf("position fields wrong: %+v", pos)
	}

	s.AfterSell()
	if s.Position() != nil {
		t.Error("position survived AfterSell")
	}
}

func TestFromConfig(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		_, err := FromConfig(Config{ID: "x", Type: "MARTINGALE"}, nil)
		if !errors.Is(err, ErrUnknownStrategyType) {
			t.Errorf("expected ErrUnknownStrategyType, got %v", err)
		}
	})

	t.Run("rules without block", func(t *testing.T) {
		_, err := FromConfig(Config{ID: "x", Type: TypeRules}, nil)
		if !errors.Is(err, ErrInvalidStrategyConfig) {
			t.Errorf("expected ErrInvalidStrategyConfig, got %v", err)
		}
	})

	t.Run("prediction without buy source", func(t *testing.T) {
		_, err := FromConfig(Config{ID: "x", Type: TypePrediction, Prediction: &PredictionConfig{}}, nil)
		if !errors.Is(err, ErrMissingBuySource) {
			t.Errorf("expected ErrMissingBuySource, got %v", err)
		}
	})

	t.Run("downside mode without source", func(t *testing.T) {
		cfg := Config{ID: "x", Type: TypePrediction, Prediction: &PredictionConfig{
			Buy: &SourceConfig{Endpoints: []EndpointConfig{
				{URL: "http://localhost:9000/predict", Model: "m1"},
			}},
			DownsideMode: DownsideAlways,
		}}
		_, err := FromConfig(cfg, nil)
		if !errors.Is(err, ErrInvalidStrategyConfig) {
			t.Errorf("expected ErrInvalidStrategyConfig, got %v", err)
		}
	})

	t.Run("ensemble source", func(t *testing.T) {
		cfg := Config{ID: "ens", Type: TypePrediction, Prediction: &PredictionConfig{
			BuyThreshold: 0.6,
			Buy: &SourceConfig{Endpoints: []EndpointConfig{
				{URL: "http://localhost:9000/predict", Model: "m1", Weight: 0.7},
				{URL: "http://localhost:9001/predict", Model: "m2", Weight: 0.3},
			}},
		}}
		s, err := FromConfig(cfg, nil)
		if err != nil {
			t.Fatalf("FromConfig failed: %v", err)
		}
		ps, ok := s.(*PredictionStrategy)
		if !ok {
			t.Fatalf("expected *PredictionStrategy, got %T", s)
		}
		if _, ok := ps.buySource.(*prediction.Ensemble); !ok {
			t.Errorf("expected ensemble buy source, got %T", ps.buySource)
		}
	})

	t.Run("empty id gets deterministic hash", func(t *testing.T) {
		cfg := Config{Type: TypeRules, Rules: &RuleConfig{}}
		a, err := FromConfig(cfg, nil)
		if err != nil {
			t.Fatalf("FromConfig failed: %v", err)
		}
		b, err := FromConfig(cfg, nil)
		if err != nil {
			t.Fatalf("FromConfig failed: %v", err)
		}
		if a.ID() == "" {
			t.Fatal("derived id is empty")
		}
		if a.ID() != b.ID() {
			t.Errorf("same config derived different ids: %s vs %s", a.ID(), b.ID())
		}

		other := Config{Type: TypeRules, Rules: &RuleConfig{PriceSOL: &Interval{Min: f64(0.1)}}}
		c, err := FromConfig(other, nil)
		if err != nil {
			t.Fatalf("FromConfig failed: %v", err)
		}
		if c.ID() == a.ID() {
			t.Error("different configs derived the same id")
		}
	})
}
