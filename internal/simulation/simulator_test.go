package simulation

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/orders"
	"solana-strategy-lab/internal/strategy"
)

// scriptStrategy buys and sells at scripted snapshot indices.
type scriptStrategy struct {
	buyOn  map[int]bool
	sellOn map[int]bool
	exitOn map[int]*strategy.ExitDecision

	pos *strategy.Position

	buyChecks  []int // indices ShouldBuy was asked about
	sellChecks []int
}

var _ strategy.Strategy = (*scriptStrategy)(nil)

func (s *scriptStrategy) ID() string { return "script" }

func (s *scriptStrategy) ShouldBuy(ctx context.Context, token *domain.TokenInfo, idx int, history []*domain.HistoryEntry) (*strategy.BuyDecision, error) {
	s.buyChecks = append(s.buyChecks, idx)
	if s.buyOn[idx] {
		return &strategy.BuyDecision{Buy: true, Reason: "scripted"}, nil
	}
	return &strategy.BuyDecision{Buy: false}, nil
}

func (s *scriptStrategy) AfterBuy(fillPrice float64, tx *domain.TradeTransaction) *orders.Limits {
	limits := orders.NewLimits(fillPrice, orders.Config{})
	s.pos = &strategy.Position{
		EntryPrice: fillPrice,
		EntryTx:    tx,
		OpenedAtMs: tx.TimestampMs,
		Holdings:   tx.HoldingsAfter,
		Limits:     limits,
	}
	return limits
}

func (s *scriptStrategy) ShouldSell(ctx context.Context, idx int, history []*domain.HistoryEntry) (*strategy.SellDecision, error) {
	s.sellChecks = append(s.sellChecks, idx)
	if s.sellOn[idx] {
		return &strategy.SellDecision{Sell: true, Reason: domain.SellReasonTakeProfit}, nil
	}
	return &strategy.SellDecision{Sell: false}, nil
}

func (s *scriptStrategy) AfterSell() { s.pos = nil }

func (s *scriptStrategy) ShouldExit(ctx context.Context, idx int, history []*domain.HistoryEntry, elapsedMs int64) (*strategy.ExitDecision, error) {
	if s.exitOn != nil {
		return s.exitOn[idx], nil
	}
	return nil, nil
}

func (s *scriptStrategy) Position() *strategy.Position { return s.pos }

func (s *scriptStrategy) ResetState() {
	s.pos = nil
	s.buyChecks = nil
	s.sellChecks = nil
}

func price(v float64) *float64 { return &v }

// makeSeries builds a history with one snapshot per second.
func makeSeries(prices []*float64) *domain.TokenHistory {
	entries := make([]*domain.HistoryEntry, len(prices))
	for i, p := range prices {
		entries[i] = &domain.HistoryEntry{TimestampMs: int64(i) * 1000, PriceSOL: p}
	}
	return &domain.TokenHistory{Mint: "Mint1111", Entries: entries}
}

func baseConfig() Config {
	return Config{
		InitialBalance: 1_000_000_000, // 1 SOL
		BuyAmount:      100_000_000,   // 0.1 SOL
		PriorityFee:    100_000,
		Tip:            50_000,
	}
}

func mustRun(t *testing.T, cfg Config, strat strategy.Strategy, h *domain.TokenHistory) *domain.SimulationResult {
	t.Helper()
	sim, err := New(cfg, strat)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	res, err := sim.Run(context.Background(), &domain.TokenInfo{Mint: h.Mint}, h)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

func TestRun_BuyAndSellAccounting(t *testing.T) {
	cfg := baseConfig()
	cfg.AccountCreationFee = 2_000_000

	strat := &scriptStrategy{
		buyOn:  map[int]bool{0: true},
		sellOn: map[int]bool{2: true},
	}
	h := makeSeries([]*float64{price(0.001), price(0.0015), price(0.002)})

	res := mustRun(t, cfg, strat, h)
	if !res.Traded() {
		t.Fatalf("expected trade outcome, got %+v", res)
	}
	if len(res.Trade.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(res.Trade.Transactions))
	}

	buy, sell := res.Trade.Transactions[0], res.Trade.Transactions[1]
	if buy.GrossLamports != -100_000_000 {
		t.Errorf("buy gross = %d", buy.GrossLamports)
	}
	wantBuyFee := int64(100_000 + 50_000 + 2_000_000)
	if buy.FeeLamports != wantBuyFee {
		t.Errorf("buy fee = %d, want %d", buy.FeeLamports, wantBuyFee)
	}
	if buy.NetLamports != -100_000_000-wantBuyFee {
		t.Errorf("buy net = %d", buy.NetLamports)
	}
	// 0.1 SOL at 0.001 SOL/token buys 100 tokens.
	if buy.TokenAmount != 100*domain.TokenBaseUnits {
		t.Errorf("token amount = %d", buy.TokenAmount)
	}
	if err := buy.Validate(); err != nil {
		t.Errorf("buy violates sign invariant: %v", err)
	}

	// 100 tokens at 0.002 sells for 0.2 SOL.
	if sell.GrossLamports != 200_000_000 {
		t.Errorf("sell gross = %d", sell.GrossLamports)
	}
	if sell.FeeLamports != 150_000 {
		t.Errorf("sell fee = %d", sell.FeeLamports)
	}
	if sell.HoldingsAfter != 0 {
		t.Errorf("holdings after sell = %d", sell.HoldingsAfter)
	}
	if err := sell.Validate(); err != nil {
		t.Errorf("sell violates sign invariant: %v", err)
	}

	wantBalance := cfg.InitialBalance - 100_000_000 - wantBuyFee + 200_000_000 - 150_000
	if res.Trade.FinalBalance != wantBalance {
		t.Errorf("final balance = %d, want %d", res.Trade.FinalBalance, wantBalance)
	}
	wantProfit := wantBalance - cfg.InitialBalance
	if res.Trade.ProfitLamports != wantProfit {
		t.Errorf("profit = %d, want %d", res.Trade.ProfitLamports, wantProfit)
	}
	wantROI := float64(wantProfit) / float64(cfg.InitialBalance) * 100
	if res.Trade.ROIPct != wantROI {
		t.Errorf("ROI = %f, want %f", res.Trade.ROIPct, wantROI)
	}
	if res.Trade.FirstBuyTimestamp != 0 {
		t.Errorf("first buy timestamp = %d", res.Trade.FirstBuyTimestamp)
	}
}

func TestRun_InsufficientFundsExit(t *testing.T) {
	cfg := baseConfig()
	cfg.InitialBalance = 1 // one lamport

	strat := &scriptStrategy{buyOn: map[int]bool{0: true}}
	h := makeSeries([]*float64{price(0.001), price(0.002)})

	res := mustRun(t, cfg, strat, h)
	if res.Traded() {
		t.Fatalf("expected exit outcome, got trade")
	}
	if res.Exit.Code != domain.ExitCodeNoFunds {
		t.Errorf("exit code = %s", res.Exit.Code)
	}
	if len(strat.buyChecks) != 0 {
		t.Errorf("strategy consulted despite insufficient funds: %v", strat.buyChecks)
	}
}

func TestRun_NullPriceSkipped(t *testing.T) {
	cfg := baseConfig()
	strat := &scriptStrategy{
		buyOn:  map[int]bool{2: true},
		sellOn: map[int]bool{3: true},
	}
	h := makeSeries([]*float64{price(0.001), nil, price(0.001), price(0.002)})

	res := mustRun(t, cfg, strat, h)
	if !res.Traded() || len(res.Trade.Transactions) != 2 {
		t.Fatalf("expected full trade around the null snapshot, got %+v", res)
	}
	// The null snapshot was never offered to the strategy.
	for _, idx := range strat.buyChecks {
		if idx == 1 {
			t.Error("strategy consulted on a null-price snapshot")
		}
	}
}

func TestRun_NonPositivePriceSkipped(t *testing.T) {
	cfg := baseConfig()
	strat := &scriptStrategy{
		buyOn:  map[int]bool{0: true, 1: true, 2: true},
		sellOn: map[int]bool{3: true},
	}
	h := makeSeries([]*float64{price(0), price(-0.001), price(0.001), price(0.002)})

	res := mustRun(t, cfg, strat, h)
	if !res.Traded() || len(res.Trade.Transactions) != 2 {
		t.Fatalf("expected full trade past the unusable snapshots, got %+v", res)
	}
	for _, idx := range strat.buyChecks {
		if idx < 2 {
			t.Errorf("strategy consulted at index %d, where the price is not positive", idx)
		}
	}
	for _, tx := range res.Trade.Transactions {
		if err := tx.Validate(); err != nil {
			t.Errorf("transaction %s: %v", tx.Type, err)
		}
	}
	if res.Trade.ProfitLamports > 0 && res.Trade.ROIPct > 1000 {
		t.Errorf("implausible profit %d (roi %.2f%%)", res.Trade.ProfitLamports, res.Trade.ROIPct)
	}
}

func TestRun_LatencySkipsSnapshots(t *testing.T) {
	cfg := baseConfig()
	cfg.LatencyMs = 2500 // skips the two snapshots after the buy

	strat := &scriptStrategy{buyOn: map[int]bool{0: true}}
	h := makeSeries([]*float64{price(0.001), price(0.002), price(0.003), price(0.004), price(0.005)})

	mustRun(t, cfg, strat, h)
	// After buying at index 0, the first sell check must be at the
	// snapshot at or after t=2500ms, which is index 3.
	if len(strat.sellChecks) == 0 || strat.sellChecks[0] != 3 {
		t.Errorf("sell checks = %v, want first check at index 3", strat.sellChecks)
	}
}

func TestRun_PostBuyStepUsesTimingRatio(t *testing.T) {
	cfg := baseConfig()
	strat := &scriptStrategy{buyOn: map[int]bool{1: true}}
	h := makeSeries([]*float64{
		price(0.001), price(0.001), price(0.001), price(0.001),
		price(0.001), price(0.001), price(0.001), price(0.001),
	})
	h.Timing = &domain.MonitorTiming{BuyIntervalMs: 3000, SellIntervalMs: 1000}

	mustRun(t, cfg, strat, h)
	// Pre-buy the step is 1 (indices 0, 1), post-buy the step is 3.
	if len(strat.buyChecks) < 2 || strat.buyChecks[0] != 0 || strat.buyChecks[1] != 1 {
		t.Errorf("buy checks = %v", strat.buyChecks)
	}
	for i := 1; i < len(strat.sellChecks); i++ {
		if strat.sellChecks[i]-strat.sellChecks[i-1] != 3 {
			t.Errorf("post-buy step not 3: checks = %v", strat.sellChecks)
			break
		}
	}
}

func TestRun_TimingMismatchFailsFast(t *testing.T) {
	strat := &scriptStrategy{}
	h := makeSeries([]*float64{price(0.001)})
	h.Timing = &domain.MonitorTiming{BuyIntervalMs: 2500, SellIntervalMs: 1000}

	sim, err := New(baseConfig(), strat)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, err = sim.Run(context.Background(), &domain.TokenInfo{}, h)
	if !errors.Is(err, ErrTimingMismatch) {
		t.Errorf("expected ErrTimingMismatch, got %v", err)
	}
}

func TestRun_UnknownSlippageModeFailsFast(t *testing.T) {
	cfg := baseConfig()
	cfg.Slippage.Mode = "martingale"
	_, err := New(cfg, &scriptStrategy{})
	if !errors.Is(err, ErrUnknownSlippage) {
		t.Errorf("expected ErrUnknownSlippage, got %v", err)
	}
}

func TestRun_AutoSellTimeout(t *testing.T) {
	cfg := baseConfig()
	cfg.AutoSellTimeoutMs = 2000

	strat := &scriptStrategy{buyOn: map[int]bool{0: true}}
	h := makeSeries([]*float64{price(0.001), price(0.001), price(0.001), price(0.001)})

	res := mustRun(t, cfg, strat, h)
	if len(res.Trade.Transactions) != 2 {
		t.Fatalf("expected forced sell, got %d transactions", len(res.Trade.Transactions))
	}
	sell := res.Trade.Transactions[1]
	if sell.Metadata["reason"] != domain.SellReasonAutoSellTimeout {
		t.Errorf("sell reason = %s", sell.Metadata["reason"])
	}
	if sell.TimestampMs != 2000 {
		t.Errorf("sell at %dms, want 2000", sell.TimestampMs)
	}
}

func TestRun_SellUnclosedAtEnd(t *testing.T) {
	cfg := baseConfig()
	cfg.SellUnclosedAtEnd = true

	strat := &scriptStrategy{buyOn: map[int]bool{0: true}}
	h := makeSeries([]*float64{price(0.001), price(0.001), price(0.002)})

	res := mustRun(t, cfg, strat, h)
	if len(res.Trade.Transactions) != 2 {
		t.Fatalf("expected closing sell, got %d transactions", len(res.Trade.Transactions))
	}
	if res.Trade.Transactions[1].Metadata["reason"] != domain.SellReasonEndOfData {
		t.Errorf("sell reason = %s", res.Trade.Transactions[1].Metadata["reason"])
	}
	if res.Trade.Holdings != 0 {
		t.Errorf("holdings = %d after closing sell", res.Trade.Holdings)
	}
}

func TestRun_UnclosedPositionMarkedToMarket(t *testing.T) {
	cfg := baseConfig()
	strat := &scriptStrategy{buyOn: map[int]bool{0: true}}
	h := makeSeries([]*float64{price(0.001), price(0.002)})

	res := mustRun(t, cfg, strat, h)
	if len(res.Trade.Transactions) != 1 {
		t.Fatalf("expected open position, got %d transactions", len(res.Trade.Transactions))
	}
	// 100 tokens marked at the last price 0.002 = 0.2 SOL.
	if res.Trade.HoldingsValue != 200_000_000 {
		t.Errorf("holdings value = %d", res.Trade.HoldingsValue)
	}
	if res.Trade.Holdings != 100*domain.TokenBaseUnits {
		t.Errorf("holdings = %d", res.Trade.Holdings)
	}
}

func TestRun_OnlyOneFullTrade(t *testing.T) {
	cfg := baseConfig()
	cfg.OnlyOneFullTrade = true

	strat := &scriptStrategy{
		buyOn:  map[int]bool{0: true, 2: true},
		sellOn: map[int]bool{1: true, 3: true},
	}
	h := makeSeries([]*float64{price(0.001), price(0.002), price(0.001), price(0.002), price(0.001)})

	res := mustRun(t, cfg, strat, h)
	if len(res.Trade.Transactions) != 2 {
		t.Errorf("expected exactly one buy+sell pair, got %d transactions", len(res.Trade.Transactions))
	}
}

func TestRun_ExitDecisionEndsSimulation(t *testing.T) {
	strat := &scriptStrategy{
		exitOn: map[int]*strategy.ExitDecision{
			1: {Exit: true, Code: domain.ExitCodeTokenDumped, Message: "dumped"},
		},
	}
	h := makeSeries([]*float64{price(0.001), price(0.0001), price(0.0001)})

	res := mustRun(t, baseConfig(), strat, h)
	if res.Traded() {
		t.Fatalf("expected exit outcome")
	}
	if res.Exit.Code != domain.ExitCodeTokenDumped || res.Exit.TimestampMs != 1000 {
		t.Errorf("exit = %+v", res.Exit)
	}
}

func TestSlippage_OffAppliesFixedConstant(t *testing.T) {
	cfg := baseConfig()
	cfg.Slippage = SlippageConfig{Mode: SlippageOff, Pct: 10}

	strat := &scriptStrategy{buyOn: map[int]bool{0: true}}
	h := makeSeries([]*float64{price(0.001), price(0.001)})

	res := mustRun(t, cfg, strat, h)
	buy := res.Trade.Transactions[0]
	if math.Abs(buy.PriceSOL-0.0011) > 1e-12 {
		t.Errorf("buy fill = %v, want 0.0011", buy.PriceSOL)
	}
}

func TestSlippage_RandomizedIsBoundedAndDeterministic(t *testing.T) {
	run := func() float64 {
		cfg := baseConfig()
		cfg.Slippage = SlippageConfig{
			Mode: SlippageRandomized,
			Pct:  5,
			Rand: rand.New(rand.NewSource(42)),
		}
		strat := &scriptStrategy{buyOn: map[int]bool{0: true}}
		h := makeSeries([]*float64{price(0.001), price(0.001)})
		res := mustRun(t, cfg, strat, h)
		return res.Trade.Transactions[0].PriceSOL
	}

	first := run()
	if first < 0.001 || first > 0.00105 {
		t.Errorf("randomized fill %v outside [price, price*1.05]", first)
	}
	if second := run(); second != first {
		t.Errorf("same seed produced different fills: %v vs %v", first, second)
	}
}

func TestSlippage_ClosestEntry(t *testing.T) {
	cfg := baseConfig()
	cfg.Slippage = SlippageConfig{Mode: SlippageClosestEntry}
	cfg.LatencyMs = 3600 // sample target is t+900ms, closest to the next snapshot

	strat := &scriptStrategy{buyOn: map[int]bool{1: true}}
	h := makeSeries([]*float64{price(0.001), price(0.002), price(0.003)})

	res := mustRun(t, cfg, strat, h)
	buy := res.Trade.Transactions[0]
	if buy.PriceSOL != 0.003 {
		t.Errorf("closestEntry fill = %v, want the later neighbor 0.003", buy.PriceSOL)
	}
}

func TestSlippage_ClosestEntryEarlierIndexWinsTies(t *testing.T) {
	cfg := baseConfig()
	cfg.Slippage = SlippageConfig{Mode: SlippageClosestEntry}
	cfg.LatencyMs = 0 // target equals the decision snapshot's own time

	strat := &scriptStrategy{buyOn: map[int]bool{1: true}}
	// Neighbors are equally distant from the decision snapshot; the
	// decision snapshot itself is distance zero and must win.
	h := makeSeries([]*float64{price(0.001), price(0.002), price(0.003)})

	res := mustRun(t, cfg, strat, h)
	if got := res.Trade.Transactions[0].PriceSOL; got != 0.002 {
		t.Errorf("fill = %v, want 0.002", got)
	}
}

func TestRun_MaxDrawdownMonotone(t *testing.T) {
	cfg := baseConfig()
	strat := &scriptStrategy{buyOn: map[int]bool{0: true}}
	// Price collapses then fully recovers; drawdown must keep the
	// worst point.
	h := makeSeries([]*float64{price(0.001), price(0.0002), price(0.001)})

	res := mustRun(t, cfg, strat, h)
	if res.Trade.MaxDrawdownPct <= 0 {
		t.Errorf("drawdown = %v, want > 0 despite recovery", res.Trade.MaxDrawdownPct)
	}
}

func TestRun_EmptySeries(t *testing.T) {
	sim, err := New(baseConfig(), &scriptStrategy{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, err = sim.Run(context.Background(), &domain.TokenInfo{}, &domain.TokenHistory{Mint: "x"})
	if !errors.Is(err, ErrNoSnapshots) {
		t.Errorf("expected ErrNoSnapshots, got %v", err)
	}
}
