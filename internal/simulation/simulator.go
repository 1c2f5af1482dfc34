// Package simulation replays one token's snapshot series against one
// strategy instance and produces the economic result of its decisions.
package simulation

import (
	"context"
	"io"
	"log"
	"math/rand"
	"strconv"

	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/observability"
	"solana-strategy-lab/internal/strategy"
)

// Simulator executes a single-token trade simulation. Not safe for
// concurrent use; one simulator drives one strategy instance.
type Simulator struct {
	cfg    Config
	strat  strategy.Strategy
	rng    *rand.Rand
	logger *log.Logger
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Simulator) {
		s.logger = l
	}
}

// New validates the config and builds a simulator around a strategy.
func New(cfg Config, strat strategy.Strategy, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{
		cfg:    cfg,
		strat:  strat,
		rng:    newRNG(cfg.Slippage),
		logger: log.New(io.Discard, "[simulate] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run replays the snapshot series. The strategy's state is reset before
// the first snapshot so one instance can be replayed across tokens.
func (s *Simulator) Run(ctx context.Context, token *domain.TokenInfo, history *domain.TokenHistory) (*domain.SimulationResult, error) {
	entries := history.Entries
	if len(entries) == 0 {
		return nil, ErrNoSnapshots
	}

	// Post-buy cadence: the ratio of the recording bot's two polling
	// intervals. Must divide evenly or the replay cannot line up.
	postBuyStep := 1
	if t := history.Timing; t != nil && t.SellIntervalMs > 0 {
		if t.BuyIntervalMs%t.SellIntervalMs != 0 {
			return nil, ErrTimingMismatch
		}
		postBuyStep = int(t.BuyIntervalMs / t.SellIntervalMs)
	}

	s.strat.ResetState()

	var (
		balance     = s.cfg.InitialBalance
		holdings    int64
		txs         []*domain.TradeTransaction
		exit        *domain.ExitOutcome
		firstBuyTs  int64
		boughtOnce  bool
		lastPrice   float64
		peakEquity  = s.cfg.InitialBalance
		maxDrawdown float64
		startTs     = entries[0].TimestampMs
		step        = 1
	)

	markDrawdown := func() {
		equity := balance
		if holdings > 0 && lastPrice > 0 {
			equity += tokensToLamports(holdings, lastPrice)
		}
		if equity > peakEquity {
			peakEquity = equity
		}
		if peakEquity > 0 {
			dd := float64(peakEquity-equity) / float64(peakEquity) * 100
			if dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	idx := 0
loop:
	for idx < len(entries) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := entries[idx]
		next := idx + step

		// A non-positive price is as unusable as a null one: the fill
		// math divides by it.
		price, ok := entry.Price()
		if !ok || price <= 0 {
			s.logger.Printf("%s: snapshot %d has no usable price, skipping", history.Mint, idx)
			idx = next
			continue
		}
		lastPrice = price

		if s.strat.Position() == nil {
			// Funds gate before any strategy work: a partial buy is
			// never attempted.
			if balance < s.cfg.minimumSpend(!boughtOnce) {
				if len(txs) == 0 {
					exit = &domain.ExitOutcome{
						Code:        domain.ExitCodeNoFunds,
						Message:     "balance below minimum spend",
						TimestampMs: entry.TimestampMs,
					}
				}
				break loop
			}

			dec, err := s.strat.ShouldBuy(ctx, token, idx, entries)
			if err != nil {
				return nil, err
			}
			if dec.Buy {
				fill := s.fillPrice(idx, entries, price, true)
				tx := s.executeBuy(entry.TimestampMs, idx, fill, &balance, &holdings, boughtOnce, dec.Reason)
				txs = append(txs, tx)
				if !boughtOnce {
					boughtOnce = true
					firstBuyTs = entry.TimestampMs
				}
				s.strat.AfterBuy(fill, tx)
				step = postBuyStep
				markDrawdown()
				idx = s.advancePast(idx, entries, entry.TimestampMs+s.cfg.LatencyMs)
				continue
			}

			ed, err := s.strat.ShouldExit(ctx, idx, entries, entry.TimestampMs-startTs)
			if err != nil {
				return nil, err
			}
			if ed != nil && ed.Exit {
				if len(txs) == 0 {
					exit = &domain.ExitOutcome{
						Code:        ed.Code,
						Message:     ed.Message,
						TimestampMs: entry.TimestampMs,
					}
				}
				markDrawdown()
				break loop
			}
		} else {
			pos := s.strat.Position()
			reason := ""

			dec, err := s.strat.ShouldSell(ctx, idx, entries)
			if err != nil {
				return nil, err
			}
			if dec.Sell {
				reason = dec.Reason
			}
			if reason == "" && s.cfg.AutoSellTimeoutMs > 0 && entry.TimestampMs-pos.OpenedAtMs >= s.cfg.AutoSellTimeoutMs {
				reason = domain.SellReasonAutoSellTimeout
			}
			if reason == "" && next >= len(entries) && s.cfg.SellUnclosedAtEnd {
				reason = domain.SellReasonEndOfData
			}

			if reason != "" {
				fill := s.fillPrice(idx, entries, price, false)
				tx := s.executeSell(entry.TimestampMs, idx, fill, &balance, &holdings, reason)
				txs = append(txs, tx)
				s.strat.AfterSell()
				markDrawdown()
				if s.cfg.OnlyOneFullTrade {
					break loop
				}
				idx = s.advancePast(idx, entries, entry.TimestampMs+s.cfg.LatencyMs)
				continue
			}
		}

		markDrawdown()
		idx = next
	}

	result := &domain.SimulationResult{Mint: history.Mint}
	if exit != nil {
		result.Exit = exit
		return result, nil
	}

	holdingsValue := int64(0)
	if holdings > 0 {
		if p, ok := history.LastPrice(); ok && p > 0 {
			holdingsValue = tokensToLamports(holdings, p)
		}
	}
	profit := balance + holdingsValue - s.cfg.InitialBalance
	result.Trade = &domain.TradeOutcome{
		Transactions:      txs,
		FinalBalance:      balance,
		Holdings:          holdings,
		HoldingsValue:     holdingsValue,
		ProfitLamports:    profit,
		ROIPct:            float64(profit) / float64(s.cfg.InitialBalance) * 100,
		MaxDrawdownPct:    maxDrawdown,
		FirstBuyTimestamp: firstBuyTs,
	}
	return result, nil
}

// executeBuy debits the buy amount plus fees and credits the tokens the
// spend purchases at the fill price.
func (s *Simulator) executeBuy(ts int64, idx int, fill float64, balance, holdings *int64, boughtOnce bool, reason string) *domain.TradeTransaction {
	gross := -s.cfg.BuyAmount
	fee := s.cfg.PriorityFee + s.cfg.Tip
	if !boughtOnce {
		fee += s.cfg.AccountCreationFee
	}
	net := gross - fee
	*balance += net

	tokens := lamportsToTokens(s.cfg.BuyAmount, fill)
	*holdings += tokens

	observability.RecordTrade()
	return &domain.TradeTransaction{
		TimestampMs:   ts,
		Type:          domain.TxBuy,
		GrossLamports: gross,
		NetLamports:   net,
		FeeLamports:   fee,
		PriceSOL:      fill,
		TokenAmount:   tokens,
		HoldingsAfter: *holdings,
		BalanceAfter:  *balance,
		Metadata:      s.txMetadata(idx, reason),
	}
}

// executeSell liquidates the whole position at the fill price.
func (s *Simulator) executeSell(ts int64, idx int, fill float64, balance, holdings *int64, reason string) *domain.TradeTransaction {
	gross := tokensToLamports(*holdings, fill)
	fee := s.cfg.PriorityFee + s.cfg.Tip
	net := gross - fee
	*balance += net

	sold := *holdings
	*holdings = 0

	observability.RecordTrade()
	return &domain.TradeTransaction{
		TimestampMs:   ts,
		Type:          domain.TxSell,
		GrossLamports: gross,
		NetLamports:   net,
		FeeLamports:   fee,
		PriceSOL:      fill,
		TokenAmount:   sold,
		HoldingsAfter: 0,
		BalanceAfter:  *balance,
		Metadata:      s.txMetadata(idx, reason),
	}
}

func (s *Simulator) txMetadata(idx int, reason string) map[string]string {
	mode := s.cfg.Slippage.Mode
	if mode == "" {
		mode = SlippageOff
	}
	return map[string]string{
		"snapshotIndex": strconv.Itoa(idx),
		"reason":        reason,
		"slippageMode":  mode,
	}
}

// advancePast returns the index of the first snapshot at or after the
// target time. Snapshots inside the latency window could not have been
// reacted to, so they are skipped.
func (s *Simulator) advancePast(idx int, entries []*domain.HistoryEntry, targetMs int64) int {
	j := idx + 1
	for j < len(entries) && entries[j].TimestampMs < targetMs {
		j++
	}
	return j
}

func lamportsToTokens(lamports int64, price float64) int64 {
	return int64(float64(lamports) / float64(domain.LamportsPerSOL) / price * float64(domain.TokenBaseUnits))
}

func tokensToLamports(tokens int64, price float64) int64 {
	return int64(float64(tokens) / float64(domain.TokenBaseUnits) * price * float64(domain.LamportsPerSOL))
}
