package simulation

import (
	"math/rand"

	"solana-strategy-lab/internal/domain"
)

// fixedSeed backs the randomized model when no source is injected, so
// replays without explicit seeding still produce one stable sequence.
const fixedSeed = 1

// fillPrice resolves the executed price for a decision taken at
// history[idx] under the configured slippage model. Slippage always
// moves against the trader: buys fill higher, sells fill lower.
func (s *Simulator) fillPrice(idx int, history []*domain.HistoryEntry, decisionPrice float64, buy bool) float64 {
	switch s.cfg.Slippage.Mode {
	case SlippageRandomized:
		factor := s.rng.Float64() * s.cfg.Slippage.Pct / 100
		if buy {
			return decisionPrice * (1 + factor)
		}
		return decisionPrice * (1 - factor)
	case SlippageClosestEntry:
		return closestEntryPrice(idx, history, s.cfg.LatencyMs, decisionPrice)
	default:
		// Off: a fixed slippage constant.
		if buy {
			return decisionPrice * (1 + s.cfg.Slippage.Pct/100)
		}
		return decisionPrice * (1 - s.cfg.Slippage.Pct/100)
	}
}

// closestEntryPrice samples the neighboring snapshot whose timestamp is
// numerically closest to "decision time + 25% of execution latency".
// Real order latency is partially absorbed before the price is sampled.
// The earlier index wins ties.
func closestEntryPrice(idx int, history []*domain.HistoryEntry, latencyMs int64, decisionPrice float64) float64 {
	target := history[idx].TimestampMs + latencyMs/4

	best := decisionPrice
	bestDist := int64(-1)
	for _, i := range []int{idx - 1, idx, idx + 1} {
		if i < 0 || i >= len(history) {
			continue
		}
		price, ok := history[i].Price()
		if !ok {
			continue
		}
		dist := history[i].TimestampMs - target
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			best = price
		}
	}
	return best
}

func newRNG(cfg SlippageConfig) *rand.Rand {
	if cfg.Rand != nil {
		return cfg.Rand
	}
	return rand.New(rand.NewSource(fixedSeed))
}
