// Package lookup answers point queries against a token history series:
// the price in effect at a timestamp, and the observed extremes.
package lookup

import (
	"errors"

	"solana-strategy-lab/internal/domain"
)

// ErrNoPriceData is returned when a series holds no usable price.
var ErrNoPriceData = errors.New("no price data available")

// PriceAt returns the price in effect at or before the target timestamp,
// skipping null-price snapshots. If every price before the target is
// null, the first usable price of the series is returned.
// Returns ErrNoPriceData when the series has no usable price at all.
func PriceAt(target int64, entries []*domain.HistoryEntry) (float64, error) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].TimestampMs <= target && entries[i].PriceSOL != nil {
			return *entries[i].PriceSOL, nil
		}
	}

	// No usable price before target: fall forward to the first one.
	for _, e := range entries {
		if e.PriceSOL != nil {
			return *e.PriceSOL, nil
		}
	}
	return 0, ErrNoPriceData
}

// Peak returns the highest price of the series and its timestamp.
// Returns ErrNoPriceData when the series has no usable price.
func Peak(entries []*domain.HistoryEntry) (price float64, timestampMs int64, err error) {
	found := false
	for _, e := range entries {
		if e.PriceSOL == nil {
			continue
		}
		if !found || *e.PriceSOL > price {
			price = *e.PriceSOL
			timestampMs = e.TimestampMs
			found = true
		}
	}
	if !found {
		return 0, 0, ErrNoPriceData
	}
	return price, timestampMs, nil
}

// Trough returns the lowest price of the series at or after the given
// timestamp. Returns ErrNoPriceData when no usable price follows it.
func Trough(from int64, entries []*domain.HistoryEntry) (price float64, timestampMs int64, err error) {
	found := false
	for _, e := range entries {
		if e.TimestampMs < from || e.PriceSOL == nil {
			continue
		}
		if !found || *e.PriceSOL < price {
			price = *e.PriceSOL
			timestampMs = e.TimestampMs
			found = true
		}
	}
	if !found {
		return 0, 0, ErrNoPriceData
	}
	return price, timestampMs, nil
}
