package simulation

import (
	"errors"
	"math/rand"
)

// Simulator errors. All are configuration faults caught before the
// first snapshot is processed.
var (
	ErrTimingMismatch     = errors.New("buy monitor interval is not an exact multiple of sell monitor interval")
	ErrUnknownSlippage    = errors.New("unknown slippage mode")
	ErrNoSnapshots        = errors.New("snapshot series is empty")
	ErrNonPositiveBalance = errors.New("initial balance must be positive")
	ErrNonPositiveBuy     = errors.New("buy amount must be positive")
)

// Slippage modes.
const (
	SlippageOff          = "off"
	SlippageRandomized   = "randomized"
	SlippageClosestEntry = "closestEntry"
)

// SlippageConfig selects the fill-price model.
type SlippageConfig struct {
	Mode string  `yaml:"mode" json:"mode"`
	Pct  float64 `yaml:"pct" json:"pct,omitempty"`

	// Rand drives the randomized mode. Injecting a seeded source keeps
	// replays deterministic; nil falls back to a fixed-seed source.
	Rand *rand.Rand `yaml:"-" json:"-"`
}

// Config tunes one simulator run. All lamport fields are integers; the
// account-creation fee is charged once, on the first buy of a token.
type Config struct {
	InitialBalance     int64 `yaml:"initialBalance" json:"initialBalance"`
	BuyAmount          int64 `yaml:"buyAmount" json:"buyAmount"`
	PriorityFee        int64 `yaml:"priorityFee" json:"priorityFee,omitempty"`
	AccountCreationFee int64 `yaml:"accountCreationFee" json:"accountCreationFee,omitempty"`
	Tip                int64 `yaml:"tip" json:"tip,omitempty"`

	Slippage SlippageConfig `yaml:"slippage" json:"slippage"`

	// LatencyMs models the network round trip of a swap. Snapshots that
	// fall inside the latency window are skipped.
	LatencyMs int64 `yaml:"latencyMs" json:"latencyMs,omitempty"`

	// AutoSellTimeoutMs forces a sell this long after the buy. Zero
	// disables the timeout.
	AutoSellTimeoutMs int64 `yaml:"autoSellTimeoutMs" json:"autoSellTimeoutMs,omitempty"`

	// SellUnclosedAtEnd liquidates an open position on the final
	// snapshot instead of marking it to market.
	SellUnclosedAtEnd bool `yaml:"sellUnclosedAtEnd" json:"sellUnclosedAtEnd,omitempty"`

	// OnlyOneFullTrade stops the token immediately after the first
	// completed buy+sell pair.
	OnlyOneFullTrade bool `yaml:"onlyOneFullTrade" json:"onlyOneFullTrade,omitempty"`
}

// Validate fails fast on configuration faults.
func (c *Config) Validate() error {
	if c.InitialBalance <= 0 {
		return ErrNonPositiveBalance
	}
	if c.BuyAmount <= 0 {
		return ErrNonPositiveBuy
	}
	switch c.Slippage.Mode {
	case "", SlippageOff, SlippageRandomized, SlippageClosestEntry:
	default:
		return ErrUnknownSlippage
	}
	return nil
}

// minimumSpend is the lamport balance required to attempt a buy.
func (c *Config) minimumSpend(firstBuy bool) int64 {
	spend := c.BuyAmount + c.PriorityFee + c.Tip
	if firstBuy {
		spend += c.AccountCreationFee
	}
	return spend
}
