package strategy

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"solana-strategy-lab/internal/idhash"
	"solana-strategy-lab/internal/orders"
	"solana-strategy-lab/internal/prediction"
)

// Factory errors
var (
	ErrUnknownStrategyType   = errors.New("unknown strategy type")
	ErrInvalidStrategyConfig = errors.New("invalid strategy config")
	ErrMissingEndpoint       = errors.New("PREDICTION requires an endpoint per source")
	ErrMissingBuySource      = errors.New("PREDICTION requires a buy source")
)

// Strategy type identifiers used in config files.
const (
	TypeRules      = "RULES"
	TypePrediction = "PREDICTION"
)

// EndpointConfig declares one predictor endpoint inside a source.
type EndpointConfig struct {
	Name     string  `yaml:"name" json:"name,omitempty"`
	URL      string  `yaml:"url" json:"url"`
	Weight   float64 `yaml:"weight" json:"weight,omitempty"`
	Model    string  `yaml:"model" json:"model"`
	Variant  string  `yaml:"variant" json:"variant,omitempty"`
	CacheTTL int64   `yaml:"cacheTtlMs" json:"cacheTtlMs,omitempty"`
}

// SourceConfig declares a confidence source: a single endpoint, or an
// ensemble of weighted endpoints queried independently.
type SourceConfig struct {
	Endpoints []EndpointConfig `yaml:"endpoints" json:"endpoints"`
}

// PredictionConfig is the config-file shape of PredictionParams plus
// the source declarations.
type PredictionConfig struct {
	Buy      *SourceConfig `yaml:"buy" json:"buy"`
	Sell     *SourceConfig `yaml:"sell" json:"sell,omitempty"`
	Downside *SourceConfig `yaml:"downside" json:"downside,omitempty"`

	BuyThreshold      float64  `yaml:"buyThreshold" json:"buyThreshold"`
	SellThreshold     float64  `yaml:"sellThreshold" json:"sellThreshold,omitempty"`
	WindowSize        int      `yaml:"windowSize" json:"windowSize,omitempty"`
	Features          []string `yaml:"features" json:"features,omitempty"`
	SkipNoVariation   bool     `yaml:"skipNoVariation" json:"skipNoVariation,omitempty"`
	ConsecutiveBuys   int      `yaml:"consecutiveBuys" json:"consecutiveBuys,omitempty"`
	ConsecutiveSells  int      `yaml:"consecutiveSells" json:"consecutiveSells,omitempty"`
	DownsideMode      string   `yaml:"downsideMode" json:"downsideMode,omitempty"`
	DownsideThreshold float64  `yaml:"downsideThreshold" json:"downsideThreshold,omitempty"`

	Exit *ExitRules `yaml:"exit" json:"exit,omitempty"`
}

// Config declares one strategy instance.
type Config struct {
	ID     string        `yaml:"id" json:"id"`
	Type   string        `yaml:"type" json:"type"`
	Orders orders.Config `yaml:"orders" json:"orders"`

	Rules      *RuleConfig       `yaml:"rules" json:"rules,omitempty"`
	Prediction *PredictionConfig `yaml:"prediction" json:"prediction,omitempty"`
}

// FromConfig creates a Strategy from a Config. The cache is shared
// across all prediction sources and may be nil to disable caching.
// Validates required parameters per strategy type. An empty ID is
// filled with a deterministic hash of the config, so generated
// permutations keep stable ids without naming each one.
func FromConfig(cfg Config, cache prediction.Cache) (Strategy, error) {
	if cfg.ID == "" {
		params, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidStrategyConfig, err)
		}
		cfg.ID = idhash.ComputeStrategyID(cfg.Type, string(params))
	}
	switch cfg.Type {
	case TypeRules:
		return fromRuleConfig(cfg)
	case TypePrediction:
		return fromPredictionConfig(cfg, cache)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.Type)
	}
}

func fromRuleConfig(cfg Config) (*RuleStrategy, error) {
	if cfg.Rules == nil {
		return nil, fmt.Errorf("%w: RULES requires a rules block", ErrInvalidStrategyConfig)
	}
	return NewRuleStrategy(cfg.ID, *cfg.Rules, cfg.Orders), nil
}

func fromPredictionConfig(cfg Config, cache prediction.Cache) (*PredictionStrategy, error) {
	pc := cfg.Prediction
	if pc == nil {
		return nil, fmt.Errorf("%w: PREDICTION requires a prediction block", ErrInvalidStrategyConfig)
	}
	if pc.Buy == nil || len(pc.Buy.Endpoints) == 0 {
		return nil, ErrMissingBuySource
	}

	buy, err := buildSource(pc.Buy, cache)
	if err != nil {
		return nil, err
	}
	var sell, downside Source
	if pc.Sell != nil {
		if sell, err = buildSource(pc.Sell, cache); err != nil {
			return nil, err
		}
	}
	if pc.Downside != nil {
		if downside, err = buildSource(pc.Downside, cache); err != nil {
			return nil, err
		}
	}

	params := PredictionParams{
		BuyThreshold:      pc.BuyThreshold,
		SellThreshold:     pc.SellThreshold,
		WindowSize:        pc.WindowSize,
		Features:          pc.Features,
		SkipNoVariation:   pc.SkipNoVariation,
		ConsecutiveBuys:   pc.ConsecutiveBuys,
		ConsecutiveSells:  pc.ConsecutiveSells,
		DownsideMode:      pc.DownsideMode,
		DownsideThreshold: pc.DownsideThreshold,
	}
	s, err := NewPredictionStrategy(cfg.ID, params, cfg.Orders, buy, sell, downside)
	if err != nil {
		return nil, err
	}
	if pc.Exit != nil {
		s.SetExitRules(pc.Exit)
	}
	return s, nil
}

// buildSource turns a source declaration into either a single cached
// predictor or an ensemble of them.
func buildSource(sc *SourceConfig, cache prediction.Cache) (Source, error) {
	if len(sc.Endpoints) == 0 {
		return nil, fmt.Errorf("%w: source has no endpoints", ErrInvalidStrategyConfig)
	}
	predictors := make([]*prediction.Predictor, 0, len(sc.Endpoints))
	for _, ep := range sc.Endpoints {
		if ep.URL == "" {
			return nil, ErrMissingEndpoint
		}
		if ep.Model == "" {
			return nil, fmt.Errorf("%w: endpoint %q has no model identity", ErrInvalidStrategyConfig, ep.URL)
		}
		client := prediction.NewClient(ep.URL)
		ttl := time.Duration(ep.CacheTTL) * time.Millisecond
		predictors = append(predictors, prediction.NewPredictor(client, cache, ep.Model, ep.Variant, ttl))
	}

	if len(predictors) == 1 {
		return predictors[0], nil
	}

	members := make([]prediction.Member, len(predictors))
	for i, p := range predictors {
		w := sc.Endpoints[i].Weight
		if w == 0 {
			w = 1
		}
		name := sc.Endpoints[i].Name
		if name == "" {
			name = sc.Endpoints[i].Model
		}
		members[i] = prediction.Member{Name: name, Weight: w, Predictor: p}
	}
	return prediction.NewEnsemble(members), nil
}
