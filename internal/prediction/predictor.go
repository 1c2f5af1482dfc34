package prediction

import (
	"context"
	"strconv"
	"time"

	"solana-strategy-lab/internal/observability"
)

// Predictor is a cache-aware view of one predictor endpoint under a fixed
// (model, variant) identity. On a cache hit the network call is skipped
// entirely; successful responses are written through with a TTL.
type Predictor struct {
	client  *Client
	cache   Cache
	model   string
	variant string
	ttl     time.Duration

	calls     int // network calls actually made
	cacheHits int
}

// NewPredictor wires a client to a cache under a model identity.
// A nil cache disables caching.
func NewPredictor(client *Client, cache Cache, model, variant string, ttl time.Duration) *Predictor {
	return &Predictor{
		client:  client,
		cache:   cache,
		model:   model,
		variant: variant,
		ttl:     ttl,
	}
}

// Endpoint returns the underlying endpoint URL.
func (p *Predictor) Endpoint() string {
	return p.client.Endpoint()
}

// Calls returns how many network calls were made (cache hits excluded).
func (p *Predictor) Calls() int {
	return p.calls
}

// CacheHits returns how many requests were served from the cache.
func (p *Predictor) CacheHits() int {
	return p.cacheHits
}

// Predict resolves one feature window, consulting the cache first.
// Cached bodies run through the same contract validation as fresh ones.
func (p *Predictor) Predict(ctx context.Context, window *FeatureWindow) (*Result, error) {
	key := CacheKey(p.model, p.variant, window.Mint, window.SnapshotIndex)

	if p.cache != nil {
		cached, hit, err := p.cache.Get(ctx, key)
		if err == nil && hit {
			p.cacheHits++
			observability.RecordPredictionCacheHit()
			return ParseResponse(cached)
		}
		// A cache read error falls through to the network call.
	}

	started := time.Now()
	res, err := p.client.Predict(ctx, window)
	if err != nil {
		return nil, err
	}
	p.calls++
	observability.RecordPredictionCall(p.model, strconv.Itoa(res.Status), time.Since(started).Seconds())

	if res.OK && p.cache != nil && len(res.Raw) > 0 {
		// Write-through failures are not fatal; the next request will
		// just miss again.
		_ = p.cache.Set(ctx, key, res.Raw, p.ttl)
	}
	return res, nil
}
