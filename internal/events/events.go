// Package events defines the typed progress events the orchestrator
// emits and the publisher boundary that distributes them.
package events

import (
	"context"
	"sync"
	"time"

	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/observability"
)

// Event types.
const (
	TypeRunCreated            = "RUN_CREATED"
	TypeRunUpdated            = "RUN_UPDATED"
	TypeStrategyResultAdded   = "STRATEGY_RESULT_ADDED"
	TypeStrategyResultUpdated = "STRATEGY_RESULT_UPDATED"
	TypeTokenResultAdded      = "TOKEN_RESULT_ADDED"
)

// Event is one progress notification. Version increases monotonically
// per logical entity (run, strategy slot, token result) so subscribers
// can discard stale updates after reconnecting.
type Event struct {
	Type        string `json:"type"`
	RunID       string `json:"runId"`
	EntityID    string `json:"entityId"`
	Version     uint64 `json:"version"`
	TimestampMs int64  `json:"timestampMs"`

	Run            *domain.RunRecord        `json:"run,omitempty"`
	StrategyResult *domain.StrategyResult   `json:"strategyResult,omitempty"`
	TokenResult    *domain.SimulationResult `json:"tokenResult,omitempty"`
}

// Publisher distributes events to downstream subscribers. Publish must
// not block the orchestrator loop indefinitely.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Versioner hands out per-entity monotone version numbers.
type Versioner struct {
	mu       sync.Mutex
	versions map[string]uint64
}

// NewVersioner returns an empty version counter set.
func NewVersioner() *Versioner {
	return &Versioner{versions: make(map[string]uint64)}
}

// Next returns the next version for an entity, starting at 1.
func (v *Versioner) Next(entityID string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.versions[entityID]++
	return v.versions[entityID]
}

// Now is the event timestamp source, overridable in tests.
var Now = func() int64 {
	return time.Now().UnixMilli()
}

// Emitter stamps events with versions and timestamps and forwards them
// to a publisher. A nil publisher drops everything.
type Emitter struct {
	publisher Publisher
	versions  *Versioner
}

// NewEmitter wraps a publisher. publisher may be nil.
func NewEmitter(publisher Publisher) *Emitter {
	return &Emitter{
		publisher: publisher,
		versions:  NewVersioner(),
	}
}

// Emit stamps and publishes one event.
func (e *Emitter) Emit(ctx context.Context, event *Event) error {
	event.Version = e.versions.Next(event.EntityID)
	event.TimestampMs = Now()
	if e.publisher == nil {
		return nil
	}
	observability.RecordEventPublished(event.Type)
	return e.publisher.Publish(ctx, event)
}
