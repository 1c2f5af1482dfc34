package events

import (
	"context"
	"sync"
)

// MemoryPublisher records events in order. Used by tests and by runs
// that want the event stream inspectable after the fact.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []*Event
}

var _ Publisher = (*MemoryPublisher)(nil)

// NewMemoryPublisher creates an empty recorder.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish appends a copy of the event.
func (p *MemoryPublisher) Publish(ctx context.Context, event *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *event
	p.events = append(p.events, &copied)
	return nil
}

// Events returns the recorded events in publish order.
func (p *MemoryPublisher) Events() []*Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Event, len(p.events))
	copy(out, p.events)
	return out
}

// ByType returns the recorded events of one type.
func (p *MemoryPublisher) ByType(eventType string) []*Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
