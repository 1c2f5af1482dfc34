// Package control carries the cooperative run-control primitives: a
// token the orchestrator polls at its iteration boundaries, and the
// command messages external clients address to a run.
package control

import (
	"sync"
	"time"

	"solana-strategy-lab/internal/observability"
)

// Commands accepted on the command channel.
const (
	CommandPause         = "PAUSE"
	CommandResume        = "RESUME"
	CommandAbort         = "ABORT"
	CommandStatusRequest = "STATUS_REQUEST"
)

// Command is one message addressed to a run. CorrelationID ties the
// reply back to the request.
type Command struct {
	Type          string `json:"type"`
	RunID         string `json:"runId"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Reply answers STATUS_REQUEST and ABORT commands.
type Reply struct {
	CorrelationID string `json:"correlationId,omitempty"`
	RunID         string `json:"runId"`
	Status        string `json:"status"`

	// AbortedIDs lists the entity ids finalized as aborted, set on
	// ABORT replies only.
	AbortedIDs []string `json:"abortedIds,omitempty"`

	// Payload carries the status snapshot on STATUS_REQUEST replies.
	Payload any `json:"payload,omitempty"`
}

// Token is the shared flag set the orchestrator observes at the top of
// each per-asset iteration. Abort is monotonic: once set it is never
// cleared for the remainder of the run. Safe for concurrent use.
type Token struct {
	mu      sync.Mutex
	paused  bool
	aborted bool
	resume  chan struct{}
}

// NewToken returns a token in the running state.
func NewToken() *Token {
	return &Token{}
}

// Pause suspends the run at its next polling point. Pausing an aborted
// run has no effect.
func (t *Token) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.aborted || t.paused {
		return
	}
	t.paused = true
	t.resume = make(chan struct{})
}

// Resume releases a paused run.
func (t *Token) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.paused {
		return
	}
	t.paused = false
	close(t.resume)
	t.resume = nil
}

// Abort sets the abort flag and releases any paused waiter. Idempotent.
func (t *Token) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.aborted {
		return
	}
	t.aborted = true
	observability.RecordAbort()
	if t.paused {
		t.paused = false
		close(t.resume)
		t.resume = nil
	}
}

// Aborted reports whether the run was aborted.
func (t *Token) Aborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

// Paused reports whether the run is currently suspended.
func (t *Token) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Wait blocks while the token is paused, waking on resume, abort, or
// after maxWait (bounding the sleep so callers re-check their own
// deadlines). It returns immediately when the run is not paused.
func (t *Token) Wait(maxWait time.Duration) {
	t.mu.Lock()
	if !t.paused {
		t.mu.Unlock()
		return
	}
	ch := t.resume
	t.mu.Unlock()

	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	}
}
