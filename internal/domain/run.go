package domain

// RunStatus is the orchestrator state machine:
// Running → Paused ⇄ Running → {Completed | Aborted}.
// Failed is reserved for runs aborted by an unrecoverable setup error.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusPaused    RunStatus = "PAUSED"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusAborted   RunStatus = "ABORTED"
	RunStatusFailed    RunStatus = "FAILED"
)

// Terminal reports whether the status allows no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusAborted || s == RunStatusFailed
}

// PersistPolicy selects how strategy results are persisted during a run.
type PersistPolicy string

// Persistence policies.
const (
	// PersistAll streams and stores every strategy's result.
	PersistAll PersistPolicy = "all"

	// PersistBestOnly reuses a single result slot, overwritten whenever a
	// strategy beats the current best total PnL. Per-token detail is only
	// materialized at the end for the winner.
	PersistBestOnly PersistPolicy = "best_only"
)

// RunRecord is the persisted row describing one orchestrator run.
type RunRecord struct {
	RunID          string
	Status         RunStatus
	Policy         PersistPolicy
	Message        string
	StrategyCount  int
	TokenCount     int
	InitialBalance int64 // lamports per strategy
	BestPnL        int64 // lamports, best strategy total PnL so far
	BestStrategyID string
	CreatedAtMs    int64
	UpdatedAtMs    int64
}
