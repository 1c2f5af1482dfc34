// Package runner orchestrates many simulations: it drives a list of
// strategy instances across a fixed set of token snapshot series,
// accumulates per-strategy statistics, persists results, and emits
// progress events, under cooperative pause/resume/abort control.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"solana-strategy-lab/internal/control"
	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/events"
	"solana-strategy-lab/internal/idhash"
	"solana-strategy-lab/internal/observability"
	"solana-strategy-lab/internal/simulation"
	"solana-strategy-lab/internal/storage"
	"solana-strategy-lab/internal/strategy"
)

// bestSlotID is the single reused result slot of the best_only policy.
const bestSlotID = "best"

// Runner errors
var (
	ErrNoStrategies = errors.New("run needs at least one strategy")
	ErrNoAssets     = errors.New("run needs at least one token series")
)

// Asset pairs a token's static info with its snapshot series.
type Asset struct {
	Info    *domain.TokenInfo
	History *domain.TokenHistory
}

// Status is the synchronous progress snapshot for external polling.
type Status struct {
	RunID          string
	Status         domain.RunStatus
	StrategyID     string
	StrategyIndex  int
	StrategyCount  int
	TokenIndex     int
	TokenCount     int
	PnLLamports    int64
	ROIPct         float64
	MaxDrawdownPct float64
	Trades         int
	Wins           int
	Losses         int
}

// Options configures a Runner.
type Options struct {
	SimConfig simulation.Config
	Results   storage.ResultStore
	Publisher events.Publisher
	Token     *control.Token
	Policy    domain.PersistPolicy
	Logger    *log.Logger

	// PausePoll bounds each sleep of the pause loop.
	PausePoll time.Duration
}

// Runner executes one run at a time. The control token may be shared
// with a command handler that flips it concurrently.
type Runner struct {
	simCfg    simulation.Config
	results   storage.ResultStore
	emitter   *events.Emitter
	token     *control.Token
	policy    domain.PersistPolicy
	logger    *log.Logger
	pausePoll time.Duration

	mu     sync.Mutex
	status Status
}

// New creates a runner. Results must be non-nil; Publisher and Token
// may be nil.
func New(opts Options) (*Runner, error) {
	if opts.Results == nil {
		return nil, errors.New("runner needs a result store")
	}
	if err := opts.SimConfig.Validate(); err != nil {
		return nil, err
	}
	token := opts.Token
	if token == nil {
		token = control.NewToken()
	}
	policy := opts.Policy
	if policy == "" {
		policy = domain.PersistAll
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "[runner] ", log.LstdFlags)
	}
	pausePoll := opts.PausePoll
	if pausePoll <= 0 {
		pausePoll = 200 * time.Millisecond
	}
	return &Runner{
		simCfg:    opts.SimConfig,
		results:   opts.Results,
		emitter:   events.NewEmitter(opts.Publisher),
		token:     token,
		policy:    policy,
		logger:    logger,
		pausePoll: pausePoll,
	}, nil
}

// Token returns the control token so a command handler can share it.
func (r *Runner) Token() *control.Token {
	return r.token
}

// Status returns the current progress snapshot.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Run drives every strategy across every asset. It returns the final
// run record; per-asset simulation errors are isolated and logged, only
// setup faults and context cancellation abort the whole run.
func (r *Runner) Run(ctx context.Context, strategies []strategy.Strategy, assets []*Asset) (*domain.RunRecord, error) {
	if len(strategies) == 0 {
		return nil, ErrNoStrategies
	}
	if len(assets) == 0 {
		return nil, ErrNoAssets
	}

	run := &domain.RunRecord{
		RunID:          uuid.NewString(),
		Status:         domain.RunStatusRunning,
		Policy:         r.policy,
		StrategyCount:  len(strategies),
		TokenCount:     len(assets),
		InitialBalance: r.simCfg.InitialBalance,
		CreatedAtMs:    time.Now().UnixMilli(),
		UpdatedAtMs:    time.Now().UnixMilli(),
	}
	if err := r.results.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	r.emitRun(ctx, events.TypeRunCreated, run)

	started := time.Now()
	observability.RecordRunStarted()
	defer observability.RecordRunEnded()

	var (
		best       *domain.StrategyResult
		bestFound  bool
		bestWrites int
		abortedAt  = -1
		inFlightID string
	)

	for i, strat := range strategies {
		if r.token.Aborted() {
			abortedAt = i
			break
		}

		inFlightID = strat.ID()
		r.setStatus(func(s *Status) {
			*s = Status{
				RunID:         run.RunID,
				Status:        domain.RunStatusRunning,
				StrategyID:    strat.ID(),
				StrategyIndex: i,
				StrategyCount: len(strategies),
				TokenCount:    len(assets),
			}
		})

		agg := newAggregate()
		tokenResults := make(map[string]*domain.SimulationResult, len(assets))
		aborted := false

		for j, asset := range assets {
			if r.waitWhilePaused(ctx, run) {
				aborted = true
				break
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			res, err := r.simulateOne(ctx, strat, asset)
			if err != nil {
				// Per-asset isolation: one bad series must not sink
				// the whole sweep.
				r.logger.Printf("%s: %s: simulation failed: %v", strat.ID(), asset.History.Mint, err)
				agg.applyError()
				continue
			}

			tokenResults[res.Mint] = res
			agg.apply(res)
			r.setStatus(func(s *Status) {
				s.TokenIndex = j + 1
				s.PnLLamports = agg.pnl
				s.ROIPct = agg.roi(r.simCfg.InitialBalance)
				s.MaxDrawdownPct = agg.maxDrawdown
				s.Trades = agg.trades
				s.Wins = agg.wins
				s.Losses = agg.losses
			})

			if r.policy == domain.PersistAll {
				if err := r.results.InsertTokenResult(ctx, run.RunID, strat.ID(), res); err != nil {
					r.logger.Printf("%s: persist token result %s: %v", strat.ID(), res.Mint, err)
				}
				r.emitter.Emit(ctx, &events.Event{
					Type:        events.TypeTokenResultAdded,
					RunID:       run.RunID,
					EntityID:    run.RunID + "/" + strat.ID() + "/" + res.Mint,
					TokenResult: res,
				})
			}
		}

		if aborted || r.token.Aborted() {
			abortedAt = i
			break
		}

		sr := agg.finalize(strat.ID(), r.simCfg.InitialBalance, tokenResults)

		switch r.policy {
		case domain.PersistBestOnly:
			if !bestFound || sr.PnLLamports > best.PnLLamports {
				best = sr
				bestFound = true
				run.BestPnL = sr.PnLLamports
				run.BestStrategyID = sr.StrategyID
				// The reused slot carries only the summary until the
				// winner is known; detail is materialized at the end.
				summary := *sr
				summary.TokenResults = nil
				if err := r.results.UpsertStrategyResult(ctx, run.RunID, bestSlotID, &summary); err != nil {
					r.logger.Printf("%s: persist best slot: %v", sr.StrategyID, err)
				}
				r.emitStrategyResult(ctx, run.RunID, bestSlotID, &summary, bestWrites > 0)
				bestWrites++
				r.updateRun(ctx, run)
			}
		default:
			if !bestFound || sr.PnLLamports > run.BestPnL {
				bestFound = true
				run.BestPnL = sr.PnLLamports
				run.BestStrategyID = sr.StrategyID
			}
			if err := r.results.UpsertStrategyResult(ctx, run.RunID, strat.ID(), sr); err != nil {
				r.logger.Printf("%s: persist strategy result: %v", sr.StrategyID, err)
			}
			r.emitStrategyResult(ctx, run.RunID, strat.ID(), sr, false)
			r.updateRun(ctx, run)
		}
	}

	if abortedAt >= 0 {
		run.Status = domain.RunStatusAborted
		run.Message = fmt.Sprintf("aborted during strategy %s (%d of %d)", inFlightID, abortedAt+1, len(strategies))
	} else {
		run.Status = domain.RunStatusCompleted
		if r.policy == domain.PersistBestOnly && best != nil {
			// Materialize the winner's per-asset detail.
			if err := r.results.UpsertStrategyResult(ctx, run.RunID, bestSlotID, best); err != nil {
				r.logger.Printf("%s: persist winner detail: %v", best.StrategyID, err)
			}
			for _, res := range best.TokenResults {
				if err := r.results.InsertTokenResult(ctx, run.RunID, bestSlotID, res); err != nil {
					r.logger.Printf("%s: persist winner token %s: %v", best.StrategyID, res.Mint, err)
				}
			}
			r.emitStrategyResult(ctx, run.RunID, bestSlotID, best, true)
		}
	}
	r.updateRun(ctx, run)
	r.setStatus(func(s *Status) {
		s.Status = run.Status
	})
	observability.RecordRunFinished(string(run.Status), time.Since(started).Seconds())
	return run, nil
}

// simulateOne runs one token through a fresh simulator around the
// shared strategy instance.
func (r *Runner) simulateOne(ctx context.Context, strat strategy.Strategy, asset *Asset) (*domain.SimulationResult, error) {
	sim, err := simulation.New(r.simCfg, strat, simulation.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := sim.Run(ctx, asset.Info, asset.History)
	elapsed := time.Since(started).Seconds()
	switch {
	case err != nil:
		observability.RecordSimulation("error", elapsed)
	case res.Traded():
		observability.RecordSimulation("traded", elapsed)
	default:
		observability.RecordSimulation("exited", elapsed)
		if res.Exit != nil {
			observability.RecordTokenSkipped(res.Exit.Code)
		}
	}
	return res, err
}

// waitWhilePaused parks the loop while the token is paused, mirroring
// the pause into the run row. Reports whether an abort arrived.
func (r *Runner) waitWhilePaused(ctx context.Context, run *domain.RunRecord) bool {
	if r.token.Aborted() {
		return true
	}
	if !r.token.Paused() {
		return false
	}

	run.Status = domain.RunStatusPaused
	r.updateRun(ctx, run)
	r.setStatus(func(s *Status) { s.Status = domain.RunStatusPaused })
	r.logger.Printf("%s: paused", run.RunID)
	observability.RecordPauseWait()

	for r.token.Paused() {
		if err := ctx.Err(); err != nil {
			return false
		}
		r.token.Wait(r.pausePoll)
	}
	if r.token.Aborted() {
		return true
	}

	run.Status = domain.RunStatusRunning
	r.updateRun(ctx, run)
	r.setStatus(func(s *Status) { s.Status = domain.RunStatusRunning })
	r.logger.Printf("%s: resumed", run.RunID)
	return false
}

func (r *Runner) setStatus(mutate func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mutate(&r.status)
}

func (r *Runner) updateRun(ctx context.Context, run *domain.RunRecord) {
	run.UpdatedAtMs = time.Now().UnixMilli()
	if err := r.results.UpdateRun(ctx, run); err != nil {
		r.logger.Printf("%s: update run: %v", run.RunID, err)
	}
	r.emitRun(ctx, events.TypeRunUpdated, run)
}

func (r *Runner) emitRun(ctx context.Context, eventType string, run *domain.RunRecord) {
	copied := *run
	r.emitter.Emit(ctx, &events.Event{
		Type:     eventType,
		RunID:    run.RunID,
		EntityID: run.RunID,
		Run:      &copied,
	})
}

func (r *Runner) emitStrategyResult(ctx context.Context, runID, slotID string, sr *domain.StrategyResult, updated bool) {
	eventType := events.TypeStrategyResultAdded
	if updated {
		eventType = events.TypeStrategyResultUpdated
	}
	r.emitter.Emit(ctx, &events.Event{
		Type:           eventType,
		RunID:          runID,
		EntityID:       idhash.ComputeResultID(runID, slotID),
		StrategyResult: sr,
	})
}
