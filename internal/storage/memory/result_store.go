package memory

import (
	"context"
	"sort"
	"sync"

	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/storage"
)

// ResultStore is an in-memory implementation of storage.ResultStore.
type ResultStore struct {
	mu     sync.RWMutex
	runs   map[string]*domain.RunRecord
	slots  map[string]map[string]*domain.StrategyResult        // run_id → slot_id → result
	tokens map[string]map[string]map[string]*domain.SimulationResult // run_id → slot_id → mint
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		runs:   make(map[string]*domain.RunRecord),
		slots:  make(map[string]map[string]*domain.StrategyResult),
		tokens: make(map[string]map[string]map[string]*domain.SimulationResult),
	}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// CreateRun inserts a draft run row. Returns ErrDuplicateKey if run_id exists.
func (s *ResultStore) CreateRun(_ context.Context, run *domain.RunRecord) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *run
	s.runs[run.RunID] = &copy
	return nil
}

// UpdateRun applies a status transition and summary fields.
func (s *ResultStore) UpdateRun(_ context.Context, run *domain.RunRecord) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; !exists {
		return storage.ErrNotFound
	}

	copy := *run
	s.runs[run.RunID] = &copy
	return nil
}

// GetRun retrieves a run by id.
func (s *ResultStore) GetRun(_ context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *run
	return &copy, nil
}

// UpsertStrategyResult inserts or replaces a strategy result slot.
func (s *ResultStore) UpsertStrategyResult(_ context.Context, runID, slotID string, res *domain.StrategyResult) error {
	if runID == "" || slotID == "" || res == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; !exists {
		return storage.ErrNotFound
	}

	if s.slots[runID] == nil {
		s.slots[runID] = make(map[string]*domain.StrategyResult)
	}
	copy := *res
	s.slots[runID][slotID] = &copy
	return nil
}

// GetStrategyResult retrieves one result slot.
func (s *ResultStore) GetStrategyResult(_ context.Context, runID, slotID string) (*domain.StrategyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, exists := s.slots[runID][slotID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *res
	copy.TokenResults = tokenResultsCopy(s.tokens[runID][slotID])
	return &copy, nil
}

// InsertTokenResult adds one token's detail for a strategy slot.
func (s *ResultStore) InsertTokenResult(_ context.Context, runID, slotID string, res *domain.SimulationResult) error {
	if runID == "" || slotID == "" || res == nil || res.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; !exists {
		return storage.ErrNotFound
	}

	if s.tokens[runID] == nil {
		s.tokens[runID] = make(map[string]map[string]*domain.SimulationResult)
	}
	if s.tokens[runID][slotID] == nil {
		s.tokens[runID][slotID] = make(map[string]*domain.SimulationResult)
	}
	if _, exists := s.tokens[runID][slotID][res.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	s.tokens[runID][slotID][res.Mint] = res
	return nil
}

// ListStrategyResults returns every slot of one run, PnL descending.
func (s *ResultStore) ListStrategyResults(_ context.Context, runID string) ([]*domain.StrategyResult, error) {
	if runID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.runs[runID]; !exists {
		return nil, storage.ErrNotFound
	}

	var out []*domain.StrategyResult
	for _, res := range s.slots[runID] {
		copy := *res
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PnLLamports != out[j].PnLLamports {
			return out[i].PnLLamports > out[j].PnLLamports
		}
		return out[i].StrategyID < out[j].StrategyID
	})
	return out, nil
}

// BestStrategyResults returns persisted results ordered by PnL descending.
func (s *ResultStore) BestStrategyResults(_ context.Context, n int) ([]*domain.StrategyResult, error) {
	if n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*domain.StrategyResult
	for _, slots := range s.slots {
		for _, res := range slots {
			copy := *res
			all = append(all, &copy)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].PnLLamports != all[j].PnLLamports {
			return all[i].PnLLamports > all[j].PnLLamports
		}
		return all[i].StrategyID < all[j].StrategyID
	})

	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

// tokenResultsCopy clones a per-token detail map. Results are immutable
// once inserted, so a shallow clone of the map is enough.
func tokenResultsCopy(src map[string]*domain.SimulationResult) map[string]*domain.SimulationResult {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]*domain.SimulationResult, len(src))
	for mint, res := range src {
		out[mint] = res
	}
	return out
}
