package memory

import (
	"context"
	"sort"
	"sync"

	"solana-strategy-lab/internal/domain"
	"solana-strategy-lab/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenHistory // keyed by mint
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.TokenHistory),
	}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertSeries stores a full series. Returns ErrDuplicateKey if the mint exists.
func (s *SnapshotStore) InsertSeries(_ context.Context, h *domain.TokenHistory) error {
	if h == nil || h.Mint == "" || len(h.Entries) == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[h.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	entries := make([]*domain.HistoryEntry, len(h.Entries))
	copy(entries, h.Entries)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TimestampMs < entries[j].TimestampMs
	})

	stored := &domain.TokenHistory{Mint: h.Mint, Entries: entries, Timing: h.Timing}
	s.data[h.Mint] = stored
	return nil
}

// GetByMint retrieves the full series for a mint, ordered by timestamp ASC.
func (s *SnapshotStore) GetByMint(_ context.Context, mint string) (*domain.TokenHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.data[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return h, nil
}

// ListMints returns all mints with stored history, sorted.
func (s *SnapshotStore) ListMints(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mints := make([]string, 0, len(s.data))
	for mint := range s.data {
		mints = append(mints, mint)
	}
	sort.Strings(mints)
	return mints, nil
}
