// Package snapshots loads recorded token history series from JSON
// files on disk and validates the asset identifiers they carry.
package snapshots

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-strategy-lab/internal/domain"
)

// Source errors
var (
	ErrInvalidMint  = errors.New("invalid mint address")
	ErrEmptySeries  = errors.New("snapshot document has no history entries")
	ErrMissingMint  = errors.New("snapshot document has no mint")
	ErrNoFilesFound = errors.New("no snapshot files under descriptor")
)

// document is the on-disk JSON shape of one recorded series.
type document struct {
	Mint    string          `json:"mint"`
	Symbol  string          `json:"symbol,omitempty"`
	Name    string          `json:"name,omitempty"`
	History []documentEntry `json:"history"`
	Timing  *documentTiming `json:"timing,omitempty"`
}

type documentEntry struct {
	TimestampMs     int64    `json:"timestampMs"`
	PriceSOL        *float64 `json:"priceSol"`
	MarketCapSOL    *float64 `json:"marketCapSol,omitempty"`
	BondingCurvePct *float64 `json:"bondingCurvePct,omitempty"`
	TopHoldersPct   *float64 `json:"topHoldersPct,omitempty"`
	DevHoldingPct   *float64 `json:"devHoldingPct,omitempty"`
	HolderCount     *int     `json:"holderCount,omitempty"`
	VolumeSOL       *float64 `json:"volumeSol,omitempty"`
}

type documentTiming struct {
	BuyIntervalMs  int64 `json:"buyIntervalMs"`
	SellIntervalMs int64 `json:"sellIntervalMs"`
}

// Series is one loaded snapshot file: the token identity plus its
// replayable history.
type Series struct {
	Info    *domain.TokenInfo
	History *domain.TokenHistory
}

// FileSource resolves a data-source descriptor (a directory) to an
// ordered list of snapshot files. The source never mutates files and
// never caches beyond the caller-owned FileCache.
type FileSource struct {
	dir string
}

// NewFileSource creates a source over a directory of *.json files.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// List returns the snapshot file paths under the descriptor, sorted by
// name so replay order is stable.
func (s *FileSource) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFilesFound, s.dir)
	}
	sort.Strings(matches)
	return matches, nil
}

// Load reads and validates one snapshot document.
func (s *FileSource) Load(path string) (*Series, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates one snapshot document.
func Parse(raw []byte) (*Series, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot document: %w", err)
	}
	if doc.Mint == "" {
		return nil, ErrMissingMint
	}
	if err := ValidateMint(doc.Mint); err != nil {
		return nil, err
	}
	if len(doc.History) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySeries, doc.Mint)
	}

	entries := make([]*domain.HistoryEntry, len(doc.History))
	for i, e := range doc.History {
		entries[i] = &domain.HistoryEntry{
			TimestampMs:     e.TimestampMs,
			PriceSOL:        e.PriceSOL,
			MarketCapSOL:    e.MarketCapSOL,
			BondingCurvePct: e.BondingCurvePct,
			TopHoldersPct:   e.TopHoldersPct,
			DevHoldingPct:   e.DevHoldingPct,
			HolderCount:     e.HolderCount,
			VolumeSOL:       e.VolumeSOL,
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TimestampMs < entries[j].TimestampMs
	})

	history := &domain.TokenHistory{Mint: doc.Mint, Entries: entries}
	if doc.Timing != nil {
		history.Timing = &domain.MonitorTiming{
			BuyIntervalMs:  doc.Timing.BuyIntervalMs,
			SellIntervalMs: doc.Timing.SellIntervalMs,
		}
	}
	return &Series{
		Info: &domain.TokenInfo{
			Mint:   doc.Mint,
			Symbol: doc.Symbol,
			Name:   doc.Name,
		},
		History: history,
	}, nil
}

// ValidateMint checks that the mint is a base58-encoded 32-byte
// ed25519 public key. Program-derived addresses are off the curve and
// rejected; a mint is a real keypair's public key.
func ValidateMint(mint string) error {
	decoded, err := base58.Decode(mint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("%w: %d bytes", ErrInvalidMint, len(decoded))
	}
	if _, err := new(edwards25519.Point).SetBytes(decoded); err != nil {
		return fmt.Errorf("%w: not on curve", ErrInvalidMint)
	}
	return nil
}
