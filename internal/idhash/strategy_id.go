// Package idhash derives deterministic identifiers from content, so the
// same inputs always map to the same id across runs and processes.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeStrategyID computes a deterministic strategy id using SHA256.
// Formula: SHA256(type|params)
// Returns the lowercased type plus the first 16 hex characters.
// Permutation sweeps generate many parameter combinations; hashing keeps
// their ids stable without the caller naming each one.
func ComputeStrategyID(strategyType, params string) string {
	data := fmt.Sprintf("%s|%s", strategyType, params)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%s-%s", strings.ToLower(strategyType), hex.EncodeToString(hash[:])[:16])
}

// ComputeResultID computes a deterministic id for one strategy result slot.
// Formula: SHA256(run_id|slot_id)
// Returns hex-encoded hash (64 characters). The slot is the persisted
// identity: under the best_only policy many strategies pass through one
// slot, and its event stream must stay a single entity.
func ComputeResultID(runID, slotID string) string {
	data := fmt.Sprintf("%s|%s", runID, slotID)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
