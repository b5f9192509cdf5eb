package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/logger"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"github.com/google/uuid"
)

var ErrChainTampered = errors.New("temporal chain validation failed")

// chainRecord retains the hash preimage so the chain can be revalidated from
// scratch later.
type chainRecord struct {
	entry      models.TemporalChainEntry
	latency    float64
	history    []float64
	prevHash   string
	windowSize int
}

// AppendTemporalHash links a new entry onto the temporal chain: the hash
// covers the latency sample, its historical window, a strictly increasing
// timestamp, the previous entry's hash and fresh entropy. The entry's Merkle
// root summarizes the sliding window of the most recent entries.
func (v *Validator) AppendTemporalHash(latency float64, history []float64) (models.TemporalChainEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	if n := len(v.chain); n > 0 && !now.After(v.chain[n-1].entry.Timestamp) {
		now = v.chain[n-1].entry.Timestamp.Add(time.Nanosecond)
	}

	prevHash := ""
	if n := len(v.chain); n > 0 {
		prevHash = v.chain[n-1].entry.Hash
	}

	entropy := uuid.New().String()
	hash := chainHash(latency, history, now, prevHash, entropy)

	record := chainRecord{
		entry: models.TemporalChainEntry{
			Hash:          hash,
			Timestamp:     now,
			EntropySource: entropy,
		},
		latency:  latency,
		history:  append([]float64(nil), history...),
		prevHash: prevHash,
	}
	v.chain = append(v.chain, record)

	window := v.chainWindowLocked(len(v.chain))
	record.entry.MerkleRoot = v.merkleRootLocked(window)
	v.chain[len(v.chain)-1].entry.MerkleRoot = record.entry.MerkleRoot
	v.chain[len(v.chain)-1].windowSize = len(window)

	if consistency := TemporalConsistency(latency, history); consistency < 0.5 {
		_, z := anomalyScore(latency, history)
		entry := logger.Log.WithFields(map[string]interface{}{
			"latency":     latency,
			"z_score":     z,
			"consistency": consistency,
		})
		switch {
		case z >= zScoreCritical:
			entry.Warn("Critical latency anomaly on temporal chain")
		case z >= zScoreSignificant:
			entry.Info("Significant latency anomaly on temporal chain")
		}
	}

	v.pruneChainLocked(now)
	return record.entry, nil
}

// ValidateTemporalChain reconstructs every retained entry's hash and Merkle
// root from its stored preimage and checks timestamps are strictly
// increasing. Any mismatch means the chain was tampered with.
func (v *Validator) ValidateTemporalChain() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, record := range v.chain {
		if i > 0 {
			prev := v.chain[i-1]
			if record.prevHash != prev.entry.Hash {
				return fmt.Errorf("%w: entry %d broken link", ErrChainTampered, i)
			}
			if !record.entry.Timestamp.After(prev.entry.Timestamp) {
				return fmt.Errorf("%w: entry %d timestamp not increasing", ErrChainTampered, i)
			}
		}

		expected := chainHash(record.latency, record.history, record.entry.Timestamp, record.prevHash, record.entry.EntropySource)
		if expected != record.entry.Hash {
			return fmt.Errorf("%w: entry %d hash mismatch", ErrChainTampered, i)
		}

		// The Merkle root can only be reconstructed while the entry's full
		// window is still retained; pruned predecessors make it unverifiable,
		// not invalid.
		if record.windowSize > 0 && i+1 >= record.windowSize {
			window := make([]string, 0, record.windowSize)
			for _, prior := range v.chain[i+1-record.windowSize : i+1] {
				window = append(window, prior.entry.Hash)
			}
			if root := v.merkleRootLocked(window); root != record.entry.MerkleRoot {
				return fmt.Errorf("%w: entry %d merkle root mismatch", ErrChainTampered, i)
			}
		}
	}
	return nil
}

// ChainLength reports how many entries the chain currently retains.
func (v *Validator) ChainLength() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.chain)
}

// chainWindowLocked returns the hashes of the last treeHeight entries ending
// at index end (exclusive).
func (v *Validator) chainWindowLocked(end int) []string {
	start := end - v.treeHeight
	if start < 0 {
		start = 0
	}
	window := make([]string, 0, end-start)
	for _, record := range v.chain[start:end] {
		window = append(window, record.entry.Hash)
	}
	return window
}

// pruneChainLocked drops entries that fell out of the temporal relevance
// window. The most recent treeHeight entries always survive so the Merkle
// windows and the previous-hash linkage stay reconstructible.
func (v *Validator) pruneChainLocked(now time.Time) {
	keepFrom := len(v.chain) - v.treeHeight
	if keepFrom < 0 {
		keepFrom = 0
	}
	cutoff := now.Add(-v.temporalWindow)
	firstKept := 0
	for firstKept < keepFrom && v.chain[firstKept].entry.Timestamp.Before(cutoff) {
		firstKept++
	}
	if firstKept > 0 {
		v.chain = append([]chainRecord(nil), v.chain[firstKept:]...)
	}
}

func chainHash(latency float64, history []float64, ts time.Time, prevHash, entropy string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%.9f|", latency)
	for _, sample := range history {
		fmt.Fprintf(h, "%.9f,", sample)
	}
	fmt.Fprintf(h, "|%d|%s|%s", ts.UnixNano(), prevHash, entropy)
	return hex.EncodeToString(h.Sum(nil))
}
