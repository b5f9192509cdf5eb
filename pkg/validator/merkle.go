package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

// merkleCache memoizes roots keyed by the concatenated input hashes. Eviction
// is strict insertion order (FIFO) once at capacity.
type merkleCache struct {
	entries  map[string]string
	order    []string
	capacity int
}

func newMerkleCache(capacity int) *merkleCache {
	return &merkleCache{
		entries:  make(map[string]string, capacity),
		capacity: capacity,
	}
}

func (c *merkleCache) get(key string) (string, bool) {
	root, ok := c.entries[key]
	return root, ok
}

func (c *merkleCache) put(key, root string) {
	if _, exists := c.entries[key]; exists {
		c.entries[key] = root
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = root
	c.order = append(c.order, key)
}

func (c *merkleCache) clear() {
	c.entries = make(map[string]string, c.capacity)
	c.order = nil
}

func (c *merkleCache) len() int {
	return len(c.entries)
}

// MerkleRoot computes a root over the given hash sequence. Single-element
// inputs pass through unchanged; results are served from the FIFO cache when
// the exact sequence has been seen before.
func (v *Validator) MerkleRoot(hashes []string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.merkleRootLocked(hashes)
}

func (v *Validator) merkleRootLocked(hashes []string) string {
	if len(hashes) == 0 {
		return ""
	}
	if len(hashes) == 1 {
		return hashes[0]
	}

	v.perf.merkleCalls++

	key := strings.Join(hashes, "")
	if root, ok := v.cache.get(key); ok {
		v.perf.cacheHits++
		return root
	}
	v.perf.cacheMisses++

	root := v.reduce(hashes, 1)
	v.cache.put(key, root)
	return root
}

// reduce performs the recursive reduction. Large inputs are split into
// chunks reduced concurrently; the chunk roots are then reduced again.
func (v *Validator) reduce(hashes []string, depth int) string {
	if depth > v.perf.maxTreeDepth {
		v.perf.maxTreeDepth = depth
	}
	if len(hashes) == 1 {
		return hashes[0]
	}

	if len(hashes) >= v.parallelChunkSize {
		v.perf.parallelOps++
		chunks := chunkHashes(hashes, v.parallelChunkSize)
		roots := make([]string, len(chunks))
		var wg sync.WaitGroup
		for i, chunk := range chunks {
			wg.Add(1)
			go func(i int, chunk []string) {
				defer wg.Done()
				roots[i] = reduceSerial(chunk)
			}(i, chunk)
		}
		wg.Wait()
		return v.reduce(roots, depth+1)
	}

	parents := v.combineLevel(hashes)
	return v.reduce(parents, depth+1)
}

// combineLevel pairs adjacent hashes into one parent level, duplicating the
// last hash when the count is odd. The scratch slice is reused between calls
// to avoid reallocating a level buffer per reduction step.
func (v *Validator) combineLevel(hashes []string) []string {
	n := (len(hashes) + 1) / 2
	var parents []string
	if cap(v.levelScratch) >= n {
		v.perf.bufferReuses++
		parents = v.levelScratch[:n]
	} else {
		parents = make([]string, n)
		v.levelScratch = parents
	}
	fillLevel(parents, hashes)
	out := make([]string, n)
	copy(out, parents)
	return out
}

func fillLevel(parents, hashes []string) {
	for i := 0; i < len(hashes); i += 2 {
		left := hashes[i]
		right := left
		if i+1 < len(hashes) {
			right = hashes[i+1]
		}
		parents[i/2] = combineHashes(left, right)
	}
}

// reduceSerial is the lock-free reduction used inside parallel chunks. It
// never touches validator state.
func reduceSerial(hashes []string) string {
	for len(hashes) > 1 {
		parents := make([]string, (len(hashes)+1)/2)
		fillLevel(parents, hashes)
		hashes = parents
	}
	return hashes[0]
}

func combineHashes(left, right string) string {
	sum := sha256.Sum256([]byte(left + right))
	return hex.EncodeToString(sum[:])
}

func chunkHashes(hashes []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(hashes); start += size {
		end := start + size
		if end > len(hashes) {
			end = len(hashes)
		}
		chunks = append(chunks, hashes[start:end])
	}
	return chunks
}
