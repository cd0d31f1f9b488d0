package cache

import (
	"slices"
	"sync"

	"github.com/IvanBrykalov/pagecache/internal/util"
)

// store is the page→segment map shared between consumer reads and fetch
// completions. It is split into shards, each with its own RWMutex, so that
// concurrent deliveries for different pages rarely contend.
type store[T any] struct {
	shards []*shard[T]
}

// shard is an independent partition of the store.
type shard[T any] struct {
	// ---- guarded by mu ----
	mu sync.RWMutex
	m  map[int]*Segment[T]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
}

// newStore builds a store with n shards rounded up to a power of two
// (n <= 0 picks a count from GOMAXPROCS).
func newStore[T any](n int) *store[T] {
	if n <= 0 {
		n = util.ReasonableShardCount()
	} else {
		n = int(util.NextPow2(uint64(n)))
	}
	s := &store[T]{shards: make([]*shard[T], n)}
	for i := range s.shards {
		s.shards[i] = &shard[T]{m: make(map[int]*Segment[T])}
	}
	return s
}

func (s *store[T]) shardFor(page int) *shard[T] {
	return s.shards[util.ShardIndex(util.PageHash(page), len(s.shards))]
}

// Get returns the segment for page.
func (s *store[T]) Get(page int) (*Segment[T], bool) {
	sh := s.shardFor(page)
	sh.mu.RLock()
	seg, ok := sh.m[page]
	sh.mu.RUnlock()
	if ok {
		sh.hits.Add(1)
	} else {
		sh.misses.Add(1)
	}
	return seg, ok
}

// Put stores seg under its page, replacing any previous segment.
func (s *store[T]) Put(seg *Segment[T]) {
	sh := s.shardFor(seg.page)
	sh.mu.Lock()
	sh.m[seg.page] = seg
	sh.mu.Unlock()
}

// Clear drops every segment.
func (s *store[T]) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		clear(sh.m)
		sh.mu.Unlock()
	}
}

// Len returns the number of cached segments.
func (s *store[T]) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.m)
		sh.mu.RUnlock()
	}
	return total
}

// Snapshot returns all segments ordered by page.
func (s *store[T]) Snapshot() []*Segment[T] {
	var out []*Segment[T]
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, seg := range sh.m {
			out = append(out, seg)
		}
		sh.mu.RUnlock()
	}
	slices.SortFunc(out, func(a, b *Segment[T]) int { return a.page - b.page })
	return out
}

// Lookups returns the hit and miss counts across shards.
func (s *store[T]) Lookups() (hits, misses int64) {
	for _, sh := range s.shards {
		hits += sh.hits.Load()
		misses += sh.misses.Load()
	}
	return hits, misses
}
