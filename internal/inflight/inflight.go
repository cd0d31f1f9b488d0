// Package inflight tracks pages that have an outstanding fetch.
package inflight

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Set is an epoch-tagged set of page indices.
//
// Epochs are the model generations carried by page requests. The set keeps
// the newest epoch it has seen:
//   - Add is an atomic test-and-set: of several concurrent callers for the
//     same page exactly one gets true and becomes the fetch leader. A
//     request from an older epoch is refused; one from a newer epoch first
//     drops every marker, as Reset would.
//   - Done only clears markers of the current epoch, so a late result from
//     before a reset cannot clear a marker that belongs to a newer fetch.
type Set struct {
	mu    sync.Mutex
	pages *roaring64.Bitmap
	epoch uint64
}

// New returns an empty Set at epoch 0.
func New() *Set {
	return &Set{pages: roaring64.New()}
}

// advance moves to epoch if it is newer. It reports false for stale epochs.
func (s *Set) advance(epoch uint64) bool {
	switch {
	case epoch < s.epoch:
		return false
	case epoch > s.epoch:
		s.pages.Clear()
		s.epoch = epoch
	}
	return true
}

// Add marks page as in flight for a request made in epoch. It returns false
// if the page is already marked or epoch is older than the current one.
func (s *Set) Add(page int, epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.advance(epoch) {
		return false
	}
	p := uint64(page)
	if s.pages.Contains(p) {
		return false
	}
	s.pages.Add(p)
	return true
}

// Contains reports whether page is currently in flight.
func (s *Set) Contains(page int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages.Contains(uint64(page))
}

// Done clears the marker for page if it was set in the current epoch.
// It reports whether a marker was removed.
func (s *Set) Done(page int, epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return false
	}
	p := uint64(page)
	if !s.pages.Contains(p) {
		return false
	}
	s.pages.Remove(p)
	return true
}

// Reset drops all markers if epoch is newer than the current one. Markers
// already set in epoch itself are kept: they belong to live requests.
func (s *Set) Reset(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance(epoch)
}

// Epoch returns the newest epoch seen.
func (s *Set) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Compact releases spare bitmap memory. Markers are preserved.
func (s *Set) Compact() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages.RunOptimize()
}

// Len returns the number of pages in flight.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.pages.GetCardinality())
}

// Pages returns the in-flight pages in ascending order.
func (s *Set) Pages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := s.pages.ToArray()
	out := make([]int, len(raw))
	for i, p := range raw {
		out[i] = int(p)
	}
	return out
}
