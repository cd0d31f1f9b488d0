package cache

import (
	"fmt"
	"slices"
)

// UnknownTotal is passed to SegmentFor when the provider cannot tell the
// total length of the sequence.
const UnknownTotal = -1

// Segment is one fetched page: the items for positions [From, To) plus the
// size estimate the provider reported with them. Segments are immutable once
// they have been handed to a Model.
type Segment[T any] struct {
	page     int
	from, to int
	maxIndex int
	items    []T

	epoch uint64
	owner Owner
}

// SegmentFor builds the segment answering req.
//
// Items beyond the requested page length are dropped. total is the
// provider's length estimate; UnknownTotal (or any value short of the
// returned range) makes the end of the returned range the estimate.
func SegmentFor[Q, T any](req PageRequest[Q], items []T, total int) *Segment[T] {
	start, length := req.Range()
	if len(items) > length {
		items = items[:length]
	}
	end := start + len(items)
	if total < end {
		total = end
	}
	return &Segment[T]{
		page:     req.Page,
		from:     start,
		to:       end,
		maxIndex: total,
		items:    slices.Clone(items),
		epoch:    req.Epoch,
	}
}

// Page returns the page index.
func (s *Segment[T]) Page() int { return s.page }

// From returns the first position covered.
func (s *Segment[T]) From() int { return s.from }

// To returns the position after the last one covered.
func (s *Segment[T]) To() int { return s.to }

// MaxIndex returns the sequence length implied by this segment.
func (s *Segment[T]) MaxIndex() int { return s.maxIndex }

// Len returns the number of items.
func (s *Segment[T]) Len() int { return len(s.items) }

// Items returns a copy of the items.
func (s *Segment[T]) Items() []T { return slices.Clone(s.items) }

// Owner returns the model the segment belongs to, or nil before it has been
// delivered.
func (s *Segment[T]) Owner() Owner { return s.owner }

// Get returns the item at an absolute position.
// Asking for a position outside [From, To) is a programming error and panics.
func (s *Segment[T]) Get(position int) T {
	if position < s.from || position >= s.to {
		panic(fmt.Sprintf("cache: position %d outside segment [%d,%d) of page %d",
			position, s.from, s.to, s.page))
	}
	return s.items[position-s.from]
}
