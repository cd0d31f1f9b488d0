package cache

import (
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Model presents a randomly indexable sequence of items backed by a
// page-oriented, asynchronous source.
//
// GetItem never waits for data: cached positions are answered from memory,
// missing ones return the placeholder and trigger at most one fetch per page.
// Segments arrive through DataAvailable, typically from fetch.Coordinator.
//
// All methods are safe for concurrent use.
type Model[Q, T any] struct {
	// ---- guarded by mu ----
	mu          sync.RWMutex
	pageSize    int
	size        int
	query       Q
	hasQuery    bool
	placeholder T
	firstResult bool
	epoch       uint64
	fetcher     Fetcher[Q]
	changed     ChangeListener
	complete    SearchCompleteListener[Q]

	segments *store[T]
	opt      Options[T]
	log      *zap.Logger
}

// New constructs an empty Model.
func New[Q, T any](opt Options[T]) *Model[Q, T] {
	opt = opt.withDefaults()
	return &Model[Q, T]{
		pageSize:    opt.PageSize,
		placeholder: opt.Placeholder,
		firstResult: true,
		segments:    newStore[T](opt.Shards),
		opt:         opt,
		log:         opt.Logger.With(zap.String("component", "cache_model")),
	}
}

// SetFetcher binds the delegate used to load missing pages. If a query is
// already set, page 0 is requested right away.
func (m *Model[Q, T]) SetFetcher(f Fetcher[Q]) {
	m.mu.Lock()
	m.fetcher = f
	hasQuery := m.hasQuery
	m.mu.Unlock()

	if f != nil && hasQuery {
		m.requestPage(0)
	}
}

// Fetcher returns the bound delegate, if any.
func (m *Model[Q, T]) Fetcher() Fetcher[Q] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetcher
}

// SetQuery drops all cached data, switches to q and, if a fetcher is
// bound, requests the first page. Once it arrives the listeners fire.
func (m *Model[Q, T]) SetQuery(q Q) {
	m.mu.Lock()
	m.resetLocked()
	m.query = q
	m.hasQuery = true
	f, epoch := m.fetcher, m.epoch
	m.mu.Unlock()

	m.opt.Metrics.Size(0, 0)
	if f != nil {
		f.Reset(epoch)
		m.requestPage(0)
	}
}

// Query returns the current query and whether one has been set.
func (m *Model[Q, T]) Query() (Q, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.query, m.hasQuery
}

// PageSize returns the number of items per page.
func (m *Model[Q, T]) PageSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pageSize
}

// SetPageSize changes the page size. Cached segments no longer line up with
// the new pages, so callers must Reset (or SetQuery) afterwards.
func (m *Model[Q, T]) SetPageSize(n int) error {
	if n <= 0 {
		return ErrInvalidPageSize
	}
	m.mu.Lock()
	m.pageSize = n
	m.mu.Unlock()
	return nil
}

// Page returns the page holding position.
func (m *Model[Q, T]) Page(position int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return position / m.pageSize
}

// Placeholder returns the item reported for positions still loading.
func (m *Model[Q, T]) Placeholder() T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.placeholder
}

// SetPlaceholder sets the item reported for positions still loading.
func (m *Model[Q, T]) SetPlaceholder(p T) {
	m.mu.Lock()
	m.placeholder = p
	m.mu.Unlock()
}

// SetChangeListener replaces the change listener (nil removes it).
func (m *Model[Q, T]) SetChangeListener(l ChangeListener) {
	m.mu.Lock()
	m.changed = l
	m.mu.Unlock()
}

// SetSearchCompleteListener replaces the search-complete listener (nil removes it).
func (m *Model[Q, T]) SetSearchCompleteListener(l SearchCompleteListener[Q]) {
	m.mu.Lock()
	m.complete = l
	m.mu.Unlock()
}

// GetItem returns the item at position, or the placeholder while its page
// is loading. A miss starts a fetch for the page unless one is outstanding.
//
// position must be >= 0; positions past the end of a cached (short, final)
// page are a caller error and panic.
func (m *Model[Q, T]) GetItem(position int) T {
	if position < 0 {
		panic(fmt.Sprintf("cache: negative position %d", position))
	}
	m.mu.RLock()
	page := position / m.pageSize
	seg, ok := m.segments.Get(page)
	// A segment laid out for another page size is a miss.
	ok = ok && seg.from == page*m.pageSize
	placeholder := m.placeholder
	m.mu.RUnlock()

	if ok {
		m.opt.Metrics.Hit()
		return seg.Get(position)
	}
	m.opt.Metrics.Miss()
	m.requestPage(page)
	return placeholder
}

// requestPage asks the fetcher for page unless no fetcher is bound or the
// page is already in flight. Only fetches the fetcher actually started are
// counted.
func (m *Model[Q, T]) requestPage(page int) {
	m.mu.RLock()
	f := m.fetcher
	req := PageRequest[Q]{Page: page, PageSize: m.pageSize, Query: m.query, Epoch: m.epoch}
	m.mu.RUnlock()

	if f == nil || f.AlreadyFetching(page) {
		return
	}
	if f.RequestData(req) {
		m.opt.Metrics.Fetch()
	}
}

// DataAvailable merges a fetched segment. Segments requested before the last
// Reset, SetQuery or SetState are dropped silently.
//
// The change listener is called first, then, for the first segment of a
// query, the search-complete listener. Both run on the calling goroutine,
// after the model's locks are released.
func (m *Model[Q, T]) DataAvailable(seg *Segment[T]) {
	m.mu.Lock()
	if seg.epoch != m.epoch {
		m.mu.Unlock()
		m.opt.Metrics.Stale()
		m.log.Debug("dropping stale segment",
			zap.Int("page", seg.page),
			zap.Uint64("segmentEpoch", seg.epoch))
		return
	}
	seg.owner = m
	m.segments.Put(seg)
	m.size = max(m.size, seg.maxIndex)

	size := m.size
	first := m.firstResult
	m.firstResult = false
	query := m.query
	changed, complete := m.changed, m.complete
	m.mu.Unlock()

	m.opt.Metrics.Size(size, m.segments.Len())
	if changed != nil {
		changed.OnDataChanged(seg.from, seg.to, size)
	}
	if first && complete != nil {
		complete.OnSearchComplete(query)
	}
}

// FetchFailed records a failed page fetch. The page is not retried here;
// the next GetItem on it will request it again.
func (m *Model[Q, T]) FetchFailed(page int, err error) {
	m.opt.Metrics.FetchError()
	m.log.Warn("page fetch failed", zap.Int("page", page), zap.Error(err))
}

// Size returns the current estimate of the sequence length.
func (m *Model[Q, T]) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// SetSize overrides the size estimate, e.g. when the total is known up
// front. Later segments still only raise it.
func (m *Model[Q, T]) SetSize(n int) {
	m.mu.Lock()
	m.size = max(n, 0)
	m.mu.Unlock()
}

// Reset empties the model: no segments, size 0, and a new generation so
// that fetches still in flight are ignored when they complete.
func (m *Model[Q, T]) Reset() {
	m.mu.Lock()
	m.resetLocked()
	f, epoch := m.fetcher, m.epoch
	m.mu.Unlock()

	m.opt.Metrics.Size(0, 0)
	if f != nil {
		f.Reset(epoch)
	}
}

func (m *Model[Q, T]) resetLocked() {
	m.firstResult = true
	m.size = 0
	m.segments.Clear()
	m.epoch++
}

// LowMemory drops the cached segments but keeps the size, the query and
// the fetcher's in-flight bookkeeping.
func (m *Model[Q, T]) LowMemory() {
	m.mu.Lock()
	m.segments.Clear()
	size := m.size
	f := m.fetcher
	m.mu.Unlock()

	m.opt.Metrics.Size(size, 0)
	m.log.Info("low memory: segment cache dropped")
	if f != nil {
		f.LowMemory()
	}
}

// Len returns the number of cached segments.
func (m *Model[Q, T]) Len() int { return m.segments.Len() }

// CachedPages returns the cached page indices in ascending order.
func (m *Model[Q, T]) CachedPages() []int {
	return lo.Map(m.segments.Snapshot(), func(s *Segment[T], _ int) int { return s.page })
}

// Stats is a point-in-time view of the model.
type Stats struct {
	Size     int
	Segments int
	Hits     int64
	Misses   int64
}

// Stats returns counters accumulated since New.
func (m *Model[Q, T]) Stats() Stats {
	hits, misses := m.segments.Lookups()
	return Stats{
		Size:     m.Size(),
		Segments: m.segments.Len(),
		Hits:     hits,
		Misses:   misses,
	}
}
