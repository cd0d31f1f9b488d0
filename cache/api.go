package cache

// ChangeListener is notified whenever a segment is merged into the model.
// Calls happen synchronously on the goroutine delivering the segment; a UI
// that needs updates on its own thread must marshal them itself.
type ChangeListener interface {
	OnDataChanged(from, to, total int)
}

// ChangeListenerFunc adapts a function to ChangeListener.
type ChangeListenerFunc func(from, to, total int)

// OnDataChanged calls f.
func (f ChangeListenerFunc) OnDataChanged(from, to, total int) { f(from, to, total) }

// SearchCompleteListener is notified once per query, on the first segment
// accepted after SetQuery or Reset. Typical use: hiding a progress indicator.
type SearchCompleteListener[Q any] interface {
	OnSearchComplete(query Q)
}

// SearchCompleteListenerFunc adapts a function to SearchCompleteListener.
type SearchCompleteListenerFunc[Q any] func(query Q)

// OnSearchComplete calls f.
func (f SearchCompleteListenerFunc[Q]) OnSearchComplete(query Q) { f(query) }

// Fetcher is the model's delegate for loading missing pages.
// fetch.Coordinator is the standard implementation.
//
// All methods must be safe for concurrent use and must not block on I/O.
type Fetcher[Q any] interface {
	// AlreadyFetching reports whether a fetch for page is outstanding.
	AlreadyFetching(page int) bool
	// RequestData starts a fetch for req.Page unless one is already
	// outstanding or req.Epoch is older than the last Reset. It reports
	// whether a fetch was started.
	RequestData(req PageRequest[Q]) bool
	// Reset forgets all outstanding fetches of epochs before epoch. Their
	// eventual results are stale.
	Reset(epoch uint64)
	// LowMemory releases whatever memory the fetcher can spare without
	// forgetting which pages are in flight.
	LowMemory()
}

// PageRequest describes one page fetch. Epoch is the model generation at the
// time of the request; segments built from a request inherit it so the model
// can recognise results that arrive after a Reset or SetQuery.
type PageRequest[Q any] struct {
	Page     int
	PageSize int
	Query    Q
	Epoch    uint64
}

// Range returns the first position and the length of the requested page.
func (r PageRequest[Q]) Range() (start, length int) {
	return r.Page * r.PageSize, r.PageSize
}

// Owner is the non-owning back-reference a segment keeps to its model.
type Owner interface {
	PageSize() int
}
