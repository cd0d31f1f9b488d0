package fetch

import (
	"io"

	"go.uber.org/zap"

	"github.com/IvanBrykalov/pagecache/cache"
	"github.com/IvanBrykalov/pagecache/internal/inflight"
)

// Executor performs one page fetch and reports its outcome exactly once.
// Bridge is the standard implementation.
type Executor[Q, T any] interface {
	Fetch(req cache.PageRequest[Q], done func(*cache.Segment[T], error))
}

// Sink receives fetch outcomes. *cache.Model implements it.
type Sink[T any] interface {
	DataAvailable(seg *cache.Segment[T])
	FetchFailed(page int, err error)
}

// Coordinator implements cache.Fetcher. It keeps at most one fetch per page
// in flight and routes completions back to the sink.
type Coordinator[Q, T any] struct {
	sink  Sink[T]
	exec  Executor[Q, T]
	pages *inflight.Set
	log   *zap.Logger
}

// NewCoordinator wires exec to sink. A nil logger disables logging.
func NewCoordinator[Q, T any](sink Sink[T], exec Executor[Q, T], logger *zap.Logger) *Coordinator[Q, T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator[Q, T]{
		sink:  sink,
		exec:  exec,
		pages: inflight.New(),
		log:   logger.With(zap.String("component", "fetch_coordinator")),
	}
}

// Bind connects m to p through a new Bridge and Coordinator and installs the
// coordinator as m's fetcher. Close the returned coordinator to stop the
// bridge.
func Bind[Q, T any](m *cache.Model[Q, T], p Provider[Q, T], opt Options) *Coordinator[Q, T] {
	opt = opt.withDefaults()
	c := NewCoordinator[Q, T](m, NewBridge(p, opt), opt.Logger)
	m.SetFetcher(c)
	return c
}

// AlreadyFetching reports whether page has an outstanding fetch.
func (c *Coordinator[Q, T]) AlreadyFetching(page int) bool {
	return c.pages.Contains(page)
}

// RequestData starts a fetch for req.Page unless one is outstanding or
// req.Epoch predates the last Reset. Of several concurrent callers for the
// same page only one reaches the executor and gets true.
func (c *Coordinator[Q, T]) RequestData(req cache.PageRequest[Q]) bool {
	if !c.pages.Add(req.Page, req.Epoch) {
		return false
	}
	c.log.Debug("fetching page", zap.Int("page", req.Page), zap.Uint64("epoch", req.Epoch))
	c.exec.Fetch(req, func(seg *cache.Segment[T], err error) {
		c.complete(req, seg, err)
	})
	return true
}

// complete delivers before unmarking on success, so a reader never sees the
// page both uncached and not in flight.
func (c *Coordinator[Q, T]) complete(req cache.PageRequest[Q], seg *cache.Segment[T], err error) {
	if err != nil {
		c.pages.Done(req.Page, req.Epoch)
		c.sink.FetchFailed(req.Page, err)
		return
	}
	c.sink.DataAvailable(seg)
	c.pages.Done(req.Page, req.Epoch)
}

// Reset forgets every fetch requested before epoch. Their results still
// arrive but no longer hold a page marker, and requests still carrying an
// older epoch are refused.
func (c *Coordinator[Q, T]) Reset(epoch uint64) {
	c.pages.Reset(epoch)
}

// LowMemory compacts the in-flight set. No fetch is forgotten.
func (c *Coordinator[Q, T]) LowMemory() {
	c.pages.Compact()
	c.log.Debug("in-flight set compacted", zap.Int("inFlight", c.pages.Len()))
}

// InFlight returns the pages with an outstanding fetch, ascending.
func (c *Coordinator[Q, T]) InFlight() []int {
	return c.pages.Pages()
}

// Close stops the executor if it can be closed.
func (c *Coordinator[Q, T]) Close() error {
	if cl, ok := c.exec.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

var _ cache.Fetcher[string] = (*Coordinator[string, int])(nil)
