package fetch

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/IvanBrykalov/pagecache/cache"
)

// ErrClosed is reported for fetches started or still waiting after Close.
var ErrClosed = errors.New("fetch: bridge closed")

// Bridge runs provider calls on background goroutines. Every Fetch reports
// exactly one outcome through its done callback.
type Bridge[Q, T any] struct {
	p   Provider[Q, T]
	opt Options
	sem *semaphore.Weighted
	lim *rate.Limiter // nil => unlimited

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup

	log *zap.Logger
}

// NewBridge constructs a Bridge over p.
func NewBridge[Q, T any](p Provider[Q, T], opt Options) *Bridge[Q, T] {
	opt = opt.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge[Q, T]{
		p:      p,
		opt:    opt,
		sem:    semaphore.NewWeighted(int64(opt.MaxConcurrent)),
		ctx:    ctx,
		cancel: cancel,
		log:    opt.Logger.With(zap.String("component", "fetch_bridge")),
	}
	if opt.RateLimit > 0 {
		b.lim = rate.NewLimiter(rate.Limit(opt.RateLimit), opt.Burst)
	}
	return b
}

// Fetch loads the page described by req and calls done with the resulting
// segment or an error. done runs on a background goroutine, or inline if the
// bridge is already closed.
func (b *Bridge[Q, T]) Fetch(req cache.PageRequest[Q], done func(*cache.Segment[T], error)) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		done(nil, ErrClosed)
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		seg, err := b.fetch(req)
		done(seg, err)
	}()
}

func (b *Bridge[Q, T]) fetch(req cache.PageRequest[Q]) (*cache.Segment[T], error) {
	ctx := b.ctx
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "fetch: page %d", req.Page), ErrClosed)
	}
	defer b.sem.Release(1)

	if b.lim != nil {
		if err := b.lim.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, errors.Mark(errors.Wrapf(err, "fetch: page %d", req.Page), ErrClosed)
			}
			return nil, errors.Wrapf(err, "fetch: page %d: rate limit", req.Page)
		}
	}
	if b.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opt.Timeout)
		defer cancel()
	}

	start, length := req.Range()
	res, err := b.p.Fetch(ctx, req.Query, start, length)
	if err != nil {
		err = errors.Wrapf(err, "fetch: page %d [%d,+%d)", req.Page, start, length)
		if b.ctx.Err() != nil {
			err = errors.Mark(err, ErrClosed)
		}
		return nil, err
	}
	if len(res.Items) > length {
		b.log.Debug("provider returned extra items",
			zap.Int("page", req.Page),
			zap.Int("want", length),
			zap.Int("got", len(res.Items)))
	}
	return cache.SegmentFor(req, res.Items, res.Total), nil
}

// Close cancels outstanding provider calls and waits for their done
// callbacks to return. Later fetches fail with ErrClosed.
func (b *Bridge[Q, T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return nil
}
