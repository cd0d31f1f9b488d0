package fetch

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/pagecache/cache"
)

// gatedFetcher wraps a Coordinator and parks the first call of one method
// until the test releases it.
type gatedFetcher struct {
	*Coordinator[string, int]

	method  string
	taken   atomic.Bool
	parked  chan struct{}
	release chan struct{}
}

func newGatedFetcher(c *Coordinator[string, int], method string) *gatedFetcher {
	return &gatedFetcher{
		Coordinator: c,
		method:      method,
		parked:      make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (g *gatedFetcher) gate(method string) {
	if method != g.method || !g.taken.CompareAndSwap(false, true) {
		return
	}
	close(g.parked)
	<-g.release
}

func (g *gatedFetcher) AlreadyFetching(page int) bool {
	g.gate("AlreadyFetching")
	return g.Coordinator.AlreadyFetching(page)
}

func (g *gatedFetcher) RequestData(req cache.PageRequest[string]) bool {
	g.gate("RequestData")
	return g.Coordinator.RequestData(req)
}

// A read that missed before SetQuery reaches the coordinator only after the
// switch. It must not start a fetch for the old query nor swallow the new
// query's first page.
func TestCoordinator_MissBeforeSetQueryKeepsFirstPage(t *testing.T) {
	for _, method := range []string{"AlreadyFetching", "RequestData"} {
		t.Run(method, func(t *testing.T) {
			m := newModel()
			exec := &manualExecutor{}
			g := newGatedFetcher(NewCoordinator[string, int](m, exec, nil), method)
			m.SetFetcher(g)

			var completed atomic.Int32
			m.SetSearchCompleteListener(cache.SearchCompleteListenerFunc[string](func(string) {
				completed.Add(1)
			}))

			read := make(chan int, 1)
			go func() { read <- m.GetItem(0) }()
			<-g.parked

			m.SetQuery("new")
			close(g.release)
			assert.Equal(t, -1, <-read)

			require.Equal(t, 1, exec.len(), "only the new query's page 0 is fetched")
			f := exec.call(t, 0)
			assert.Equal(t, "new", f.req.Query)
			assert.Equal(t, uint64(1), f.req.Epoch)

			f.done(segFor(f.req), nil)
			assert.Equal(t, int32(1), completed.Load())
			assert.Equal(t, []int{0}, m.CachedPages())
			assert.Empty(t, g.InFlight())
		})
	}
}

// The same race against Reset: the page read before the reset is fetched
// again for the new epoch once it is asked for.
func TestCoordinator_MissBeforeResetIsRefused(t *testing.T) {
	m := newModel()
	m.SetQuery("q")
	exec := &manualExecutor{}
	g := newGatedFetcher(NewCoordinator[string, int](m, exec, nil), "RequestData")
	g.taken.Store(true)
	m.SetFetcher(g) // page 0 for "q" passes the disarmed gate
	require.Equal(t, 1, exec.len())
	g.taken.Store(false)

	read := make(chan int, 1)
	go func() { read <- m.GetItem(30) }()
	<-g.parked

	m.Reset()
	close(g.release)
	assert.Equal(t, -1, <-read)
	assert.Equal(t, 1, exec.len(), "the pre-reset request is refused")
	assert.Empty(t, g.InFlight())

	assert.Equal(t, -1, m.GetItem(30))
	require.Equal(t, 2, exec.len())
	f := exec.call(t, 1)
	assert.Equal(t, 3, f.req.Page)
	f.done(segFor(f.req), nil)
	assert.Equal(t, 30, m.GetItem(30))
}
