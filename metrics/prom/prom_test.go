package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/pagecache/cache"
)

// nopFetcher accepts requests and never completes them.
type nopFetcher struct{ requested []int }

func (f *nopFetcher) AlreadyFetching(int) bool { return false }
func (f *nopFetcher) RequestData(req cache.PageRequest[string]) bool {
	f.requested = append(f.requested, req.Page)
	return true
}
func (f *nopFetcher) Reset(uint64) {}
func (f *nopFetcher) LowMemory()   {}

func TestAdapter_ModelTraffic(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "pagecache", "test", nil)

	m := cache.New[string, string](cache.Options[string]{Metrics: a})
	f := &nopFetcher{}
	m.SetFetcher(f)
	m.SetQuery("q") // page 0 requested

	req := cache.PageRequest[string]{Page: 0, PageSize: 10, Query: "q", Epoch: 1}
	m.DataAvailable(cache.SegmentFor(req, []string{"a", "b"}, 40))
	m.DataAvailable(cache.SegmentFor(cache.PageRequest[string]{Page: 1, PageSize: 10}, []string{"x"}, 11))

	assert.Equal(t, "a", m.GetItem(0))
	assert.Equal(t, "", m.GetItem(25)) // miss, page 2 requested
	m.FetchFailed(2, assert.AnError)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.lookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.lookups.WithLabelValues("miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.fetches))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.failures))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.stale))
	assert.Equal(t, 40.0, testutil.ToFloat64(a.size))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.segments))
	assert.Equal(t, []int{0, 2}, f.requested)

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
