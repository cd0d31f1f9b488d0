package fetch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/pagecache/cache"
)

type mockProvider struct {
	mock.Mock
}

func (p *mockProvider) Fetch(ctx context.Context, q string, start, length int) (Result[int], error) {
	args := p.Called(ctx, q, start, length)
	return args.Get(0).(Result[int]), args.Error(1)
}

type outcome struct {
	seg *cache.Segment[int]
	err error
}

// fetchSync runs one fetch through b and waits for its outcome.
func fetchSync(t *testing.T, b *Bridge[string, int], req cache.PageRequest[string]) outcome {
	t.Helper()
	ch := make(chan outcome, 1)
	b.Fetch(req, func(seg *cache.Segment[int], err error) { ch <- outcome{seg, err} })
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not complete")
		return outcome{}
	}
}

func seq(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}

func TestBridge_FetchBuildsSegment(t *testing.T) {
	p := new(mockProvider)
	p.On("Fetch", mock.Anything, "q", 20, 10).
		Return(Result[int]{Items: seq(20, 10), Total: 95}, nil).Once()

	b := NewBridge[string, int](p, Options{})
	defer b.Close()

	o := fetchSync(t, b, cache.PageRequest[string]{Page: 2, PageSize: 10, Query: "q", Epoch: 7})
	require.NoError(t, o.err)
	assert.Equal(t, 2, o.seg.Page())
	assert.Equal(t, 20, o.seg.From())
	assert.Equal(t, 30, o.seg.To())
	assert.Equal(t, 95, o.seg.MaxIndex())
	assert.Equal(t, 25, o.seg.Get(25))
	p.AssertExpectations(t)
}

func TestBridge_ShortAndOversizedPages(t *testing.T) {
	p := new(mockProvider)
	p.On("Fetch", mock.Anything, "q", 0, 10).
		Return(Result[int]{Items: seq(0, 15), Total: UnknownTotal}, nil).Once()
	p.On("Fetch", mock.Anything, "q", 10, 10).
		Return(Result[int]{Items: seq(10, 3), Total: UnknownTotal}, nil).Once()

	b := NewBridge[string, int](p, Options{})
	defer b.Close()

	o := fetchSync(t, b, cache.PageRequest[string]{Page: 0, PageSize: 10, Query: "q"})
	require.NoError(t, o.err)
	assert.Equal(t, 10, o.seg.Len(), "extra items are dropped")
	assert.Equal(t, 10, o.seg.MaxIndex())

	o = fetchSync(t, b, cache.PageRequest[string]{Page: 1, PageSize: 10, Query: "q"})
	require.NoError(t, o.err)
	assert.Equal(t, 3, o.seg.Len())
	assert.Equal(t, 13, o.seg.MaxIndex(), "a short page ends the sequence")
	p.AssertExpectations(t)
}

func TestBridge_ProviderError(t *testing.T) {
	boom := errors.New("boom")
	p := new(mockProvider)
	p.On("Fetch", mock.Anything, "q", 0, 10).Return(Result[int]{}, boom).Once()

	b := NewBridge[string, int](p, Options{})
	defer b.Close()

	o := fetchSync(t, b, cache.PageRequest[string]{Page: 0, PageSize: 10, Query: "q"})
	require.Error(t, o.err)
	assert.Nil(t, o.seg)
	assert.True(t, errors.Is(o.err, boom))
	assert.False(t, errors.Is(o.err, ErrClosed))
}

func TestBridge_MaxConcurrent(t *testing.T) {
	var active, peak atomic.Int32
	p := ProviderFunc[string, int](func(ctx context.Context, _ string, start, length int) (Result[int], error) {
		n := active.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return Result[int]{Items: seq(start, length), Total: UnknownTotal}, nil
	})

	b := NewBridge[string, int](p, Options{MaxConcurrent: 2})
	defer b.Close()

	var wg sync.WaitGroup
	for page := 0; page < 12; page++ {
		wg.Add(1)
		b.Fetch(cache.PageRequest[string]{Page: page, PageSize: 5}, func(_ *cache.Segment[int], err error) {
			assert.NoError(t, err)
			wg.Done()
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Positive(t, peak.Load())
}

func TestBridge_RateLimit(t *testing.T) {
	p := ProviderFunc[string, int](func(_ context.Context, _ string, start, length int) (Result[int], error) {
		return Result[int]{Items: seq(start, length), Total: UnknownTotal}, nil
	})
	b := NewBridge[string, int](p, Options{RateLimit: 50, Burst: 1})
	defer b.Close()

	began := time.Now()
	for page := 0; page < 4; page++ {
		require.NoError(t, fetchSync(t, b, cache.PageRequest[string]{Page: page, PageSize: 5}).err)
	}
	// 1 token up front, then 20ms per request.
	assert.GreaterOrEqual(t, time.Since(began), 50*time.Millisecond)
}

func TestBridge_Timeout(t *testing.T) {
	p := ProviderFunc[string, int](func(ctx context.Context, _ string, _, _ int) (Result[int], error) {
		<-ctx.Done()
		return Result[int]{}, ctx.Err()
	})
	b := NewBridge[string, int](p, Options{Timeout: 10 * time.Millisecond})
	defer b.Close()

	o := fetchSync(t, b, cache.PageRequest[string]{Page: 0, PageSize: 10})
	require.Error(t, o.err)
	assert.True(t, errors.Is(o.err, context.DeadlineExceeded))
	assert.False(t, errors.Is(o.err, ErrClosed))
}

func TestBridge_Close(t *testing.T) {
	started := make(chan struct{})
	p := ProviderFunc[string, int](func(ctx context.Context, _ string, _, _ int) (Result[int], error) {
		close(started)
		<-ctx.Done()
		return Result[int]{}, ctx.Err()
	})
	b := NewBridge[string, int](p, Options{})

	ch := make(chan outcome, 1)
	b.Fetch(cache.PageRequest[string]{Page: 0, PageSize: 10}, func(seg *cache.Segment[int], err error) {
		ch <- outcome{seg, err}
	})
	<-started
	require.NoError(t, b.Close())

	// Close waits for the callback, so the outcome is already there.
	select {
	case o := <-ch:
		assert.True(t, errors.Is(o.err, ErrClosed))
		assert.True(t, errors.Is(o.err, context.Canceled))
	default:
		t.Fatal("Close returned before the outstanding callback")
	}

	o := fetchSync(t, b, cache.PageRequest[string]{Page: 1, PageSize: 10})
	assert.True(t, errors.Is(o.err, ErrClosed))
	assert.NoError(t, b.Close(), "Close is idempotent")
}
