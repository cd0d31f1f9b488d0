// Package fetch loads cache pages from a slow, page-oriented source.
//
// A Coordinator deduplicates page requests coming from a cache.Model and
// hands them to a Bridge, which calls the Provider on background goroutines
// with bounded concurrency. Results flow back to the model as segments.
//
//	m := cache.New[string, Row](cache.Options[Row]{})
//	c := fetch.Bind(m, provider, fetch.Options{MaxConcurrent: 8})
//	defer c.Close()
//	m.SetQuery("needle")
package fetch

import (
	"context"

	"github.com/IvanBrykalov/pagecache/cache"
)

// UnknownTotal is reported in Result.Total when the source cannot tell how
// many items match the query.
const UnknownTotal = cache.UnknownTotal

// Result is one page of items plus the source's estimate of the total.
type Result[T any] struct {
	Items []T
	Total int
}

// Provider is the slow data source behind a model.
//
// Fetch returns up to length items starting at position start for query q.
// Returning fewer items marks the end of the sequence; extra items are
// dropped. Implementations must honour ctx cancellation.
type Provider[Q, T any] interface {
	Fetch(ctx context.Context, q Q, start, length int) (Result[T], error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc[Q, T any] func(ctx context.Context, q Q, start, length int) (Result[T], error)

// Fetch calls f.
func (f ProviderFunc[Q, T]) Fetch(ctx context.Context, q Q, start, length int) (Result[T], error) {
	return f(ctx, q, start, length)
}
