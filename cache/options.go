package cache

import (
	"go.uber.org/zap"

	"github.com/IvanBrykalov/pagecache/codec"
)

// DefaultPageSize is the page size used when Options.PageSize is not set.
const DefaultPageSize = 10

// Metrics exposes model-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	// Hit is called when GetItem is served from a cached segment.
	Hit()
	// Miss is called when GetItem returns the placeholder.
	Miss()
	// Fetch is called when the model asks its fetcher for a page.
	Fetch()
	// FetchError is called when a page fetch fails.
	FetchError()
	// Stale is called when a segment from a superseded query is dropped.
	Stale()
	// Size reports the size estimate and the number of cached segments.
	Size(total, segments int)
}

// Options configures a Model. Zero values are safe;
// defaults are applied in New():
//   - PageSize <= 0  => DefaultPageSize
//   - Shards <= 0    => auto (rounded up to power of two)
//   - nil Metrics    => NoopMetrics
//   - nil Logger     => zap.NewNop()
//   - nil Codec      => codec.Default (gob)
type Options[T any] struct {
	// PageSize is the number of items per page.
	PageSize int

	// Placeholder is returned by GetItem for positions that are still loading.
	Placeholder T

	// Shards is the number of segment map shards.
	Shards int

	// Codec and Compression are used by State. SetState reads both from the blob.
	Codec       codec.Codec
	Compression codec.Compression

	Metrics Metrics
	Logger  *zap.Logger
}

func (o Options[T]) withDefaults() Options[T] {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Codec == nil {
		o.Codec = codec.Default
	}
	return o
}
