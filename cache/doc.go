// Package cache provides a paginated item cache with deduplicated,
// asynchronous page loading.
//
// A Model presents a long, randomly indexable sequence (search results, a
// table, a feed) on top of a slow, page-oriented source. Consumers such as a
// list view call GetItem for whatever positions are visible; the model never
// blocks them.
//
// Design
//
//   - Pages: position p lives on page p/PageSize. A fetched page is held as
//     an immutable Segment covering positions [From, To).
//
//   - Storage: segments live in a sharded map (one RWMutex per shard), so
//     fetch completions on background goroutines and reads from the consumer
//     goroutine proceed concurrently. Eviction is all or nothing: Reset,
//     SetQuery and LowMemory drop every segment at once.
//
//   - Fetching: a miss returns the placeholder and asks the bound Fetcher
//     for the page, unless that page is already in flight. fetch.Coordinator
//     is the standard Fetcher; fetch.Bind wires one up with a Provider.
//
//   - Generations: every Reset, SetQuery and SetState starts a new epoch.
//     Requests carry the epoch they were made in and so do the segments built
//     from them; DataAvailable drops segments from an older epoch, so a slow
//     result for a previous query never leaks into the current one. The
//     Fetcher is reset to the new epoch and refuses requests built before it.
//
//   - Notifications: at most one ChangeListener and one
//     SearchCompleteListener. Both run synchronously on the delivering
//     goroutine, change notification first.
//
//   - Persistence: State/SetState save and restore page size, size, query,
//     placeholder, the first-result flag and the segments through a pluggable
//     codec (see package codec). Item types the codec cannot encode are
//     persisted as an empty cache.
//
// Basic usage
//
//	m := cache.New[string, Row](cache.Options[Row]{PageSize: 50})
//	coord := fetch.Bind(m, provider, fetch.Options{MaxConcurrent: 4})
//	defer coord.Close()
//
//	m.SetChangeListener(cache.ChangeListenerFunc(func(from, to, total int) {
//	    // repaint rows [from, to), resize to total
//	}))
//	m.SetQuery("golang")
//	row := m.GetItem(120) // placeholder now, real row after the change callback
//
// Thread-safety
//
// All Model methods are safe for concurrent use. GetItem, Size and Page take
// only short read locks and never wait on I/O.
package cache
