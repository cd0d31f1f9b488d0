package cache

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidPageSize is returned by SetPageSize for non-positive sizes.
	ErrInvalidPageSize = errors.New("cache: page size must be > 0")

	// ErrCorruptState marks every SetState failure: undecodable blobs, blobs
	// written for a different item or query type, and inconsistent segments.
	ErrCorruptState = errors.New("cache: corrupt state")
)
