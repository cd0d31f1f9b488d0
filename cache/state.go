package cache

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/IvanBrykalov/pagecache/codec"
)

// envelope is the persisted form of a model, in field order: page size,
// size, query, placeholder, first-result flag, segments. Query, placeholder
// and items are encoded separately so that an item type the codec cannot
// handle only costs the item-typed fields.
type envelope struct {
	PageSize    int
	Size        int
	HasQuery    bool
	Query       []byte
	Placeholder []byte
	FirstResult bool
	Segments    []segmentHeader
	Items       []byte // codec encoding of [][]T, parallel to Segments
}

type segmentHeader struct {
	Page     int
	From     int
	To       int
	MaxIndex int
}

// State serialises the model so it can be restored with SetState after the
// process is suspended or restarted.
//
// Segments (and the placeholder) are included only if the configured codec
// can encode the item type; otherwise an empty cache is written and the
// scalar fields are still kept.
func (m *Model[Q, T]) State() ([]byte, error) {
	m.mu.RLock()
	env := envelope{
		PageSize:    m.pageSize,
		Size:        m.size,
		HasQuery:    m.hasQuery,
		FirstResult: m.firstResult,
	}
	query, placeholder := m.query, m.placeholder
	segs := m.segments.Snapshot()
	m.mu.RUnlock()

	c := m.opt.Codec
	var err error
	if env.HasQuery {
		if env.Query, err = c.Marshal(query); err != nil {
			return nil, m.encodeFailure("encode query", err)
		}
	}

	if env.Placeholder, err = c.Marshal(placeholder); err != nil {
		m.log.Debug("placeholder not encodable, skipping it",
			zap.String("codec", c.Name()), zap.Error(err))
		env.Placeholder = nil
	}
	if len(segs) > 0 {
		items := lo.Map(segs, func(s *Segment[T], _ int) []T { return s.items })
		if env.Items, err = c.Marshal(items); err != nil {
			m.log.Debug("items not encodable, persisting empty cache",
				zap.String("codec", c.Name()), zap.Error(err))
			env.Items = nil
		} else {
			env.Segments = lo.Map(segs, func(s *Segment[T], _ int) segmentHeader {
				return segmentHeader{Page: s.page, From: s.from, To: s.to, MaxIndex: s.maxIndex}
			})
		}
	}

	body, err := c.Marshal(env)
	if err != nil {
		return nil, m.encodeFailure("encode envelope", err)
	}
	blob, err := codec.Seal(c, m.opt.Compression, body)
	if err != nil {
		return nil, m.encodeFailure("seal", err)
	}
	return blob, nil
}

// SetState restores a blob produced by State. The blob is decoded and
// validated completely before anything is applied; on error the model is
// left exactly as it was and the error matches ErrCorruptState.
//
// Restoring starts a new generation: fetches in flight for the previous
// state are forgotten and their results dropped.
func (m *Model[Q, T]) SetState(blob []byte) error {
	body, c, err := codec.Open(blob)
	if err != nil {
		return m.decodeFailure("open", err)
	}
	var env envelope
	if err := c.Unmarshal(body, &env); err != nil {
		return m.decodeFailure("decode envelope", err)
	}
	if env.PageSize <= 0 || env.Size < 0 {
		return m.decodeFailure("validate", errors.Newf("page size %d, size %d", env.PageSize, env.Size))
	}

	var query Q
	if env.HasQuery {
		if err := c.Unmarshal(env.Query, &query); err != nil {
			return m.decodeFailure("decode query", err)
		}
	}
	var placeholder T
	hasPlaceholder := len(env.Placeholder) > 0
	if hasPlaceholder {
		if err := c.Unmarshal(env.Placeholder, &placeholder); err != nil {
			return m.decodeFailure("decode placeholder", err)
		}
	}
	var items [][]T
	if len(env.Segments) > 0 {
		if err := c.Unmarshal(env.Items, &items); err != nil {
			return m.decodeFailure("decode items", err)
		}
		if len(items) != len(env.Segments) {
			return m.decodeFailure("validate", errors.Newf("%d segment headers, %d item lists", len(env.Segments), len(items)))
		}
	}
	for i, h := range env.Segments {
		if err := h.validate(env.PageSize, len(items[i])); err != nil {
			return m.decodeFailure("validate", err)
		}
	}

	m.mu.Lock()
	m.epoch++
	m.pageSize = env.PageSize
	m.size = env.Size
	m.query = query
	m.hasQuery = env.HasQuery
	if hasPlaceholder {
		m.placeholder = placeholder
	}
	m.firstResult = env.FirstResult
	m.segments.Clear()
	for i, h := range env.Segments {
		m.segments.Put(&Segment[T]{
			page:     h.Page,
			from:     h.From,
			to:       h.To,
			maxIndex: h.MaxIndex,
			items:    items[i],
			epoch:    m.epoch,
			owner:    m,
		})
	}
	f, epoch := m.fetcher, m.epoch
	size := m.size
	m.mu.Unlock()

	m.opt.Metrics.Size(size, len(env.Segments))
	m.log.Info("state restored",
		zap.Int("pageSize", env.PageSize),
		zap.Int("size", env.Size),
		zap.Int("segments", len(env.Segments)))
	if f != nil {
		f.Reset(epoch)
	}
	return nil
}

func (h segmentHeader) validate(pageSize, items int) error {
	switch {
	case h.Page < 0:
		return errors.Newf("segment with negative page %d", h.Page)
	case h.From != h.Page*pageSize:
		return errors.Newf("segment %d starts at %d, want %d", h.Page, h.From, h.Page*pageSize)
	case h.To-h.From != items || items > pageSize:
		return errors.Newf("segment %d covers [%d,%d) with %d items", h.Page, h.From, h.To, items)
	}
	return nil
}

func (m *Model[Q, T]) encodeFailure(op string, err error) error {
	err = errors.Wrapf(err, "cache state: %s", op)
	m.log.Warn("saving state failed", zap.String("op", op), zap.Error(err))
	return err
}

func (m *Model[Q, T]) decodeFailure(op string, err error) error {
	err = errors.Mark(errors.Wrapf(err, "cache state: %s", op), ErrCorruptState)
	m.log.Warn("restoring state failed", zap.String("op", op), zap.Error(err))
	return err
}
