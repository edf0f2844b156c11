// Package merge combines several ts_init-ordered chunk sources into one ordered chunk stream.
//
// Each active source has a cursor holding its current chunk and the position of its peeked
// head record. A heap keyed by (ts_init, source index) picks the next record; equal
// timestamps go to the source registered first, so output is deterministic.
//
// Precondition: every source yields records in non-decreasing ts_init order. The merge
// does not verify this unless built WithOrderCheck; otherwise a disordered source produces
// disordered output.
package merge

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"tick-catalog/internal/metrics"
	"tick-catalog/internal/model"
	"tick-catalog/internal/reader"
)

// DefaultMaxLen is the chunk length used by NextChunk.
const DefaultMaxLen = reader.DefaultChunkSize

var (
	// ErrOutOfOrder is returned by an order-checking merge when a source goes back in time.
	ErrOutOfOrder = errors.New("source out of ts_init order")
	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("merge closed")
)

// Option configures a Merge.
type Option func(*Merge)

// WithMaxLen sets the chunk length used by NextChunk.
func WithMaxLen(n int) Option {
	return func(m *Merge) {
		if n > 0 {
			m.maxLen = n
		}
	}
}

// WithLedger sets the ledger output chunks are accounted in.
func WithLedger(l *metrics.Ledger) Option {
	return func(m *Merge) { m.ledger = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Merge) { m.log = l }
}

// WithNames labels sources in errors and logs; names[i] belongs to sources[i].
func WithNames(names []string) Option {
	return func(m *Merge) { m.names = names }
}

// WithOrderCheck makes the merge fail with ErrOutOfOrder instead of emitting disordered output.
func WithOrderCheck() Option {
	return func(m *Merge) { m.checkOrder = true }
}

type cursor struct {
	src   reader.Source
	index int
	chunk *model.Chunk
	pos   int
	last  uint64
}

func (c *cursor) head() *model.QuoteTick {
	return &c.chunk.Records[c.pos]
}

// Merge is a K-way merge by ts_init. Not safe for concurrent use.
type Merge struct {
	sources    []reader.Source
	names      []string
	maxLen     int
	ledger     *metrics.Ledger
	log        *slog.Logger
	checkOrder bool

	cursors []*cursor
	heap    cursorHeap
	started bool
	closed  bool
	err     error
}

// New creates a merge over sources. Source order is registration order and decides ties.
// The merge takes ownership of the sources and closes them.
func New(sources []reader.Source, opts ...Option) *Merge {
	m := &Merge{
		sources: sources,
		maxLen:  DefaultMaxLen,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ledger == nil {
		m.ledger = metrics.Default()
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

func (m *Merge) name(i int) string {
	if i < len(m.names) && m.names[i] != "" {
		return m.names[i]
	}
	return fmt.Sprintf("source[%d]", i)
}

// start pulls the first chunk of every source and seeds the heap.
func (m *Merge) start(ctx context.Context) error {
	m.started = true
	m.cursors = make([]*cursor, len(m.sources))
	for i, src := range m.sources {
		m.cursors[i] = &cursor{src: src, index: i}
	}
	for _, c := range m.cursors {
		ok, err := m.fill(ctx, c)
		if err != nil {
			return err
		}
		if ok {
			m.heap = append(m.heap, c)
		}
	}
	heap.Init(&m.heap)
	return nil
}

// fill loads the next non-empty chunk into c. It returns false when the source is exhausted,
// in which case the source has been closed.
func (m *Merge) fill(ctx context.Context, c *cursor) (bool, error) {
	if c.chunk != nil {
		_ = c.chunk.Release()
		c.chunk = nil
	}
	for {
		chunk, err := c.src.NextChunk(ctx)
		if errors.Is(err, io.EOF) {
			m.log.Debug("merge source exhausted", "source", m.name(c.index))
			if cerr := c.src.Close(); cerr != nil {
				return false, fmt.Errorf("%s: %w", m.name(c.index), cerr)
			}
			c.src = nil
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%s: %w", m.name(c.index), err)
		}
		if chunk.Len() == 0 {
			_ = chunk.Release()
			continue
		}
		c.chunk, c.pos = chunk, 0
		return true, nil
	}
}

// Next returns a chunk of at most maxLen records in global ts_init order, or io.EOF
// once every source is exhausted. The final chunk may be shorter than maxLen.
// Any source error stops the whole merge; the same error is returned on every later call.
func (m *Merge) Next(ctx context.Context, maxLen int) (*model.Chunk, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if m.err != nil {
		return nil, m.err
	}
	if maxLen <= 0 {
		maxLen = m.maxLen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !m.started {
		if err := m.start(ctx); err != nil {
			m.err = err
			return nil, err
		}
	}

	out := make([]model.QuoteTick, 0, min(maxLen, m.buffered()))
	for len(out) < maxLen && m.heap.Len() > 0 {
		c := m.heap[0]
		rec := *c.head()
		if m.checkOrder && rec.TsInit < c.last {
			m.err = fmt.Errorf("%w: %s went from %d to %d", ErrOutOfOrder, m.name(c.index), c.last, rec.TsInit)
			return nil, m.err
		}
		c.last = rec.TsInit
		out = append(out, rec)

		c.pos++
		if c.pos < c.chunk.Len() {
			heap.Fix(&m.heap, 0)
			continue
		}
		ok, err := m.fill(ctx, c)
		if err != nil {
			m.err = err
			return nil, err
		}
		if ok {
			heap.Fix(&m.heap, 0)
		} else {
			heap.Pop(&m.heap)
		}
	}

	if len(out) == 0 {
		return nil, io.EOF
	}
	m.ledger.RecordsMerged(len(out))
	return m.ledger.NewChunk(out), nil
}

// buffered counts records already decoded and waiting in cursors.
func (m *Merge) buffered() int {
	n := 0
	for _, c := range m.heap {
		n += c.chunk.Len() - c.pos
	}
	return n
}

// NextChunk is Next with the configured max length, so a Merge is itself a reader.Source.
func (m *Merge) NextChunk(ctx context.Context) (*model.Chunk, error) {
	return m.Next(ctx, m.maxLen)
}

// Close releases buffered chunks and closes every source still open. Idempotent.
func (m *Merge) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	var errs []error
	if !m.started {
		for i, src := range m.sources {
			if err := src.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", m.name(i), err))
			}
		}
		return errors.Join(errs...)
	}
	for _, c := range m.cursors {
		if c.chunk != nil {
			_ = c.chunk.Release()
			c.chunk = nil
		}
		if c.src != nil {
			if err := c.src.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", m.name(c.index), err))
			}
			c.src = nil
		}
	}
	m.heap = nil
	return errors.Join(errs...)
}
