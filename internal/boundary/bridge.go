// Package boundary is the embedding surface for foreign callers: it exposes readers,
// query results and chunks as generation-checked handles and flat chunk descriptors.
package boundary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"tick-catalog/internal/catalog"
	"tick-catalog/internal/metrics"
	"tick-catalog/internal/model"
	"tick-catalog/internal/prune"
	"tick-catalog/internal/reader"
)

// ErrChunkOutstanding is returned by NextChunk while the previous chunk from the same
// stream has not been dropped.
var ErrChunkOutstanding = errors.New("previous chunk not dropped")

// Tag names the element type of a chunk.
type Tag uint8

const (
	TagNone Tag = iota
	TagQuoteTick
)

func (t Tag) String() string {
	if t == TagQuoteTick {
		return "QuoteTick"
	}
	return "none"
}

// ChunkDescriptor is the flat view of a chunk handed to a foreign caller.
// End of stream is a descriptor with a zero Handle and zero Len.
type ChunkDescriptor struct {
	Handle Handle
	Len    int
	Cap    int
	Tag    Tag
}

// End reports whether d marks the end of its stream.
func (d ChunkDescriptor) End() bool { return d.Handle.IsZero() }

type stream struct {
	mu          sync.Mutex
	name        string
	src         reader.Source
	outstanding Handle
	done        bool
}

type held struct {
	chunk  *model.Chunk
	stream Handle
}

// Options configures a Bridge.
type Options struct {
	Ledger *metrics.Ledger
	Logger *slog.Logger
}

// Bridge owns every stream and chunk handed across the boundary.
type Bridge struct {
	ledger  *metrics.Ledger
	log     *slog.Logger
	streams Table[*stream]
	chunks  Table[*held]
}

// NewBridge creates an empty bridge.
func NewBridge(opts Options) *Bridge {
	if opts.Ledger == nil {
		opts.Ledger = metrics.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Bridge{ledger: opts.Ledger, log: opts.Logger}
}

// OpenReader opens a single file. filterArg encodes the row-group filter as a signed
// integer: negative for ts_init < |arg|, zero for none, positive for ts_init > arg.
func (b *Bridge) OpenReader(path string, chunkSize int, filterArg int64) (Handle, error) {
	r, err := reader.Open(path, reader.Options{
		ChunkSize: chunkSize,
		Filter:    prune.FromInt64(filterArg),
		Ledger:    b.ledger,
		Logger:    b.log,
	})
	if err != nil {
		return 0, err
	}
	h := b.streams.Insert(&stream{name: path, src: r})
	b.log.Debug("boundary reader opened", "handle", h.String(), "path", path)
	return h, nil
}

// OpenQuery wraps a consumed catalog result. The bridge takes ownership of res.
func (b *Bridge) OpenQuery(res *catalog.Result) Handle {
	h := b.streams.Insert(&stream{name: "query", src: resultSource{res}})
	b.log.Debug("boundary query opened", "handle", h.String())
	return h
}

// NextChunk pulls the next chunk from stream h and returns its descriptor.
func (b *Bridge) NextChunk(ctx context.Context, h Handle) (ChunkDescriptor, error) {
	s, err := b.streams.Get(h)
	if err != nil {
		return ChunkDescriptor{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src == nil {
		return ChunkDescriptor{}, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	if !s.outstanding.IsZero() {
		if _, err := b.chunks.Get(s.outstanding); err == nil {
			return ChunkDescriptor{}, fmt.Errorf("%w: stream %s chunk %s", ErrChunkOutstanding, h, s.outstanding)
		}
		s.outstanding = 0
	}
	if s.done {
		return ChunkDescriptor{}, nil
	}
	c, err := s.src.NextChunk(ctx)
	if errors.Is(err, io.EOF) {
		s.done = true
		return ChunkDescriptor{}, nil
	}
	if err != nil {
		return ChunkDescriptor{}, err
	}
	ch := b.chunks.Insert(&held{chunk: c, stream: h})
	s.outstanding = ch
	return ChunkDescriptor{Handle: ch, Len: c.Len(), Cap: cap(c.Records), Tag: TagQuoteTick}, nil
}

// Records returns the records behind d. The slice is valid until d is dropped.
func (b *Bridge) Records(d ChunkDescriptor) ([]model.QuoteTick, error) {
	hc, err := b.chunks.Get(d.Handle)
	if err != nil {
		return nil, err
	}
	return hc.chunk.Records, nil
}

// DropChunk releases the chunk behind d. A second drop returns ErrStaleHandle.
func (b *Bridge) DropChunk(d ChunkDescriptor) error {
	hc, err := b.chunks.Remove(d.Handle)
	if err != nil {
		return err
	}
	return hc.chunk.Release()
}

// Free closes stream h. A chunk it produced stays valid until dropped.
func (b *Bridge) Free(h Handle) error {
	s, err := b.streams.Remove(h)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.src
	s.src = nil
	b.log.Debug("boundary stream freed", "handle", h.String(), "name", s.name)
	return src.Close()
}

// Close frees every stream and drops every chunk still held.
func (b *Bridge) Close() error {
	var errs []error
	for _, hc := range b.chunks.Drain() {
		if err := hc.chunk.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range b.streams.Drain() {
		s.mu.Lock()
		if s.src != nil {
			if err := s.src.Close(); err != nil {
				errs = append(errs, err)
			}
			s.src = nil
		}
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Live returns the number of open streams and undropped chunks.
func (b *Bridge) Live() (streams, chunks int) {
	return b.streams.Len(), b.chunks.Len()
}

type resultSource struct{ res *catalog.Result }

func (s resultSource) NextChunk(ctx context.Context) (*model.Chunk, error) { return s.res.Next(ctx) }
func (s resultSource) Close() error { return s.res.Close() }
