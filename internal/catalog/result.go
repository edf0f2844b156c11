package catalog

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"

	"tick-catalog/internal/merge"
	"tick-catalog/internal/model"
)

var (
	// ErrConcurrentPull is returned when Next is entered while another Next is running.
	ErrConcurrentPull = errors.New("result pulled concurrently")
	// ErrResultClosed is returned by Next after Close on a result that was not drained.
	ErrResultClosed = errors.New("result closed")
)

// Result is the lazy, forward-only chunk stream of a consumed catalog.
// It supports exactly one consumer; Close may be called from any goroutine.
type Result struct {
	m         *merge.Merge
	chunkSize int
	log       *slog.Logger

	mu      sync.Mutex
	pulling bool
	drained bool
	closed  bool
	err     error
	chunks  int
	records int
}

func newResult(m *merge.Merge, chunkSize int, log *slog.Logger) *Result {
	return &Result{m: m, chunkSize: chunkSize, log: log}
}

// ChunkSize returns the maximum chunk length.
func (r *Result) ChunkSize() int { return r.chunkSize }

// Next returns the next merged chunk, at most ChunkSize records long, or io.EOF once drained.
// Any error closes the result, releasing every file and buffered chunk, and is returned again
// on later calls. A Close that lands while Next is running takes effect when Next returns.
func (r *Result) Next(ctx context.Context) (*model.Chunk, error) {
	r.mu.Lock()
	switch {
	case r.pulling:
		r.mu.Unlock()
		return nil, ErrConcurrentPull
	case r.err != nil:
		err := r.err
		r.mu.Unlock()
		return nil, err
	case r.drained:
		r.mu.Unlock()
		return nil, io.EOF
	case r.closed:
		r.mu.Unlock()
		return nil, ErrResultClosed
	}
	r.pulling = true
	r.mu.Unlock()

	c, err := r.m.Next(ctx, r.chunkSize)

	r.mu.Lock()
	r.pulling = false
	if r.closed {
		r.mu.Unlock()
		if c != nil {
			_ = c.Release()
		}
		if cerr := r.m.Close(); cerr != nil {
			r.log.Warn("close after interrupted pull", "error", cerr)
		}
		return nil, ErrResultClosed
	}
	r.mu.Unlock()

	if errors.Is(err, io.EOF) {
		r.mu.Lock()
		r.drained = true
		chunks, records := r.chunks, r.records
		r.mu.Unlock()
		r.log.Info("catalog drained", "chunks", chunks, "records", records)
		if cerr := r.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, io.EOF
	}
	if err != nil {
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		r.log.Error("catalog merge stopped", "error", err)
		if cerr := r.Close(); cerr != nil {
			r.log.Warn("close after merge error", "error", cerr)
		}
		return nil, err
	}

	r.mu.Lock()
	r.chunks++
	r.records += c.Len()
	r.mu.Unlock()
	return c, nil
}

// Chunks ranges over the result. Leaving the loop early, or an error, closes the result.
// The error, if any, is yielded once as the last element.
func (r *Result) Chunks(ctx context.Context) iter.Seq2[*model.Chunk, error] {
	return func(yield func(*model.Chunk, error) bool) {
		defer r.Close()
		for {
			c, err := r.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

// Stats returns the chunks and records emitted so far.
func (r *Result) Stats() (chunks, records int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunks, r.records
}

// Close closes the merge and every source it still holds. Idempotent.
// While a Next is running, Close only marks the result closed and that Next
// releases everything before it returns.
func (r *Result) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	if r.pulling {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	return r.m.Close()
}
