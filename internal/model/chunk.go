package model

import (
	"errors"
	"sync/atomic"
)

// ErrChunkReleased is returned when a chunk is released more than once.
var ErrChunkReleased = errors.New("chunk already released")

// Chunk is an ordered, bounded batch of quotes handed from a producer to a consumer.
// The consumer owns it and must call Release exactly once; after that Records is nil.
// In-process callers may rely on garbage collection, but accounting (see metrics.Ledger)
// only returns to zero once every chunk is released.
type Chunk struct {
	Records []QuoteTick

	onRelease func()
	released  atomic.Bool
}

// NewChunk wraps records. onRelease, if set, runs once on the first Release.
func NewChunk(records []QuoteTick, onRelease func()) *Chunk {
	return &Chunk{Records: records, onRelease: onRelease}
}

// Len returns the number of records, 0 after release.
func (c *Chunk) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Records)
}

// Released reports whether Release has been called.
func (c *Chunk) Released() bool {
	return c.released.Load()
}

// First returns the first record's TsInit and false when the chunk is empty.
func (c *Chunk) First() (uint64, bool) {
	if c.Len() == 0 {
		return 0, false
	}
	return c.Records[0].TsInit, true
}

// Last returns the last record's TsInit and false when the chunk is empty.
func (c *Chunk) Last() (uint64, bool) {
	if c.Len() == 0 {
		return 0, false
	}
	return c.Records[len(c.Records)-1].TsInit, true
}

// Release gives the chunk back. A second call returns ErrChunkReleased.
func (c *Chunk) Release() error {
	if !c.released.CompareAndSwap(false, true) {
		return ErrChunkReleased
	}
	c.Records = nil
	if c.onRelease != nil {
		c.onRelease()
	}
	return nil
}
