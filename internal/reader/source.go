package reader

import (
	"context"
	"errors"
	"io"

	"tick-catalog/internal/model"
)

// Source is an ordered, pull-based producer of quote chunks.
// NextChunk returns io.EOF once exhausted. Chunks returned belong to the caller.
type Source interface {
	NextChunk(ctx context.Context) (*model.Chunk, error)
	Close() error
}

// Collect drains src into one slice, releasing every chunk it pulls, and closes src.
func Collect(ctx context.Context, src Source) ([]model.QuoteTick, error) {
	var out []model.QuoteTick
	for {
		c, err := src.NextChunk(ctx)
		if errors.Is(err, io.EOF) {
			return out, src.Close()
		}
		if err != nil {
			return out, errors.Join(err, src.Close())
		}
		out = append(out, c.Records...)
		_ = c.Release()
	}
}
