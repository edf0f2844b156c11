package catalog

import (
	"context"
	"errors"
	"io"
	"sort"

	"tick-catalog/internal/metrics"
	"tick-catalog/internal/model"
	"tick-catalog/internal/prune"
	"tick-catalog/internal/reader"
)

// Query selects what a registered source contributes. The zero value is
// "all records, ascending ts_init".
type Query struct {
	// Filter prunes row groups by statistics; it never trims rows.
	Filter prune.Filter
	// Window, when set, trims decoded rows to [Start, End] exactly.
	Window *Window
}

// Window is an inclusive ts_init range.
type Window struct {
	Start uint64
	End   uint64
}

// Contains reports whether ts lies in the window.
func (w Window) Contains(ts uint64) bool { return ts >= w.Start && ts <= w.End }

// SourceSpec describes one source for RegisterAll.
type SourceSpec struct {
	Name  string
	Path  string
	Query Query
}

// windowSource trims an ordered source to a window and stops at the first record past End.
type windowSource struct {
	src    reader.Source
	w      Window
	ledger *metrics.Ledger
	done   bool
}

func newWindowSource(src reader.Source, w Window, ledger *metrics.Ledger) *windowSource {
	return &windowSource{src: src, w: w, ledger: ledger}
}

func (s *windowSource) NextChunk(ctx context.Context) (*model.Chunk, error) {
	for !s.done {
		c, err := s.src.NextChunk(ctx)
		if err != nil {
			return nil, err
		}
		recs := c.Records
		lo := sort.Search(len(recs), func(i int) bool { return recs[i].TsInit >= s.w.Start })
		hi := sort.Search(len(recs), func(i int) bool { return recs[i].TsInit > s.w.End })
		if hi < len(recs) {
			s.done = true
		}
		if lo == 0 && hi == len(recs) {
			return c, nil
		}
		var kept []model.QuoteTick
		if lo < hi {
			kept = append(kept, recs[lo:hi]...)
		}
		_ = c.Release()
		if len(kept) > 0 {
			return s.ledger.NewChunk(kept), nil
		}
	}
	return nil, io.EOF
}

func (s *windowSource) Close() error {
	return s.src.Close()
}

var errEmptyWindow = errors.New("window start after end")

func (w *Window) validate() error {
	if w != nil && w.Start > w.End {
		return errEmptyWindow
	}
	return nil
}
