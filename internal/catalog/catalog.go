// Package catalog registers quote files and merges them into one ts_init-ordered chunk stream.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tick-catalog/internal/merge"
	"tick-catalog/internal/metrics"
	"tick-catalog/internal/reader"
)

var (
	// ErrConsumed is returned by a second Consume: a catalog drains once.
	ErrConsumed = errors.New("catalog already consumed")
	// ErrClosed is returned by Register and Consume after Close.
	ErrClosed = errors.New("catalog closed")
	// ErrDuplicateName is returned when a source name is registered twice.
	ErrDuplicateName = errors.New("source name already registered")
)

// DefaultOpenConcurrency bounds parallel file opens in RegisterAll.
const DefaultOpenConcurrency = 8

// Options configures a Catalog.
type Options struct {
	ChunkSize       int
	OpenConcurrency int
	// CheckOrder fails the merge on a source that goes back in ts_init.
	CheckOrder bool
	Ledger     *metrics.Ledger
	Logger     *slog.Logger
}

type entry struct {
	name  string
	path  string
	query Query
	rdr   *reader.Reader
}

// SourceInfo describes a registered source.
type SourceInfo struct {
	Name           string
	Path           string
	InstrumentID   string
	SelectedGroups int
	TotalGroups    int
	Rows           int64
	StatsMissing   bool
}

// Catalog owns registered readers until Consume hands them to a merge.
type Catalog struct {
	id   string
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	entries  []*entry
	names    map[string]bool
	consumed bool
	closed   bool
	result   *Result
}

// New creates an empty catalog.
func New(opts Options) *Catalog {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = reader.DefaultChunkSize
	}
	if opts.OpenConcurrency <= 0 {
		opts.OpenConcurrency = DefaultOpenConcurrency
	}
	if opts.Ledger == nil {
		opts.Ledger = metrics.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	id := uuid.NewString()
	return &Catalog{
		id:    id,
		opts:  opts,
		log:   opts.Logger.With("catalog", id[:8]),
		names: make(map[string]bool),
	}
}

// ID returns the catalog's unique id.
func (c *Catalog) ID() string { return c.id }

func (c *Catalog) readerOptions(q Query) reader.Options {
	return reader.Options{
		ChunkSize: c.opts.ChunkSize,
		Filter:    q.Filter,
		Ledger:    c.opts.Ledger,
		Logger:    c.opts.Logger,
	}
}

// Register opens path eagerly and adds it under name. Open and metadata failures surface here.
func (c *Catalog) Register(name, path string, q Query) error {
	if err := c.checkRegistrable(name, q); err != nil {
		return err
	}
	r, err := reader.Open(path, c.readerOptions(q))
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	if err := c.add([]SourceSpec{{Name: name, Path: path, Query: q}}, []*reader.Reader{r}); err != nil {
		r.Close()
		return err
	}
	return nil
}

// RegisterAll opens specs concurrently and registers them in slice order.
// On any failure nothing is registered and every file opened here is closed.
func (c *Catalog) RegisterAll(ctx context.Context, specs []SourceSpec) error {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if seen[s.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateName, s.Name)
		}
		seen[s.Name] = true
		if err := c.checkRegistrable(s.Name, s.Query); err != nil {
			return err
		}
	}

	readers := make([]*reader.Reader, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.OpenConcurrency)
	for i, s := range specs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := reader.Open(s.Path, c.readerOptions(s.Query))
			if err != nil {
				return fmt.Errorf("register %s: %w", s.Name, err)
			}
			readers[i] = r
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = c.add(specs, readers)
	}
	if err != nil {
		for _, r := range readers {
			if r != nil {
				r.Close()
			}
		}
		return err
	}
	return nil
}

func (c *Catalog) checkRegistrable(name string, q Query) error {
	if name == "" {
		return errors.New("register: empty source name")
	}
	if err := q.Window.validate(); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return ErrClosed
	case c.consumed:
		return ErrConsumed
	case c.names[name]:
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	return nil
}

func (c *Catalog) add(specs []SourceSpec, readers []*reader.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.consumed {
		return ErrConsumed
	}
	for _, s := range specs {
		if c.names[s.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateName, s.Name)
		}
	}
	for i, s := range specs {
		r := readers[i]
		c.names[s.Name] = true
		c.entries = append(c.entries, &entry{name: s.Name, path: s.Path, query: s.Query, rdr: r})
		c.log.Info("source registered",
			"name", s.Name,
			"path", s.Path,
			"instrument", r.Metadata().InstrumentID,
			"filter", s.Query.Filter.String(),
			"row_groups", len(r.SelectedGroups()),
			"rows", r.NumRows())
	}
	return nil
}

// Sources describes the registered sources in registration order.
func (c *Catalog) Sources() []SourceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SourceInfo, len(c.entries))
	for i, e := range c.entries {
		out[i] = SourceInfo{
			Name:           e.name,
			Path:           e.path,
			InstrumentID:   e.rdr.Metadata().InstrumentID,
			SelectedGroups: len(e.rdr.SelectedGroups()),
			TotalGroups:    len(e.rdr.Stats()),
			Rows:           e.rdr.NumRows(),
			StatsMissing:   e.rdr.StatsMissing(),
		}
	}
	return out
}

// Consume hands every registered source to one merge and returns its lazy, single-pass result.
// A catalog can be consumed once; a second call returns ErrConsumed.
func (c *Catalog) Consume(chunkSize int) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.consumed {
		return nil, ErrConsumed
	}
	c.consumed = true
	if chunkSize <= 0 {
		chunkSize = c.opts.ChunkSize
	}

	sources := make([]reader.Source, len(c.entries))
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
		sources[i] = e.rdr
		if e.query.Window != nil {
			sources[i] = newWindowSource(e.rdr, *e.query.Window, c.opts.Ledger)
		}
	}
	opts := []merge.Option{
		merge.WithMaxLen(chunkSize),
		merge.WithLedger(c.opts.Ledger),
		merge.WithLogger(c.log),
		merge.WithNames(names),
	}
	if c.opts.CheckOrder {
		opts = append(opts, merge.WithOrderCheck())
	}
	c.result = newResult(merge.New(sources, opts...), chunkSize, c.log)
	c.log.Info("catalog consume", "sources", len(sources), "chunk_size", chunkSize)
	return c.result, nil
}

// Close releases every file and buffered chunk held by the catalog or its result.
// Chunks already returned to the caller stay the caller's. Idempotent.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.result != nil {
		return c.result.Close()
	}
	var errs []error
	for _, e := range c.entries {
		if err := e.rdr.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Outstanding reports files and chunks still held in the catalog's ledger.
func (c *Catalog) Outstanding() metrics.Outstanding {
	return c.opts.Ledger.Outstanding()
}
