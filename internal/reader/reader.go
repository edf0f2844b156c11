// Package reader opens one quote file and streams it as bounded chunks.
//
// Row groups are pruned once at open time from the ts_init column statistics;
// each NextChunk reads and decodes at most ChunkSize rows of the current group.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/parquet-go/parquet-go"

	"tick-catalog/internal/decode"
	"tick-catalog/internal/metrics"
	"tick-catalog/internal/model"
	"tick-catalog/internal/prune"
)

// DefaultChunkSize is used when Options.ChunkSize is not positive.
const DefaultChunkSize = 10000

var (
	// ErrIO marks a file that cannot be opened or read, including a corrupt footer.
	ErrIO = errors.New("quote file io")
	// ErrClosed is returned by NextChunk after Close.
	ErrClosed = errors.New("reader closed")
)

// Options configures a Reader.
type Options struct {
	ChunkSize int
	Filter    prune.Filter
	Ledger    *metrics.Ledger
	Logger    *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Ledger == nil {
		o.Ledger = metrics.Default()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type binding struct {
	name string
	kind decode.Kind
}

// Reader owns one open quote file and its read cursor. Not safe for concurrent use.
type Reader struct {
	path   string
	file   *os.File
	pf     *parquet.File
	md     decode.Metadata
	opts   Options
	log    *slog.Logger
	leaves []binding

	stats    []prune.RowGroupStats
	noStats  bool
	selected []int
	groups   []parquet.RowGroup

	group  int
	rows   parquet.Rows
	buf    []parquet.Row
	closed bool
}

// Open opens path, validates its schema metadata and prunes row groups against opts.Filter.
func Open(path string, opts Options) (*Reader, error) {
	opts = opts.withDefaults()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: read footer %s: %w", ErrIO, path, err)
	}
	md, err := decode.ParseMetadata(keyValues(pf))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	r := &Reader{
		path:   path,
		file:   f,
		pf:     pf,
		md:     md,
		opts:   opts,
		log:    opts.Logger.With("file", path),
		leaves: leafBindings(pf.Schema()),
		buf:    make([]parquet.Row, opts.ChunkSize),
	}
	r.prune()
	opts.Ledger.FileOpened()

	r.log.Debug("reader open",
		"instrument", md.InstrumentID,
		"row_groups", len(pf.RowGroups()),
		"selected", len(r.selected),
		"filter", opts.Filter.String(),
		"rows", pf.NumRows())
	return r, nil
}

func keyValues(pf *parquet.File) map[string]string {
	kv := make(map[string]string)
	for _, e := range pf.Metadata().KeyValueMetadata {
		kv[e.Key] = e.Value
	}
	return kv
}

// leafBindings maps leaf column indexes to names and decoded kinds.
func leafBindings(schema *parquet.Schema) []binding {
	var out []binding
	for _, path := range schema.Columns() {
		leaf, ok := schema.Lookup(path...)
		if !ok {
			continue
		}
		for len(out) <= leaf.ColumnIndex {
			out = append(out, binding{})
		}
		out[leaf.ColumnIndex] = binding{name: path[len(path)-1], kind: leafKind(leaf.Node)}
	}
	return out
}

// leafKind returns 0 for anything that is not a 64-bit integer column.
func leafKind(n parquet.Node) decode.Kind {
	t := n.Type()
	if t.Kind() != parquet.Int64 {
		return 0
	}
	if lt := t.LogicalType(); lt != nil && lt.Integer != nil && !lt.Integer.IsSigned {
		return decode.Uint64
	}
	return decode.Int64
}

func (r *Reader) prune() {
	all := r.pf.RowGroups()
	tsCol := -1
	for i, b := range r.leaves {
		if b.name == decode.ColTsInit {
			tsCol = i
			break
		}
	}

	var ok bool
	if tsCol >= 0 {
		r.stats, ok = rowGroupStats(all, tsCol)
	}
	if !ok {
		r.noStats = true
		r.selected = prune.SelectAll(len(all))
		r.opts.Ledger.StatsMissing()
		if r.opts.Filter.Op != prune.None {
			r.log.Warn("ts_init statistics missing, selecting all row groups", "filter", r.opts.Filter.String())
		}
	} else {
		r.selected = prune.Select(r.stats, r.opts.Filter)
	}

	r.groups = make([]parquet.RowGroup, len(r.selected))
	for i, idx := range r.selected {
		r.groups[i] = all[idx]
	}
	r.opts.Ledger.GroupsPruned(len(all) - len(r.selected))
}

// rowGroupStats reads the ts_init bounds of every group. ok is false when no group has bounds.
func rowGroupStats(groups []parquet.RowGroup, col int) (stats []prune.RowGroupStats, ok bool) {
	stats = make([]prune.RowGroupStats, len(groups))
	for i, rg := range groups {
		chunks := rg.ColumnChunks()
		if col >= len(chunks) {
			continue
		}
		fc, isFile := chunks[col].(*parquet.FileColumnChunk)
		if !isFile {
			continue
		}
		lo, hi, has := fc.Bounds()
		if !has || lo.IsNull() || hi.IsNull() {
			continue
		}
		stats[i] = prune.Bounds(lo.Uint64(), hi.Uint64())
		ok = true
	}
	return stats, ok || len(groups) == 0
}

// Path returns the file path.
func (r *Reader) Path() string { return r.path }

// Metadata returns the file's schema metadata.
func (r *Reader) Metadata() decode.Metadata { return r.md }

// Stats returns the ts_init statistics per row group (empty entries have no bounds).
func (r *Reader) Stats() []prune.RowGroupStats { return r.stats }

// StatsMissing reports whether pruning failed open for lack of statistics.
func (r *Reader) StatsMissing() bool { return r.noStats }

// SelectedGroups returns the row-group indexes that will be read, in file order.
func (r *Reader) SelectedGroups() []int { return r.selected }

// NumRows returns the number of rows in the selected row groups.
func (r *Reader) NumRows() int64 {
	var n int64
	for _, g := range r.groups {
		n += g.NumRows()
	}
	return n
}

// NextChunk reads and decodes up to ChunkSize rows. It returns io.EOF after the last selected group.
func (r *Reader) NextChunk(ctx context.Context) (*model.Chunk, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for r.group < len(r.groups) {
		if r.rows == nil {
			r.rows = r.groups[r.group].Rows()
		}
		n, err := r.rows.ReadRows(r.buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: read row group %d of %s: %w", ErrIO, r.selected[r.group], r.path, err)
		}
		if n == 0 {
			r.nextGroup()
			continue
		}
		groupIdx := r.selected[r.group]
		if err != nil {
			r.nextGroup()
		}
		quotes, derr := r.decodeRows(r.buf[:n])
		if derr != nil {
			return nil, fmt.Errorf("%s: row group %d: %w", r.path, groupIdx, derr)
		}
		r.opts.Ledger.RecordsDecoded(len(quotes))
		return r.opts.Ledger.NewChunk(quotes), nil
	}
	return nil, io.EOF
}

func (r *Reader) nextGroup() {
	if r.rows != nil {
		if err := r.rows.Close(); err != nil {
			r.log.Warn("close row group rows", "group", r.selected[r.group], "error", err)
		}
		r.rows = nil
	}
	r.group++
}

// decodeRows pivots rows into a columnar batch and decodes it.
func (r *Reader) decodeRows(rows []parquet.Row) ([]model.QuoteTick, error) {
	batch := decode.Batch{NumRows: len(rows), Columns: make([]decode.Column, len(r.leaves))}
	for i, b := range r.leaves {
		c := decode.Column{Name: b.name, Kind: b.kind}
		switch b.kind {
		case decode.Int64:
			c.Ints = make([]int64, 0, len(rows))
		case decode.Uint64:
			c.Uints = make([]uint64, 0, len(rows))
		}
		batch.Columns[i] = c
	}
	for rowIdx, row := range rows {
		for _, v := range row {
			col := v.Column()
			if col < 0 || col >= len(batch.Columns) {
				continue
			}
			c := &batch.Columns[col]
			if c.Kind == 0 {
				continue
			}
			if v.IsNull() {
				return nil, fmt.Errorf("%w: null %q at row %d", decode.ErrDecode, c.Name, rowIdx)
			}
			if c.Kind == decode.Int64 {
				c.Ints = append(c.Ints, v.Int64())
			} else {
				c.Uints = append(c.Uints, v.Uint64())
			}
		}
	}
	return decode.Decode(r.md, batch)
}

// Release gives a chunk returned by NextChunk back.
func (r *Reader) Release(c *model.Chunk) error {
	return c.Release()
}

// Close releases the file. Repeated calls are no-ops.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.rows != nil {
		r.rows.Close()
		r.rows = nil
	}
	r.opts.Ledger.FileClosed()
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrIO, r.path, err)
	}
	return nil
}
