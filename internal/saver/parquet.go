package saver

import (
	"fmt"
	"os"
	"sort"

	"github.com/parquet-go/parquet-go"

	"tick-catalog/internal/decode"
	"tick-catalog/internal/model"
)

// DefaultRowGroupSize bounds the rows written per row group by ParquetSaver.
const DefaultRowGroupSize = 100000

// quoteRow is the stored quote layout; prices and sizes are raw scaled integers.
type quoteRow struct {
	Bid     int64  `parquet:"bid"`
	Ask     int64  `parquet:"ask"`
	BidSize uint64 `parquet:"bid_size"`
	AskSize uint64 `parquet:"ask_size"`
	TsEvent uint64 `parquet:"ts_event"`
	TsInit  uint64 `parquet:"ts_init"`
}

// ParquetSaver writes a packet in the catalog's own file format, readable by reader.Open.
// A parquet packet holds a single instrument with a single pair of precisions.
type ParquetSaver struct {
	RowGroupSize int
}

func (ParquetSaver) Extension() string { return "parquet" }

func (s ParquetSaver) Save(quotes []model.QuoteTick, path string) error {
	if len(quotes) == 0 {
		return fmt.Errorf("parquet packet %s: no quotes", path)
	}
	md, err := metadataOf(quotes)
	if err != nil {
		return fmt.Errorf("parquet packet %s: %w", path, err)
	}
	size := s.RowGroupSize
	if size <= 0 {
		size = DefaultRowGroupSize
	}
	var groups [][]model.QuoteTick
	for start := 0; start < len(quotes); start += size {
		end := min(start+size, len(quotes))
		groups = append(groups, quotes[start:end])
	}
	return WriteFile(path, md, groups...)
}

// metadataOf takes the file constants from the first quote and checks the rest agree.
func metadataOf(quotes []model.QuoteTick) (decode.Metadata, error) {
	first := quotes[0]
	md := decode.Metadata{
		InstrumentID:   first.InstrumentID,
		PricePrecision: first.BidPrice.Precision,
		SizePrecision:  first.BidSize.Precision,
	}
	for _, q := range quotes {
		if q.InstrumentID != md.InstrumentID {
			return md, fmt.Errorf("mixed instruments %q and %q", md.InstrumentID, q.InstrumentID)
		}
		if q.BidPrice.Precision != md.PricePrecision || q.AskPrice.Precision != md.PricePrecision ||
			q.BidSize.Precision != md.SizePrecision || q.AskSize.Precision != md.SizePrecision {
			return md, fmt.Errorf("mixed precisions for %s at ts_init %d", q.InstrumentID, q.TsInit)
		}
	}
	return md, nil
}

// WriteFile writes one row group per element of groups, with md as key/value metadata.
// Empty groups are skipped.
func WriteFile(path string, md decode.Metadata, groups ...[]model.QuoteTick) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	kv := md.KeyValues()
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	opts := make([]parquet.WriterOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, parquet.KeyValueMetadata(k, kv[k]))
	}

	w := parquet.NewGenericWriter[quoteRow](f, opts...)
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		rows := make([]quoteRow, len(g))
		for i, q := range g {
			rows[i] = quoteRow{
				Bid:     q.BidPrice.Raw,
				Ask:     q.AskPrice.Raw,
				BidSize: q.BidSize.Raw,
				AskSize: q.AskSize.Raw,
				TsEvent: q.TsEvent,
				TsInit:  q.TsInit,
			}
		}
		if _, err := w.Write(rows); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush row group: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return f.Close()
}
