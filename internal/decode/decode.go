// Package decode turns one columnar batch plus file metadata into quote records.
package decode

import (
	"errors"
	"fmt"

	"tick-catalog/internal/model"
)

// ErrDecode marks a batch whose columns are absent, mistyped or misaligned.
var ErrDecode = errors.New("decode batch")

// Column names of the stored quote layout.
const (
	ColBid     = "bid"
	ColAsk     = "ask"
	ColBidSize = "bid_size"
	ColAskSize = "ask_size"
	ColTsEvent = "ts_event"
	ColTsInit  = "ts_init"
)

// Kind is the physical layout of a decoded column.
type Kind uint8

const (
	Int64 Kind = iota + 1
	Uint64
)

func (k Kind) String() string {
	switch k {
	case Int64:
		return "int64"
	case Uint64:
		return "uint64"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Column is one fixed-width column of a batch. Only the slice matching Kind is populated.
type Column struct {
	Name  string
	Kind  Kind
	Ints  []int64
	Uints []uint64
}

// Len returns the number of values held.
func (c *Column) Len() int {
	if c.Kind == Int64 {
		return len(c.Ints)
	}
	return len(c.Uints)
}

// Batch is a row-aligned set of columns.
type Batch struct {
	NumRows int
	Columns []Column
}

// Column returns the column with the given name.
func (b *Batch) Column(name string) (*Column, bool) {
	for i := range b.Columns {
		if b.Columns[i].Name == name {
			return &b.Columns[i], true
		}
	}
	return nil, false
}

// Layout lists the required columns in storage order with their kinds.
var Layout = []struct {
	Name string
	Kind Kind
}{
	{ColBid, Int64},
	{ColAsk, Int64},
	{ColBidSize, Uint64},
	{ColAskSize, Uint64},
	{ColTsEvent, Uint64},
	{ColTsInit, Uint64},
}

// Decode converts b into records, preserving row order.
func Decode(md Metadata, b Batch) ([]model.QuoteTick, error) {
	return DecodeInto(make([]model.QuoteTick, 0, b.NumRows), md, b)
}

// DecodeInto appends the records of b to dst.
func DecodeInto(dst []model.QuoteTick, md Metadata, b Batch) ([]model.QuoteTick, error) {
	bid, err := intColumn(&b, ColBid)
	if err != nil {
		return dst, err
	}
	ask, err := intColumn(&b, ColAsk)
	if err != nil {
		return dst, err
	}
	bidSize, err := uintColumn(&b, ColBidSize)
	if err != nil {
		return dst, err
	}
	askSize, err := uintColumn(&b, ColAskSize)
	if err != nil {
		return dst, err
	}
	tsEvent, err := uintColumn(&b, ColTsEvent)
	if err != nil {
		return dst, err
	}
	tsInit, err := uintColumn(&b, ColTsInit)
	if err != nil {
		return dst, err
	}

	pp, sp := md.PricePrecision, md.SizePrecision
	for i := 0; i < b.NumRows; i++ {
		dst = append(dst, model.QuoteTick{
			InstrumentID: md.InstrumentID,
			BidPrice:     model.NewPrice(bid[i], pp),
			AskPrice:     model.NewPrice(ask[i], pp),
			BidSize:      model.NewQuantity(bidSize[i], sp),
			AskSize:      model.NewQuantity(askSize[i], sp),
			TsEvent:      tsEvent[i],
			TsInit:       tsInit[i],
		})
	}
	return dst, nil
}

func lookup(b *Batch, name string, kind Kind) (*Column, error) {
	c, ok := b.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: column %q absent", ErrDecode, name)
	}
	if c.Kind != kind {
		return nil, fmt.Errorf("%w: column %q is %s, want %s", ErrDecode, name, c.Kind, kind)
	}
	if c.Len() != b.NumRows {
		return nil, fmt.Errorf("%w: column %q has %d values for %d rows", ErrDecode, name, c.Len(), b.NumRows)
	}
	return c, nil
}

func intColumn(b *Batch, name string) ([]int64, error) {
	c, err := lookup(b, name, Int64)
	if err != nil {
		return nil, err
	}
	return c.Ints, nil
}

func uintColumn(b *Batch, name string) ([]uint64, error) {
	c, err := lookup(b, name, Uint64)
	if err != nil {
		return nil, err
	}
	return c.Uints, nil
}
