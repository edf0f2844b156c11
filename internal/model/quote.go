package model

import (
	"math"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// MaxPrecision is the largest number of decimal places a Price or Quantity may carry.
const MaxPrecision = 9

// Price is a signed scaled-decimal value: Raw * 10^-Precision.
type Price struct {
	Raw       int64 `json:"raw"`
	Precision uint8 `json:"precision"`
}

// NewPrice builds a Price from its raw integer and precision.
func NewPrice(raw int64, precision uint8) Price {
	return Price{Raw: raw, Precision: precision}
}

// Decimal returns the exact decimal value.
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(p.Raw, -int32(p.Precision))
}

// Float64 is a lossy convenience for display and statistics.
func (p Price) Float64() float64 {
	return float64(p.Raw) / math.Pow10(int(p.Precision))
}

func (p Price) String() string {
	return p.Decimal().StringFixed(int32(p.Precision))
}

// Quantity is an unsigned scaled-decimal value: Raw * 10^-Precision.
type Quantity struct {
	Raw       uint64 `json:"raw"`
	Precision uint8  `json:"precision"`
}

// NewQuantity builds a Quantity from its raw integer and precision.
func NewQuantity(raw uint64, precision uint8) Quantity {
	return Quantity{Raw: raw, Precision: precision}
}

// Decimal returns the exact decimal value. Raw values above MaxInt64 go through big.Int.
func (q Quantity) Decimal() decimal.Decimal {
	if q.Raw <= math.MaxInt64 {
		return decimal.New(int64(q.Raw), -int32(q.Precision))
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(q.Raw), -int32(q.Precision))
}

// Float64 is a lossy convenience for display and statistics.
func (q Quantity) Float64() float64 {
	return float64(q.Raw) / math.Pow10(int(q.Precision))
}

func (q Quantity) String() string {
	return q.Decimal().StringFixed(int32(q.Precision))
}

// QuoteTick is one top-of-book quote for an instrument.
// TsEvent is when the venue produced the quote, TsInit when this system captured it (Unix ns).
// Records inside one stored file are in non-decreasing TsInit order; TsInit >= TsEvent is not enforced.
type QuoteTick struct {
	InstrumentID string   `json:"instrument_id"`
	BidPrice     Price    `json:"bid"`
	AskPrice     Price    `json:"ask"`
	BidSize      Quantity `json:"bid_size"`
	AskSize      Quantity `json:"ask_size"`
	TsEvent      uint64   `json:"ts_event"`
	TsInit       uint64   `json:"ts_init"`
}

func (q QuoteTick) String() string {
	return q.InstrumentID + "," + q.BidPrice.String() + "," + q.AskPrice.String() + "," +
		q.BidSize.String() + "," + q.AskSize.String() + "," +
		strconv.FormatUint(q.TsEvent, 10) + "," + strconv.FormatUint(q.TsInit, 10)
}
