package saver

import (
	"encoding/json"
	"os"

	"github.com/shopspring/decimal"

	"tick-catalog/internal/model"
)

// JSONSaver writes a packet as an indented JSON array with decimal prices.
type JSONSaver struct{}

type quoteJSON struct {
	InstrumentID string          `json:"instrument_id"`
	Bid          decimal.Decimal `json:"bid"`
	Ask          decimal.Decimal `json:"ask"`
	BidSize      decimal.Decimal `json:"bid_size"`
	AskSize      decimal.Decimal `json:"ask_size"`
	TsEvent      uint64          `json:"ts_event"`
	TsInit       uint64          `json:"ts_init"`
}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(quotes []model.QuoteTick, path string) error {
	out := make([]quoteJSON, len(quotes))
	for i, q := range quotes {
		out[i] = quoteJSON{
			InstrumentID: q.InstrumentID,
			Bid:          q.BidPrice.Decimal(),
			Ask:          q.AskPrice.Decimal(),
			BidSize:      q.BidSize.Decimal(),
			AskSize:      q.AskSize.Decimal(),
			TsEvent:      q.TsEvent,
			TsInit:       q.TsInit,
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return f.Close()
}
