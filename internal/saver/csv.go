package saver

import (
	"encoding/csv"
	"os"
	"strconv"

	"tick-catalog/internal/model"
)

// CSVSaver writes a packet as CSV (header: instrument_id,bid,ask,bid_size,ask_size,ts_event,ts_init).
// Prices and sizes are exact decimal text.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(quotes []model.QuoteTick, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)

	if err := w.Write([]string{"instrument_id", "bid", "ask", "bid_size", "ask_size", "ts_event", "ts_init"}); err != nil {
		return err
	}
	for _, q := range quotes {
		if err := w.Write([]string{
			q.InstrumentID,
			q.BidPrice.String(),
			q.AskPrice.String(),
			q.BidSize.String(),
			q.AskSize.String(),
			strconv.FormatUint(q.TsEvent, 10),
			strconv.FormatUint(q.TsInit, 10),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
