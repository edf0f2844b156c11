package saver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tick-catalog/internal/model"
)

func sampleQuotes() []model.QuoteTick {
	return []model.QuoteTick{
		{
			InstrumentID: "EUR/USD.SIM",
			BidPrice:     model.NewPrice(110001, 5),
			AskPrice:     model.NewPrice(110003, 5),
			BidSize:      model.NewQuantity(1000000, 0),
			AskSize:      model.NewQuantity(2000000, 0),
			TsEvent:      99,
			TsInit:       100,
		},
		{
			InstrumentID: "EUR/USD.SIM",
			BidPrice:     model.NewPrice(110002, 5),
			AskPrice:     model.NewPrice(110004, 5),
			BidSize:      model.NewQuantity(3000000, 0),
			AskSize:      model.NewQuantity(4000000, 0),
			TsEvent:      199,
			TsInit:       200,
		},
	}
}

func TestNewPacketSaver(t *testing.T) {
	require.Equal(t, "csv", NewPacketSaver(" CSV ").Extension())
	require.Equal(t, "json", NewPacketSaver("json").Extension())
	require.Equal(t, "parquet", NewPacketSaver("parquet").Extension())
	require.Nil(t, NewPacketSaver("xml"))
}

func TestCSVSaver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.csv")
	require.NoError(t, CSVSaver{}.Save(sampleQuotes(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "instrument_id,bid,ask,bid_size,ask_size,ts_event,ts_init", lines[0])
	require.Equal(t, "EUR/USD.SIM,1.10001,1.10003,1000000,2000000,99,100", lines[1])
}

func TestJSONSaver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.json")
	require.NoError(t, JSONSaver{}.Save(sampleQuotes(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	require.Equal(t, "1.10004", got[1]["ask"])
	require.Equal(t, float64(200), got[1]["ts_init"])
}

func TestParquetSaverRejectsMixedInstruments(t *testing.T) {
	quotes := sampleQuotes()
	quotes[1].InstrumentID = "GBP/USD.SIM"
	err := ParquetSaver{}.Save(quotes, filepath.Join(t.TempDir(), "q.parquet"))
	require.ErrorContains(t, err, "mixed instruments")

	err = ParquetSaver{}.Save(nil, filepath.Join(t.TempDir(), "empty.parquet"))
	require.Error(t, err)
}

func TestParquetSaverWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.parquet")
	require.NoError(t, ParquetSaver{RowGroupSize: 1}.Save(sampleQuotes(), path))
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, st.Size(), int64(0))
}
