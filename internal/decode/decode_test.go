package decode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testMetadata() Metadata {
	return Metadata{InstrumentID: "EUR/USD.SIM", PricePrecision: 5, SizePrecision: 0}
}

func testBatch() Batch {
	return Batch{
		NumRows: 2,
		Columns: []Column{
			{Name: ColBid, Kind: Int64, Ints: []int64{110000, 110010}},
			{Name: ColAsk, Kind: Int64, Ints: []int64{110020, 110030}},
			{Name: ColBidSize, Kind: Uint64, Uints: []uint64{1000000, 2000000}},
			{Name: ColAskSize, Kind: Uint64, Uints: []uint64{3000000, 4000000}},
			{Name: ColTsEvent, Kind: Uint64, Uints: []uint64{90, 190}},
			{Name: ColTsInit, Kind: Uint64, Uints: []uint64{100, 200}},
		},
	}
}

func TestDecode(t *testing.T) {
	quotes, err := Decode(testMetadata(), testBatch())
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	q := quotes[0]
	require.Equal(t, "EUR/USD.SIM", q.InstrumentID)
	require.Equal(t, "1.10000", q.BidPrice.String())
	require.Equal(t, "1.10020", q.AskPrice.String())
	require.Equal(t, uint64(1000000), q.BidSize.Raw)
	require.Equal(t, uint64(3000000), q.AskSize.Raw)
	require.Equal(t, uint64(90), q.TsEvent)
	require.Equal(t, uint64(100), q.TsInit)
	require.Equal(t, uint64(200), quotes[1].TsInit)
}

func TestDecodeToleratesTsInitBeforeTsEvent(t *testing.T) {
	b := testBatch()
	c, _ := b.Column(ColTsEvent)
	c.Uints[0] = 500
	quotes, err := Decode(testMetadata(), b)
	require.NoError(t, err)
	require.Equal(t, uint64(500), quotes[0].TsEvent)
}

func TestDecodeColumnErrors(t *testing.T) {
	missing := testBatch()
	missing.Columns = missing.Columns[:5]
	_, err := Decode(testMetadata(), missing)
	require.ErrorIs(t, err, ErrDecode)
	require.Contains(t, err.Error(), ColTsInit)

	wrongKind := testBatch()
	wrongKind.Columns[0] = Column{Name: ColBid, Kind: Uint64, Uints: []uint64{1, 2}}
	_, err = Decode(testMetadata(), wrongKind)
	require.ErrorIs(t, err, ErrDecode)

	short := testBatch()
	short.Columns[5].Uints = short.Columns[5].Uints[:1]
	_, err = Decode(testMetadata(), short)
	require.ErrorIs(t, err, ErrDecode)
}

func TestDecodeEmptyBatch(t *testing.T) {
	b := Batch{}
	for _, l := range Layout {
		b.Columns = append(b.Columns, Column{Name: l.Name, Kind: l.Kind})
	}
	quotes, err := Decode(testMetadata(), b)
	require.NoError(t, err)
	require.Empty(t, quotes)
}

func TestParseMetadata(t *testing.T) {
	md, err := ParseMetadata(map[string]string{
		KeyInstrumentID:   "AAPL.XNAS",
		KeyPricePrecision: "2",
		KeySizePrecision:  " 0 ",
	})
	require.NoError(t, err)
	require.Equal(t, Metadata{InstrumentID: "AAPL.XNAS", PricePrecision: 2}, md)

	back, err := ParseMetadata(md.KeyValues())
	require.NoError(t, err)
	require.Equal(t, md, back)
}

func TestParseMetadataErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"no instrument":  {KeyPricePrecision: "2", KeySizePrecision: "0"},
		"no price prec":  {KeyInstrumentID: "X", KeySizePrecision: "0"},
		"bad size prec":  {KeyInstrumentID: "X", KeyPricePrecision: "2", KeySizePrecision: "abc"},
		"too precise":    {KeyInstrumentID: "X", KeyPricePrecision: "12", KeySizePrecision: "0"},
		"negative":       {KeyInstrumentID: "X", KeyPricePrecision: "-1", KeySizePrecision: "0"},
		"blank id":       {KeyInstrumentID: "  ", KeyPricePrecision: "2", KeySizePrecision: "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMetadata(kv)
			require.ErrorIs(t, err, ErrMetadata)
		})
	}
}
