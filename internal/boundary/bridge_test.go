package boundary

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tick-catalog/internal/catalog"
	"tick-catalog/internal/decode"
	"tick-catalog/internal/metrics"
	"tick-catalog/internal/model"
	"tick-catalog/internal/saver"
)

func writeQuotes(t *testing.T, id string, groups ...[]uint64) string {
	t.Helper()
	md := decode.Metadata{InstrumentID: id, PricePrecision: 2, SizePrecision: 0}
	qs := make([][]model.QuoteTick, len(groups))
	for i, g := range groups {
		for _, ts := range g {
			qs[i] = append(qs[i], model.QuoteTick{
				InstrumentID: id,
				BidPrice:     model.NewPrice(10000, 2),
				AskPrice:     model.NewPrice(10001, 2),
				BidSize:      model.NewQuantity(5, 0),
				AskSize:      model.NewQuantity(6, 0),
				TsEvent:      ts,
				TsInit:       ts,
			})
		}
	}
	path := filepath.Join(t.TempDir(), id+".parquet")
	require.NoError(t, saver.WriteFile(path, md, qs...))
	return path
}

func newBridge() (*Bridge, *metrics.Ledger) {
	ledger := metrics.NewLedger(nil)
	return NewBridge(Options{Ledger: ledger}), ledger
}

func TestBridgeReaderLifecycle(t *testing.T) {
	ctx := context.Background()
	b, ledger := newBridge()
	h, err := b.OpenReader(writeQuotes(t, "A", []uint64{1, 2, 3}), 2, 0)
	require.NoError(t, err)

	d, err := b.NextChunk(ctx, h)
	require.NoError(t, err)
	require.Equal(t, 2, d.Len)
	require.GreaterOrEqual(t, d.Cap, d.Len)
	require.Equal(t, TagQuoteTick, d.Tag)

	recs, err := b.Records(d)
	require.NoError(t, err)
	require.Equal(t, uint64(1), recs[0].TsInit)

	_, err = b.NextChunk(ctx, h)
	require.ErrorIs(t, err, ErrChunkOutstanding)

	require.NoError(t, b.DropChunk(d))
	require.ErrorIs(t, b.DropChunk(d), ErrStaleHandle)
	_, err = b.Records(d)
	require.ErrorIs(t, err, ErrStaleHandle)

	d, err = b.NextChunk(ctx, h)
	require.NoError(t, err)
	require.Equal(t, 1, d.Len)
	require.NoError(t, b.DropChunk(d))

	end, err := b.NextChunk(ctx, h)
	require.NoError(t, err)
	require.True(t, end.End())
	require.Zero(t, end.Len)
	end, err = b.NextChunk(ctx, h)
	require.NoError(t, err)
	require.True(t, end.End())

	require.NoError(t, b.Free(h))
	require.ErrorIs(t, b.Free(h), ErrStaleHandle)
	_, err = b.NextChunk(ctx, h)
	require.ErrorIs(t, err, ErrStaleHandle)
	require.True(t, ledger.Outstanding().Zero())
}

func TestBridgeFilterArg(t *testing.T) {
	ctx := context.Background()
	b, _ := newBridge()
	defer b.Close()
	path := writeQuotes(t, "A", []uint64{0, 50, 100}, []uint64{150, 200, 250}, []uint64{300, 350, 400})

	h, err := b.OpenReader(path, 10, -200)
	require.NoError(t, err)
	var lens []int
	var ts []uint64
	for {
		d, err := b.NextChunk(ctx, h)
		require.NoError(t, err)
		if d.End() {
			break
		}
		lens = append(lens, d.Len)
		recs, err := b.Records(d)
		require.NoError(t, err)
		for _, q := range recs {
			ts = append(ts, q.TsInit)
		}
		require.NoError(t, b.DropChunk(d))
	}
	require.Equal(t, []int{3, 3}, lens)
	require.Equal(t, []uint64{0, 50, 100, 150, 200, 250}, ts)
}

func TestBridgeChunkOutlivesFree(t *testing.T) {
	ctx := context.Background()
	b, ledger := newBridge()
	h, err := b.OpenReader(writeQuotes(t, "A", []uint64{1, 2}), 5, 0)
	require.NoError(t, err)
	d, err := b.NextChunk(ctx, h)
	require.NoError(t, err)

	require.NoError(t, b.Free(h))
	require.Equal(t, metrics.Outstanding{Files: 0, Chunks: 1}, ledger.Outstanding())
	recs, err := b.Records(d)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.NoError(t, b.DropChunk(d))
	require.True(t, ledger.Outstanding().Zero())
}

func TestBridgeQuery(t *testing.T) {
	ctx := context.Background()
	ledger := metrics.NewLedger(nil)
	cat := catalog.New(catalog.Options{ChunkSize: 2, Ledger: ledger})
	require.NoError(t, cat.Register("A", writeQuotes(t, "A", []uint64{1, 3, 5}), catalog.Query{}))
	require.NoError(t, cat.Register("B", writeQuotes(t, "B", []uint64{2, 4, 6}), catalog.Query{}))
	res, err := cat.Consume(2)
	require.NoError(t, err)

	b := NewBridge(Options{Ledger: ledger})
	h := b.OpenQuery(res)
	var ts []uint64
	for {
		d, err := b.NextChunk(ctx, h)
		require.NoError(t, err)
		if d.End() {
			break
		}
		require.LessOrEqual(t, d.Len, 2)
		recs, err := b.Records(d)
		require.NoError(t, err)
		for _, q := range recs {
			ts = append(ts, q.TsInit)
		}
		require.NoError(t, b.DropChunk(d))
	}
	require.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, ts)
	require.NoError(t, b.Free(h))
	require.True(t, ledger.Outstanding().Zero())
}

func TestBridgeCloseReleasesEverything(t *testing.T) {
	ctx := context.Background()
	b, ledger := newBridge()
	h1, err := b.OpenReader(writeQuotes(t, "A", []uint64{1, 2, 3}), 1, 0)
	require.NoError(t, err)
	_, err = b.OpenReader(writeQuotes(t, "B", []uint64{1}), 1, 0)
	require.NoError(t, err)
	_, err = b.NextChunk(ctx, h1)
	require.NoError(t, err)

	streams, chunks := b.Live()
	require.Equal(t, 2, streams)
	require.Equal(t, 1, chunks)

	require.NoError(t, b.Close())
	require.True(t, ledger.Outstanding().Zero())
	_, err = b.NextChunk(ctx, h1)
	require.ErrorIs(t, err, ErrStaleHandle)
}

func TestOpenReaderErrors(t *testing.T) {
	b, ledger := newBridge()
	_, err := b.OpenReader(filepath.Join(t.TempDir(), "missing.parquet"), 10, 0)
	require.Error(t, err)
	streams, _ := b.Live()
	require.Zero(t, streams)
	require.True(t, ledger.Outstanding().Zero())
}
