package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPriceDecimal(t *testing.T) {
	p := NewPrice(112345, 5)
	require.Equal(t, "1.12345", p.String())
	require.InDelta(t, 1.12345, p.Float64(), 1e-12)

	neg := NewPrice(-250, 2)
	require.Equal(t, "-2.50", neg.String())
}

func TestQuantityDecimalAboveInt64(t *testing.T) {
	q := NewQuantity(math.MaxUint64, 0)
	require.Equal(t, "18446744073709551615", q.String())

	small := NewQuantity(1500000, 6)
	require.Equal(t, "1.500000", small.String())
}

func TestChunkRelease(t *testing.T) {
	var calls int
	c := NewChunk([]QuoteTick{{TsInit: 1}, {TsInit: 2}}, func() { calls++ })
	first, ok := c.First()
	require.True(t, ok)
	require.Equal(t, uint64(1), first)
	last, _ := c.Last()
	require.Equal(t, uint64(2), last)

	require.NoError(t, c.Release())
	require.True(t, c.Released())
	require.Equal(t, 0, c.Len())
	require.ErrorIs(t, c.Release(), ErrChunkReleased)
	require.Equal(t, 1, calls)
}
