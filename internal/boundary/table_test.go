package boundary

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableGenerations(t *testing.T) {
	var tab Table[string]
	a := tab.Insert("a")
	b := tab.Insert("b")
	require.NotEqual(t, a, b)
	require.False(t, a.IsZero())

	v, err := tab.Get(a)
	require.NoError(t, err)
	require.Equal(t, "a", v)

	v, err = tab.Remove(a)
	require.NoError(t, err)
	require.Equal(t, "a", v)
	_, err = tab.Remove(a)
	require.ErrorIs(t, err, ErrStaleHandle)

	c := tab.Insert("c")
	require.Equal(t, a.index(), c.index())
	require.NotEqual(t, a, c)
	_, err = tab.Get(a)
	require.ErrorIs(t, err, ErrStaleHandle)
	v, err = tab.Get(c)
	require.NoError(t, err)
	require.Equal(t, "c", v)
	require.Equal(t, 2, tab.Len())
}

func TestTableRejectsForeignHandles(t *testing.T) {
	var tab Table[int]
	_, err := tab.Get(0)
	require.ErrorIs(t, err, ErrStaleHandle)
	_, err = tab.Get(makeHandle(7, 1))
	require.ErrorIs(t, err, ErrStaleHandle)
}

func TestTableDrain(t *testing.T) {
	var tab Table[int]
	h1 := tab.Insert(1)
	tab.Insert(2)
	tab.Insert(3)
	_, err := tab.Remove(h1)
	require.NoError(t, err)

	require.Equal(t, []int{2, 3}, tab.Drain())
	require.Zero(t, tab.Len())
	require.Empty(t, tab.Drain())
}
