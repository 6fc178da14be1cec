package workspace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocRelease(t *testing.T) {
	ws := New(10)
	m := ws.Mark()

	a := ws.Alloc(4)
	require.Len(t, a, 4)
	a[0] = 42
	b := ws.Alloc(6)
	require.Len(t, b, 6)
	require.Equal(t, 10, ws.Used())
	require.Equal(t, 10, ws.HighWater())

	// Slices are capacity-limited so an append cannot spill into the next one.
	require.Equal(t, 4, cap(a))

	ws.Release(m)
	require.Equal(t, 0, ws.Used())
	require.Equal(t, 10, ws.HighWater())

	c := ws.Alloc(1)
	require.Zero(t, c[0])
}

func TestExhausted(t *testing.T) {
	ws := New(3)
	ws.Alloc(2)
	require.Panics(t, func() { ws.Alloc(2) })
}

func TestEnsure(t *testing.T) {
	ws := New(1)
	require.Same(t, ws, Ensure(ws, 100))
	require.Equal(t, 100, Ensure(nil, 100).Cap())
}

func TestReset(t *testing.T) {
	ws := New(8)
	ws.Alloc(5)
	ws.Reset()
	require.Zero(t, ws.Used())
	require.Zero(t, ws.HighWater())
}
