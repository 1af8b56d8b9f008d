package zorder

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"zorderidx/morton"
)

func TestIndexer_SeedScenario_2x3Tile(t *testing.T) {
	t.Parallel()
	ix := NewIndexer(2, NewRectangle(0, 6))

	require.True(t, ix.Contains(4))
	require.False(t, ix.Contains(5))
	require.True(t, ix.Contains(6))
	require.False(t, ix.Contains(7))

	next, ok := ix.Next(4)
	require.True(t, ok)
	require.Equal(t, uint64(6), next)

	_, ok = ix.Next(6)
	require.False(t, ok)
}

func TestIndexer_Next_FastPath(t *testing.T) {
	t.Parallel()
	ix := NewIndexer(2, NewRectangle(0, 100))
	next, ok := ix.Next(3)
	require.True(t, ok)
	require.Equal(t, uint64(4), next)
}

func TestIndexer_Next_EnumeratesRectangleInAscendingOrder(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(11))
	for trial := 0; trial < 200; trial++ {
		x0, x1 := r.Intn(20), r.Intn(20)
		y0, y1 := r.Intn(20), r.Intn(20)
		if x0 > x1 {
			x0, x1 = x1, x0
		}
		if y0 > y1 {
			y0, y1 = y1, y0
		}
		minZ := morton.Encode2(uint32(x0), uint32(y0))
		maxZ := morton.Encode2(uint32(x1), uint32(y1))
		ix := NewIndexer(2, NewRectangle(minZ, maxZ))

		brute := bruteForceRectangle(x0, x1, y0, y1)

		var walked []uint64
		z, ok := minZ, ix.Contains(minZ)
		if ok {
			walked = append(walked, z)
		}
		for i := 0; i < 10_000; i++ {
			nz, nok := ix.Next(z)
			if !nok {
				break
			}
			require.Greater(t, nz, z, "Next must be strictly increasing")
			walked = append(walked, nz)
			z = nz
		}

		require.Equal(t, len(brute), len(walked), "enumerated count mismatch for rect (%d,%d)-(%d,%d)", x0, y0, x1, y1)
		for i, got := range walked {
			require.Equal(t, brute[i], got)
		}
		for i := 1; i < len(walked); i++ {
			require.Less(t, walked[i-1], walked[i], "must be strictly ascending")
		}
	}
}

func TestIndexer_Contains_MatchesBruteForce(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(22))
	for trial := 0; trial < 500; trial++ {
		x0, x1 := r.Intn(32), r.Intn(32)
		y0, y1 := r.Intn(32), r.Intn(32)
		if x0 > x1 {
			x0, x1 = x1, x0
		}
		if y0 > y1 {
			y0, y1 = y1, y0
		}
		ix := NewIndexer(2, NewRectangle(morton.Encode2(uint32(x0), uint32(y0)), morton.Encode2(uint32(x1), uint32(y1))))

		for i := 0; i < 50; i++ {
			x, y := r.Intn(32), r.Intn(32)
			z := morton.Encode2(uint32(x), uint32(y))
			want := x >= x0 && x <= x1 && y >= y0 && y <= y1
			require.Equal(t, want, ix.Contains(z), "contains(%d,%d) mismatch for rect (%d,%d)-(%d,%d)", x, y, x0, y0, x1, y1)
		}
	}
}

// bruteForceRectangle enumerates every Morton key of points within
// [x0,x1]x[y0,y1], in ascending Morton order.
func bruteForceRectangle(x0, x1, y0, y1 int) []uint64 {
	var keys []uint64
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			keys = append(keys, morton.Encode2(uint32(x), uint32(y)))
		}
	}
	// Simple insertion sort; the sets here are small (<= 20*20).
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func TestRectangle_RejectsInvertedBounds(t *testing.T) {
	t.Parallel()
	require.Panics(t, func() {
		NewRectangle(10, 5)
	})
}
