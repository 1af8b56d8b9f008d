// Package store is the point store: an insert-only collection of
// D-dimensional integer points backed by a Morton-ordered persistent
// radix tree, supporting ordered range scans and growing-radius nearest
// neighbor queries on top of it.
package store

import (
	"encoding/binary"

	iradix "github.com/hashicorp/go-immutable-radix"

	"zorderidx/internal/assert"
	"zorderidx/morton"
)

// MissThreshold is the number of consecutive out-of-rectangle keys a
// scan tolerates before re-seeking via the Z-order successor (BIGMIN)
// rather than continuing to step the cursor one key at a time.
var MissThreshold = 32

// NNSortCrossover is the candidate-batch size at or above which Nearest
// sorts with sort.Slice instead of an insertion sort.
var NNSortCrossover = 64

// Store holds points keyed by their big-endian Morton encoding in an
// immutable radix tree, so byte-lexicographic key order equals Morton
// numeric order. Every mutation replaces Store.tree with the tree
// returned by Insert, following go-immutable-radix's persistent,
// copy-on-write convention: readers holding an older Store value keep
// seeing a consistent snapshot.
type Store struct {
	dims int
	tree *iradix.Tree
	n    int
}

// NewStore creates an empty store for dims-dimensional points. dims
// must be morton.Dims2 or morton.Dims4.
func NewStore(dims int) *Store {
	assert.BugOn(dims != morton.Dims2 && dims != morton.Dims4, "store: unsupported dims %d (want 2 or 4)", dims)
	return &Store{dims: dims, tree: iradix.New()}
}

// Dims reports the store's dimensionality.
func (s *Store) Dims() int { return s.dims }

// Len reports the number of points inserted.
func (s *Store) Len() int { return s.n }

// ByteSize estimates the store's resident size: each point's coordinate
// and key fields, plus a fixed per-entry allowance for the radix tree's
// node overhead. This is an estimate, not an exact accounting of the
// tree's internal allocation.
func (s *Store) ByteSize() int {
	const perPointFields = 8 // cached Morton key
	const nodeOverhead = 48  // rough edge/leaf/prefix overhead per tree entry
	perPoint := perPointFields + s.dims*4
	return s.n*perPoint + s.tree.Len()*nodeOverhead
}

func keyBytes(z uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, z)
	return b
}

func decodeKey(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func maxCoord(dims int) uint32 {
	width := morton.LaneWidth(dims)
	if width >= 32 {
		return ^uint32(0)
	}
	return (uint32(1) << uint(width)) - 1
}

// Insert adds a point at the given coordinates. len(coords) must equal
// the store's dimensionality. Points with equal coordinates are stored
// independently; points with equal Morton keys but distinct coordinates
// (only possible with coordinates wider than morton.LaneWidth(dims)
// bits, which morton.Encode rejects) would share a bucket.
func (s *Store) Insert(coords ...uint32) {
	assert.BugOn(len(coords) != s.dims, "store: Insert expected %d coords, got %d", s.dims, len(coords))

	lanes := make([]uint64, s.dims)
	var p Point
	p.Dims = s.dims
	for i, c := range coords {
		p.Coords[i] = c
		lanes[i] = uint64(c)
	}
	p.Key = morton.Encode(s.dims, lanes)

	kb := keyBytes(p.Key)
	var bucket []Point
	if existing, ok := s.tree.Get(kb); ok {
		bucket = existing.([]Point)
	}
	bucket = append(bucket, p)

	newTree, _, _ := s.tree.Insert(kb, bucket)
	s.tree = newTree
	s.n++
}

// QueryRange returns an iterator over every point whose coordinates lie
// within [lo[i], hi[i]] on every lane, in ascending Morton order.
// lo[i] must not exceed hi[i].
func (s *Store) QueryRange(lo, hi []uint32) *RangeIter {
	assert.BugOn(len(lo) != s.dims || len(hi) != s.dims, "store: QueryRange expected %d-length bounds", s.dims)
	loLanes := make([]uint64, s.dims)
	hiLanes := make([]uint64, s.dims)
	for i := 0; i < s.dims; i++ {
		assert.BugOn(lo[i] > hi[i], "store: QueryRange lane %d has lo %d > hi %d", i, lo[i], hi[i])
		loLanes[i] = uint64(lo[i])
		hiLanes[i] = uint64(hi[i])
	}
	minZ := morton.Encode(s.dims, loLanes)
	maxZ := morton.Encode(s.dims, hiLanes)
	return newRangeIter(s.tree, newIndexerRect(s.dims, minZ, maxZ))
}

// QueryAABB returns an iterator over every point within Chebyshev
// distance half of center, clamped to the valid coordinate domain.
func (s *Store) QueryAABB(center []uint32, half uint32) *RangeIter {
	assert.BugOn(len(center) != s.dims, "store: QueryAABB expected %d-length center", s.dims)
	mc := maxCoord(s.dims)
	lo := make([]uint32, s.dims)
	hi := make([]uint32, s.dims)
	for i := 0; i < s.dims; i++ {
		lo[i] = sub0(center[i], half)
		hi[i] = addClamp(center[i], half, mc)
	}
	return s.QueryRange(lo, hi)
}

// CountWithin reports how many points lie within Chebyshev distance
// half of center.
func (s *Store) CountWithin(center []uint32, half uint32) int {
	it := s.QueryAABB(center, half)
	n := 0
	for it.Next() {
		n++
	}
	return n
}

// Nearest returns an iterator that emits every stored point in
// non-decreasing Chebyshev distance from q.
func (s *Store) Nearest(q []uint32) *NearestIter {
	assert.BugOn(len(q) != s.dims, "store: Nearest expected %d-length query point", s.dims)
	return newNearestIter(s, q)
}
