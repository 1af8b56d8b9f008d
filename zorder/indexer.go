// Package zorder implements the Z-order indexer: given a Morton-encoded
// rectangle, it answers "does key z lie inside the rectangle?" and "what
// is the smallest Morton key > z that lies inside the rectangle?" (the
// BIGMIN / successor computation). This is the part of the design that
// makes a 1-D sorted structure usable as a multidimensional index.
package zorder

import (
	"fmt"
	"math"

	"zorderidx/internal/assert"
	"zorderidx/morton"
)

// Rectangle is a rectangle in Morton space: all keys z with, per lane
// mask M_i, (z & M_i) in [(MinZ & M_i), (MaxZ & M_i)].
type Rectangle struct {
	MinZ, MaxZ uint64
}

// NewRectangle constructs a Morton-space rectangle. MinZ must not exceed
// MaxZ; callers computing corners from coordinate tuples must Morton-encode
// the low corner into MinZ and the high corner into MaxZ (§3 invariant:
// morton(lo) <= morton(hi) is implied by lo_i <= hi_i per lane).
func NewRectangle(minZ, maxZ uint64) Rectangle {
	assert.BugOn(minZ > maxZ, "zorder: rectangle min_z %d exceeds max_z %d", minZ, maxZ)
	return Rectangle{MinZ: minZ, MaxZ: maxZ}
}

// Indexer holds a rectangle in Morton space together with the lane masks
// for its dimensionality, and answers membership and successor queries.
// An Indexer is an immutable value once constructed (§9 "Shared state").
type Indexer struct {
	Dims  int
	Masks []uint64
	Rect  Rectangle
}

// NewIndexer builds an Indexer for a dims-dimensional rectangle.
func NewIndexer(dims int, rect Rectangle) *Indexer {
	return &Indexer{
		Dims:  dims,
		Masks: morton.LaneMasks(dims),
		Rect:  rect,
	}
}

// Contains reports whether z lies inside the rectangle: for every lane
// mask M_i, (z & M_i) must lie in [(MinZ & M_i), (MaxZ & M_i)].
func (ix *Indexer) Contains(z uint64) bool {
	for _, m := range ix.Masks {
		zm := z & m
		if zm < ix.Rect.MinZ&m || zm > ix.Rect.MaxZ&m {
			return false
		}
	}
	return true
}

// Next computes BIGMIN: the smallest key strictly greater than z that
// lies inside the rectangle, or ok=false if no such key exists.
//
// The fast path handles the common case (z+1 already in the rectangle)
// without touching the bit-descent loop. Otherwise it walks bit
// positions 63 down to 0, pruning the implicit Morton quad/oct-tree by
// comparing z, the rectangle's running min and max against the current
// bit, exactly mirroring a depth-first descent of that tree (the switch
// below lists every possible bit triple).
func (ix *Indexer) Next(z uint64) (uint64, bool) {
	if z == math.MaxUint64 {
		return 0, false
	}
	if ix.Contains(z + 1) {
		return z + 1, true
	}

	dims := ix.Dims
	masks := ix.Masks
	minV, maxV := ix.Rect.MinZ, ix.Rect.MaxZ

	var bigmin uint64
	haveBigmin := false

	laneAt := func(b int) int { return dims - 1 - (b % dims) }
	curLane := laneAt(63)
	loadMask := ^masks[curLane]
	loadOnes := masks[curLane] >> uint(dims)

	for b := 63; b >= 0; b-- {
		zb := (z >> uint(b)) & 1
		minb := (minV >> uint(b)) & 1
		maxb := (maxV >> uint(b)) & 1

		switch {
		case zb == 0 && minb == 0 && maxb == 0:
			// same side of the axis, keep descending.
		case zb == 1 && minb == 1 && maxb == 1:
			// same side of the axis, keep descending.
		case zb == 0 && minb == 0 && maxb == 1:
			bigmin = (minV & loadMask) | (uint64(1) << uint(b))
			haveBigmin = true
			maxV = (maxV & loadMask) | loadOnes
		case zb == 0 && minb == 1 && maxb == 1:
			return minV, true
		case zb == 1 && minb == 0 && maxb == 0:
			return bigmin, haveBigmin
		case zb == 1 && minb == 0 && maxb == 1:
			minV = (minV & loadMask) | (uint64(1) << uint(b))
		default:
			panic(fmt.Sprintf("zorder: impossible bit triple (z=%d,min=%d,max=%d) at bit %d — min > max along this lane?", zb, minb, maxb, b))
		}

		loadOnes >>= 1
		loadMask = (loadMask >> 1) | (uint64(1) << 63)
	}

	return bigmin, haveBigmin
}
