package store

import (
	iradix "github.com/hashicorp/go-immutable-radix"

	"zorderidx/zorder"
)

func newIndexerRect(dims int, minZ, maxZ uint64) *zorder.Indexer {
	return zorder.NewIndexer(dims, zorder.NewRectangle(minZ, maxZ))
}

// RangeIter walks every stored point inside a Morton-space rectangle,
// in ascending Morton key order. It scans the backing tree forward one
// key at a time; after MissThreshold consecutive keys outside the
// rectangle it re-seeks the cursor directly to the Z-order successor
// (BIGMIN) of the last key visited, rather than continuing to crawl.
type RangeIter struct {
	tree *iradix.Tree
	ix   *zorder.Indexer

	it     *iradix.Iterator
	misses int

	bucket    []Point
	bucketPos int
	cur       Point
	done      bool
}

func newRangeIter(tree *iradix.Tree, ix *zorder.Indexer) *RangeIter {
	r := &RangeIter{tree: tree, ix: ix}
	r.reseek(ix.Rect.MinZ)
	return r
}

func (r *RangeIter) reseek(z uint64) {
	it := r.tree.Root().Iterator()
	it.SeekLowerBound(keyBytes(z))
	r.it = it
	r.misses = 0
}

// Next advances to the next point and reports whether one was found.
func (r *RangeIter) Next() bool {
	if r.done {
		return false
	}
	for {
		if r.bucketPos < len(r.bucket) {
			r.cur = r.bucket[r.bucketPos]
			r.bucketPos++
			return true
		}
		if !r.advance() {
			r.done = true
			return false
		}
	}
}

// advance pulls the next in-rectangle key's bucket into r.bucket,
// applying the miss-threshold re-seek heuristic along the way.
func (r *RangeIter) advance() bool {
	for {
		kb, v, ok := r.it.Next()
		if !ok {
			return false
		}
		z := decodeKey(kb)
		if z > r.ix.Rect.MaxZ {
			return false
		}
		if r.ix.Contains(z) {
			r.misses = 0
			r.bucket = v.([]Point)
			r.bucketPos = 0
			return true
		}
		r.misses++
		if r.misses >= MissThreshold {
			next, ok := r.ix.Next(z)
			if !ok {
				return false
			}
			r.reseek(next)
		}
	}
}

// Value returns the point found by the most recent successful Next.
func (r *RangeIter) Value() Point { return r.cur }
