package store

import (
	"sort"

	iradix "github.com/hashicorp/go-immutable-radix"

	"zorderidx/morton"
	"zorderidx/zorder"
)

// NearestIter emits stored points in non-decreasing Chebyshev distance
// from a query point q, by growing a search radius outward one annulus
// at a time.
//
// Each round works out how far the next annulus needs to reach by
// probing an expanding bounding box around q until at least 8 points
// at or beyond the current minimum distance turn up (or the box has
// grown to cover the whole coordinate domain); that distance becomes
// the annulus's outer edge. The annulus itself — the Chebyshev shell
// between the previous outer edge and this one — is then covered by
// up to 2*Dims rectangles (see buildShells) and scanned with
// the same miss-threshold cursor technique RangeIter uses, except
// against several rectangles at once. Results from a round are sorted
// by exact distance and drained before the next round begins, so the
// emitted sequence is exact even though the probing step that sizes
// each round is only approximate.
type NearestIter struct {
	store    *Store
	q        []uint32
	maxCoord uint32
	minDist  uint32

	queue []nnCandidate
	done  bool
	cur   Point
}

type nnCandidate struct {
	p    Point
	dist uint32
}

func newNearestIter(s *Store, q []uint32) *NearestIter {
	return &NearestIter{
		store:    s,
		q:        append([]uint32(nil), q...),
		maxCoord: maxCoord(s.dims),
		minDist:  0,
	}
}

// Next advances to the next-nearest point and reports whether one was
// found.
func (n *NearestIter) Next() bool {
	if len(n.queue) > 0 {
		n.cur = n.popNearest()
		return true
	}
	for {
		if n.done {
			return false
		}
		distance, ok := n.probeBatchDistance()
		if !ok {
			n.done = true
			return false
		}
		n.scanAnnulus(distance)
		if distance >= n.maxCoord {
			// The annulus just scanned already reached the edge of the
			// coordinate domain in every direction; nothing farther
			// from q can exist, so this is the last round regardless
			// of what scanAnnulus found. Advancing minDist past
			// maxCoord would overflow uint32 and wrap back to 0.
			n.done = true
		} else {
			n.minDist = distance + 1
		}
		if len(n.queue) > 0 {
			n.sortQueue()
			n.cur = n.popNearest()
			return true
		}
		// The probe found points out to `distance` but the precise
		// shell scan found none; this shouldn't occur in practice
		// since the probe's own matches lie within the same box, but
		// loop rather than assume.
	}
}

// Value returns the point found by the most recent successful Next,
// together with its Chebyshev distance from the query point.
func (n *NearestIter) Value() (Point, uint32) {
	return n.cur, chebyshev(n.q, n.cur)
}

// popNearest removes and returns the smallest-distance candidate.
// n.queue is kept sorted by descending distance, so the smallest is
// the last entry.
func (n *NearestIter) popNearest() Point {
	last := len(n.queue) - 1
	c := n.queue[last]
	n.queue = n.queue[:last]
	return c.p
}

func (n *NearestIter) sortQueue() {
	if len(n.queue) < NNSortCrossover {
		for i := 1; i < len(n.queue); i++ {
			for j := i; j > 0 && n.queue[j-1].dist < n.queue[j].dist; j-- {
				n.queue[j-1], n.queue[j] = n.queue[j], n.queue[j-1]
			}
		}
		return
	}
	sort.Slice(n.queue, func(i, j int) bool { return n.queue[i].dist > n.queue[j].dist })
}

// probeBatchDistance estimates how far the next annulus must reach by
// growing a bounding box around q (half=1,2,4,...) until it has found
// at least 8 points at or beyond n.minDist, or the box already covers
// the whole domain. It returns the maximum distance among the (up to)
// 8 closest such points found, or ok=false if none exist anywhere.
func (n *NearestIter) probeBatchDistance() (uint32, bool) {
	half := uint32(1)
	for {
		it := n.store.QueryAABB(n.q, half)
		var dists []uint32
		for it.Next() {
			p := it.Value()
			d := chebyshev(n.q, p)
			if d >= n.minDist {
				dists = append(dists, d)
			}
		}
		if len(dists) >= 8 || half >= n.maxCoord {
			if len(dists) == 0 {
				return 0, false
			}
			sort.Slice(dists, func(i, j int) bool { return dists[i] < dists[j] })
			k := len(dists)
			if k > 8 {
				k = 8
			}
			return dists[k-1], true
		}
		if half > n.maxCoord/2 {
			half = n.maxCoord
		} else {
			half *= 2
		}
	}
}

// scanAnnulus walks the Chebyshev shell [n.minDist, distance] around q
// and appends every point found to n.queue.
func (n *NearestIter) scanAnnulus(distance uint32) {
	rects := buildShells(n.store.dims, n.q, n.minDist, distance, n.maxCoord)
	if len(rects) == 0 {
		return
	}

	shells := make([]*zorder.Indexer, len(rects))
	for i, r := range rects {
		shells[i] = zorder.NewIndexer(n.store.dims, r)
	}

	hullMin, hullMax := shells[0].Rect.MinZ, shells[0].Rect.MaxZ
	for _, s := range shells[1:] {
		if s.Rect.MinZ < hullMin {
			hullMin = s.Rect.MinZ
		}
		if s.Rect.MaxZ > hullMax {
			hullMax = s.Rect.MaxZ
		}
	}

	active := append([]*zorder.Indexer(nil), shells...)
	var it *iradix.Iterator
	misses := 0

	reseek := func(z uint64) {
		it = n.store.tree.Root().Iterator()
		it.SeekLowerBound(keyBytes(z))
		misses = 0
	}
	reseek(hullMin)

	for {
		kb, v, ok := it.Next()
		if !ok {
			return
		}
		k := decodeKey(kb)
		if k > hullMax {
			return
		}

		kept := active[:0]
		for _, s := range active {
			if s.Rect.MaxZ >= k {
				kept = append(kept, s)
			}
		}
		active = kept
		if len(active) == 0 {
			return
		}

		matched := false
		for _, s := range active {
			if s.Contains(k) {
				matched = true
				break
			}
		}
		if matched {
			misses = 0
			for _, p := range v.([]Point) {
				d := chebyshev(n.q, p)
				if d >= n.minDist && d <= distance {
					n.queue = append(n.queue, nnCandidate{p: p, dist: d})
				}
			}
			continue
		}

		misses++
		if misses >= MissThreshold {
			var next uint64
			found := false
			for _, s := range active {
				if nz, ok := s.Next(k); ok && (!found || nz < next) {
					next = nz
					found = true
				}
			}
			if !found {
				return
			}
			reseek(next)
		}
	}
}

// buildShells covers the Chebyshev annulus {p : minDist <= chebyshev(q,p) <= distance}
// with up to 2*dims rectangles, one pair per axis. For axis k, the pair
// restricts axis k to offsets [minDist, distance] below and above q[k],
// restricts axes before k to [-distance, distance] around q (they may
// or may not also reach the annulus), and restricts axes after k to the
// thin band [-(minDist-1), minDist-1] around q (so they do NOT also
// reach the annulus). For minDist > 0 this assigns every point in the
// annulus to exactly one shell: the one for the highest-indexed axis
// whose offset from q is at least minDist. Bounds are computed with a
// wide signed intermediate and then clamped into the coordinate domain;
// a shell discarded because its true (unclamped) extent never enters
// the domain, or because an axis's band is empty by construction
// (minDist == 0 makes the after-k band empty), is simply omitted. With
// minDist == 0 only the last axis's pair remains, and its two shells
// overlap on the points whose last-axis offset is 0.
func buildShells(dims int, q []uint32, minDist, distance, maxC uint32) []zorder.Rectangle {
	var rects []zorder.Rectangle
	for k := 0; k < dims; k++ {
		for _, sign := range [2]int{-1, 1} {
			lo := make([]uint64, dims)
			hi := make([]uint64, dims)
			valid := true
			for j := 0; j < dims && valid; j++ {
				var rawLo, rawHi int64
				switch {
				case j < k:
					rawLo = int64(q[j]) - int64(distance)
					rawHi = int64(q[j]) + int64(distance)
				case j == k:
					if sign < 0 {
						rawLo = int64(q[j]) - int64(distance)
						rawHi = int64(q[j]) - int64(minDist)
					} else {
						rawLo = int64(q[j]) + int64(minDist)
						rawHi = int64(q[j]) + int64(distance)
					}
				default: // j > k
					rawLo = int64(q[j]) - int64(minDist) + 1
					rawHi = int64(q[j]) + int64(minDist) - 1
				}
				if rawLo > rawHi || rawHi < 0 || rawLo > int64(maxC) {
					valid = false
					break
				}
				lo[j] = uint64(clampInt64(rawLo, 0, int64(maxC)))
				hi[j] = uint64(clampInt64(rawHi, 0, int64(maxC)))
			}
			if !valid {
				continue
			}
			minZ := morton.Encode(dims, lo)
			maxZ := morton.Encode(dims, hi)
			rects = append(rects, zorder.NewRectangle(minZ, maxZ))
		}
	}
	return rects
}
