package cave

import (
	"math"

	vmath "github.com/Faultbox/midgard-caves/pkg/math"
)

// cellKey addresses one bucket of the uniform grid.
type cellKey struct {
	X, Y, Z int32
}

// bucketIndex is a uniform grid hash over node positions. A radius query only
// visits the buckets overlapping the query sphere's bounding box.
type bucketIndex struct {
	cellSize  float32
	inv       float32
	buckets   map[cellKey][]int32
	positions []vmath.Vec3
}

func newBucketIndex(cellSize float32, capacity int) *bucketIndex {
	return &bucketIndex{
		cellSize:  cellSize,
		inv:       1 / cellSize,
		buckets:   make(map[cellKey][]int32),
		positions: make([]vmath.Vec3, 0, capacity),
	}
}

// cell maps a coordinate to its bucket column, saturating at the int32 range
// so far-away or infinite coordinates still order correctly.
func (b *bucketIndex) cell(v float32) int32 {
	f := math.Floor(float64(v) * float64(b.inv))
	switch {
	case math.IsNaN(f):
		return 0
	case f <= math.MinInt32:
		return math.MinInt32
	case f >= math.MaxInt32:
		return math.MaxInt32
	}
	return int32(f)
}

func (b *bucketIndex) key(p vmath.Vec3) cellKey {
	return cellKey{b.cell(p.X), b.cell(p.Y), b.cell(p.Z)}
}

// insert adds the next node. Indices must be inserted in order 0, 1, 2, ...
func (b *bucketIndex) insert(p vmath.Vec3) int {
	i := len(b.positions)
	b.positions = append(b.positions, p)
	k := b.key(p)
	b.buckets[k] = append(b.buckets[k], int32(i))
	return i
}

// forEachWithin calls fn for every indexed node within radius of p.
// Each matching node is reported exactly once.
func (b *bucketIndex) forEachWithin(p vmath.Vec3, radius float32, fn func(i int)) {
	if radius < 0 || math.IsNaN(float64(radius)) {
		return
	}
	rSq := radius * radius
	// Pad the box so float32 rounding never drops a bucket on the boundary.
	pad := radius + radius*1e-5 + 1e-6
	lo := b.key(p.AddScalar(-pad))
	hi := b.key(p.AddScalar(pad))

	visit := func(bucket []int32) {
		for _, i := range bucket {
			if b.positions[i].DistanceSq(p) <= rSq {
				fn(int(i))
			}
		}
	}

	// A huge radius spans more cells than there are buckets; walk the
	// occupied buckets instead of the empty lattice.
	span := float64(int64(hi.X)-int64(lo.X)+1) *
		float64(int64(hi.Y)-int64(lo.Y)+1) *
		float64(int64(hi.Z)-int64(lo.Z)+1)
	if span > float64(len(b.buckets)) {
		for k, bucket := range b.buckets {
			if k.X >= lo.X && k.X <= hi.X && k.Y >= lo.Y && k.Y <= hi.Y && k.Z >= lo.Z && k.Z <= hi.Z {
				visit(bucket)
			}
		}
		return
	}

	// int64 counters: a saturated bound at MaxInt32 must not wrap.
	for z := int64(lo.Z); z <= int64(hi.Z); z++ {
		for y := int64(lo.Y); y <= int64(hi.Y); y++ {
			for x := int64(lo.X); x <= int64(hi.X); x++ {
				if bucket, ok := b.buckets[cellKey{int32(x), int32(y), int32(z)}]; ok {
					visit(bucket)
				}
			}
		}
	}
}

// bucketCount returns the number of occupied buckets.
func (b *bucketIndex) bucketCount() int {
	return len(b.buckets)
}
