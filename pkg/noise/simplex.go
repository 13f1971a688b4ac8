// Package noise provides deterministic, seeded gradient noise used to perturb
// the cave density field.
//
// Every source is a pure function of its coordinates and construction seed:
// the same seed and position always yield the same value, and values never
// leave [-1, 1]. Sources hold no mutable state after construction and are safe
// for concurrent use.
package noise

import (
	"math"
	"math/rand/v2"

	vmath "github.com/Faultbox/midgard-caves/pkg/math"
)

// Source is a 3D noise function with output in [-1, 1].
type Source interface {
	Eval3(x, y, z float64) float64
}

// grad3 are the cube edge-midpoint gradients for 3D simplex noise.
var grad3 = [12][3]float64{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

// grad4 are the 4D hypercube edge-midpoint gradients.
var grad4 = [32][4]float64{
	{0, 1, 1, 1}, {0, 1, 1, -1}, {0, 1, -1, 1}, {0, 1, -1, -1},
	{0, -1, 1, 1}, {0, -1, 1, -1}, {0, -1, -1, 1}, {0, -1, -1, -1},
	{1, 0, 1, 1}, {1, 0, 1, -1}, {1, 0, -1, 1}, {1, 0, -1, -1},
	{-1, 0, 1, 1}, {-1, 0, 1, -1}, {-1, 0, -1, 1}, {-1, 0, -1, -1},
	{1, 1, 0, 1}, {1, 1, 0, -1}, {1, -1, 0, 1}, {1, -1, 0, -1},
	{-1, 1, 0, 1}, {-1, 1, 0, -1}, {-1, -1, 0, 1}, {-1, -1, 0, -1},
	{1, 1, 1, 0}, {1, 1, -1, 0}, {1, -1, 1, 0}, {1, -1, -1, 0},
	{-1, 1, 1, 0}, {-1, 1, -1, 0}, {-1, -1, 1, 0}, {-1, -1, -1, 0},
}

// Skew and unskew factors.
const (
	f3 = 1.0 / 3.0
	g3 = 1.0 / 6.0
	f4 = 0.30901699437494745 // (sqrt(5) - 1) / 4
	g4 = 0.1381966011250105  // (5 - sqrt(5)) / 20
)

// Simplex produces seeded simplex noise in three and four dimensions.
type Simplex struct {
	seed int64
	perm [512]uint8
}

// New creates a Simplex source with a seed-permuted lattice.
func New(seed int64) *Simplex {
	s := &Simplex{seed: seed}

	var p [256]uint8
	for i := range p {
		p[i] = uint8(i)
	}

	// Fisher-Yates shuffle driven by a seeded PCG stream.
	rng := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
	for i := 255; i > 0; i-- {
		j := rng.IntN(i + 1)
		p[i], p[j] = p[j], p[i]
	}

	// Double the table so lookups never need to wrap.
	for i := range s.perm {
		s.perm[i] = p[i&255]
	}
	return s
}

// Seed returns the construction seed.
func (s *Simplex) Seed() int64 {
	return s.seed
}

// Evaluate returns the noise value at a world position.
func (s *Simplex) Evaluate(p vmath.Vec3) float32 {
	return float32(s.Eval3(float64(p.X), float64(p.Y), float64(p.Z)))
}

// Eval3 returns 3D simplex noise in [-1, 1].
func (s *Simplex) Eval3(x, y, z float64) float64 {
	sk := (x + y + z) * f3
	i := fastFloor(x + sk)
	j := fastFloor(y + sk)
	k := fastFloor(z + sk)

	t := float64(i+j+k) * g3
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)
	z0 := z - (float64(k) - t)

	// Which of the six tetrahedra contains the point.
	var i1, j1, k1, i2, j2, k2 int
	if x0 >= y0 {
		switch {
		case y0 >= z0:
			i1, j1, k1, i2, j2, k2 = 1, 0, 0, 1, 1, 0
		case x0 >= z0:
			i1, j1, k1, i2, j2, k2 = 1, 0, 0, 1, 0, 1
		default:
			i1, j1, k1, i2, j2, k2 = 0, 0, 1, 1, 0, 1
		}
	} else {
		switch {
		case y0 < z0:
			i1, j1, k1, i2, j2, k2 = 0, 0, 1, 0, 1, 1
		case x0 < z0:
			i1, j1, k1, i2, j2, k2 = 0, 1, 0, 0, 1, 1
		default:
			i1, j1, k1, i2, j2, k2 = 0, 1, 0, 1, 1, 0
		}
	}

	x1 := x0 - float64(i1) + g3
	y1 := y0 - float64(j1) + g3
	z1 := z0 - float64(k1) + g3
	x2 := x0 - float64(i2) + 2*g3
	y2 := y0 - float64(j2) + 2*g3
	z2 := z0 - float64(k2) + 2*g3
	x3 := x0 - 1 + 3*g3
	y3 := y0 - 1 + 3*g3
	z3 := z0 - 1 + 3*g3

	ii := i & 255
	jj := j & 255
	kk := k & 255
	gi0 := s.hash3(ii, jj, kk) % 12
	gi1 := s.hash3(ii+i1, jj+j1, kk+k1) % 12
	gi2 := s.hash3(ii+i2, jj+j2, kk+k2) % 12
	gi3 := s.hash3(ii+1, jj+1, kk+1) % 12

	n := corner3(grad3[gi0], x0, y0, z0) +
		corner3(grad3[gi1], x1, y1, z1) +
		corner3(grad3[gi2], x2, y2, z2) +
		corner3(grad3[gi3], x3, y3, z3)

	return clamp(32 * n)
}

// Eval4 returns 4D simplex noise in [-1, 1]. The fourth axis is typically
// used to take independent 3D slices from one seed.
func (s *Simplex) Eval4(x, y, z, w float64) float64 {
	sk := (x + y + z + w) * f4
	i := fastFloor(x + sk)
	j := fastFloor(y + sk)
	k := fastFloor(z + sk)
	l := fastFloor(w + sk)

	t := float64(i+j+k+l) * g4
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)
	z0 := z - (float64(k) - t)
	w0 := w - (float64(l) - t)

	// Rank the offsets to pick the simplex traversal order.
	var rx, ry, rz, rw int
	if x0 > y0 {
		rx++
	} else {
		ry++
	}
	if x0 > z0 {
		rx++
	} else {
		rz++
	}
	if x0 > w0 {
		rx++
	} else {
		rw++
	}
	if y0 > z0 {
		ry++
	} else {
		rz++
	}
	if y0 > w0 {
		ry++
	} else {
		rw++
	}
	if z0 > w0 {
		rz++
	} else {
		rw++
	}

	step := func(rank, threshold int) int {
		if rank >= threshold {
			return 1
		}
		return 0
	}
	i1, j1, k1, l1 := step(rx, 3), step(ry, 3), step(rz, 3), step(rw, 3)
	i2, j2, k2, l2 := step(rx, 2), step(ry, 2), step(rz, 2), step(rw, 2)
	i3, j3, k3, l3 := step(rx, 1), step(ry, 1), step(rz, 1), step(rw, 1)

	x1 := x0 - float64(i1) + g4
	y1 := y0 - float64(j1) + g4
	z1 := z0 - float64(k1) + g4
	w1 := w0 - float64(l1) + g4
	x2 := x0 - float64(i2) + 2*g4
	y2 := y0 - float64(j2) + 2*g4
	z2 := z0 - float64(k2) + 2*g4
	w2 := w0 - float64(l2) + 2*g4
	x3 := x0 - float64(i3) + 3*g4
	y3 := y0 - float64(j3) + 3*g4
	z3 := z0 - float64(k3) + 3*g4
	w3 := w0 - float64(l3) + 3*g4
	x4 := x0 - 1 + 4*g4
	y4 := y0 - 1 + 4*g4
	z4 := z0 - 1 + 4*g4
	w4 := w0 - 1 + 4*g4

	ii := i & 255
	jj := j & 255
	kk := k & 255
	ll := l & 255
	gi0 := s.hash4(ii, jj, kk, ll) % 32
	gi1 := s.hash4(ii+i1, jj+j1, kk+k1, ll+l1) % 32
	gi2 := s.hash4(ii+i2, jj+j2, kk+k2, ll+l2) % 32
	gi3 := s.hash4(ii+i3, jj+j3, kk+k3, ll+l3) % 32
	gi4 := s.hash4(ii+1, jj+1, kk+1, ll+1) % 32

	n := corner4(grad4[gi0], x0, y0, z0, w0) +
		corner4(grad4[gi1], x1, y1, z1, w1) +
		corner4(grad4[gi2], x2, y2, z2, w2) +
		corner4(grad4[gi3], x3, y3, z3, w3) +
		corner4(grad4[gi4], x4, y4, z4, w4)

	return clamp(27 * n)
}

func (s *Simplex) hash3(i, j, k int) int {
	return int(s.perm[i+int(s.perm[j+int(s.perm[k])])])
}

func (s *Simplex) hash4(i, j, k, l int) int {
	return int(s.perm[i+int(s.perm[j+int(s.perm[k+int(s.perm[l])])])])
}

func corner3(g [3]float64, x, y, z float64) float64 {
	t := 0.6 - x*x - y*y - z*z
	if t < 0 {
		return 0
	}
	t *= t
	return t * t * (g[0]*x + g[1]*y + g[2]*z)
}

func corner4(g [4]float64, x, y, z, w float64) float64 {
	t := 0.6 - x*x - y*y - z*z - w*w
	if t < 0 {
		return 0
	}
	t *= t
	return t * t * (g[0]*x + g[1]*y + g[2]*z + g[3]*w)
}

func fastFloor(x float64) int {
	xi := int(x)
	if x < float64(xi) {
		return xi - 1
	}
	return xi
}

// clamp pins v to [-1, 1]; NaN maps to 0.
func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < -1:
		return -1
	case v > 1:
		return 1
	}
	return v
}
