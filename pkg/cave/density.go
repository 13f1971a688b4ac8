package cave

import (
	"math"

	vmath "github.com/Faultbox/midgard-caves/pkg/math"
	"github.com/Faultbox/midgard-caves/pkg/noise"
)

// DensityField maps a world position to a density. Low values are open cave,
// high values are rock. Implementations used with SampleSpace.Populate must
// be safe for concurrent use.
type DensityField interface {
	Density(p vmath.Vec3) float32
}

// DensityFunc adapts a plain function to DensityField.
type DensityFunc func(p vmath.Vec3) float32

// Density calls f(p).
func (f DensityFunc) Density(p vmath.Vec3) float32 {
	return f(p)
}

// PathDensity shapes a tunnel around a Path. The density is the distance to
// the nearest skeleton segment, normalized by the influence radius and
// remapped to [-1, 1], then perturbed by noise and clamped back to [-1, 1].
//
// PathDensity borrows the path; it never mutates it.
type PathDensity struct {
	path      *Path
	radius    float32
	reach     float32
	noise     noise.Source
	amplitude float32
	frequency float64
}

// NewPathDensity creates a density field over path. src may be nil to disable
// the noise perturbation.
func NewPathDensity(path *Path, radius float32, src noise.Source, amplitude, frequency float32) *PathDensity {
	return &PathDensity{
		path:   path,
		radius: radius,
		// A segment closer than radius has its end node within
		// radius + segment length of the query point.
		reach:     radius + path.MaxSegmentLength(),
		noise:     src,
		amplitude: amplitude,
		frequency: float64(frequency),
	}
}

// Density evaluates the field at p.
func (d *PathDensity) Density(p vmath.Vec3) float32 {
	best := d.radius * d.radius
	d.path.ForEachWithin(p, d.reach, func(i int) {
		if distSq := d.path.Segment(i).DistanceSq(p); distSq < best {
			best = distSq
		}
	})

	dist := float32(math.Sqrt(float64(best)))
	v := 2*dist/d.radius - 1

	if d.noise != nil && d.amplitude != 0 {
		n := d.noise.Eval3(
			float64(p.X)*d.frequency,
			float64(p.Y)*d.frequency,
			float64(p.Z)*d.frequency,
		)
		v += d.amplitude * float32(n)
	}

	return min(max(v, -1), 1)
}
