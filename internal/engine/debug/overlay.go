// Package debug provides debug visualization utilities.
package debug

import (
	"github.com/Faultbox/midgard-caves/pkg/cave"
	vmath "github.com/Faultbox/midgard-caves/pkg/math"
)

// BoxLineVertexCount is the number of vertices BoxLines emits (12 edges x 2).
const BoxLineVertexCount = 24

// BoxLines returns line-list vertices, [x, y, z] each, for the edges of the
// axis-aligned box spanning lo and hi.
func BoxLines(lo, hi vmath.Vec3) []float32 {
	return []float32{
		// Bottom face
		lo.X, lo.Y, lo.Z, hi.X, lo.Y, lo.Z,
		hi.X, lo.Y, lo.Z, hi.X, lo.Y, hi.Z,
		hi.X, lo.Y, hi.Z, lo.X, lo.Y, hi.Z,
		lo.X, lo.Y, hi.Z, lo.X, lo.Y, lo.Z,
		// Top face
		lo.X, hi.Y, lo.Z, hi.X, hi.Y, lo.Z,
		hi.X, hi.Y, lo.Z, hi.X, hi.Y, hi.Z,
		hi.X, hi.Y, hi.Z, lo.X, hi.Y, hi.Z,
		lo.X, hi.Y, hi.Z, lo.X, hi.Y, lo.Z,
		// Verticals
		lo.X, lo.Y, lo.Z, lo.X, hi.Y, lo.Z,
		hi.X, lo.Y, lo.Z, hi.X, hi.Y, lo.Z,
		hi.X, lo.Y, hi.Z, hi.X, hi.Y, hi.Z,
		lo.X, lo.Y, hi.Z, lo.X, hi.Y, hi.Z,
	}
}

// PathLines returns one line per skeleton segment, from each node's
// predecessor to the node. The root contributes nothing.
func PathLines(path *cave.Path) []float32 {
	if path == nil || path.Len() < 2 {
		return nil
	}
	out := make([]float32, 0, (path.Len()-1)*6)
	for i := 1; i < path.Len(); i++ {
		seg := path.Segment(i)
		out = append(out, seg.A.X, seg.A.Y, seg.A.Z, seg.B.X, seg.B.Y, seg.B.Z)
	}
	return out
}

// SampleBounds returns the world-space box covered by a sample space.
func SampleBounds(space *cave.SampleSpace) (vmath.Vec3, vmath.Vec3) {
	nx, ny, nz := space.Dims()
	return space.WorldPosition(0, 0, 0), space.WorldPosition(nx-1, ny-1, nz-1)
}
