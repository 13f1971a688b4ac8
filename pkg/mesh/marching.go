// Package mesh extracts triangle meshes from sampled scalar fields using
// marching cubes.
package mesh

import (
	"context"

	vmath "github.com/Faultbox/midgard-caves/pkg/math"
)

// Field is a scalar field sampled on a regular grid.
type Field interface {
	// Dims returns the number of samples along each axis.
	Dims() (int, int, int)
	// Sample returns the density at a grid coordinate.
	Sample(x, y, z int) float32
	// WorldPosition maps a grid coordinate to world space.
	WorldPosition(x, y, z int) vmath.Vec3
}

// Stats summarizes one extraction pass.
type Stats struct {
	Cells       int // cubes visited
	ActiveCells int // cubes that emitted at least one triangle
	Triangles   int
}

// Generate runs marching cubes over every cell of field and appends the
// resulting triangles to out. See GenerateContext.
func Generate(field Field, surfaceLevel float32, out *Mesh) Stats {
	stats, _ := GenerateContext(context.Background(), field, surfaceLevel, out)
	return stats
}

// GenerateContext runs marching cubes over every cell of field and appends the
// resulting triangles to out.
//
// A corner is below the surface when its density is < surfaceLevel. Cells are
// visited with x innermost, then y, then z, so output order is reproducible.
// Every triangle gets three fresh vertices sharing its flat normal; vertices
// are never welded across cells. ctx is checked once per z layer; on
// cancellation the triangles emitted so far stay in out.
func GenerateContext(ctx context.Context, field Field, surfaceLevel float32, out *Mesh) (Stats, error) {
	var stats Stats
	nx, ny, nz := field.Dims()

	var (
		densities [8]float32
		corners   [8]vmath.Vec3
		crossings [12]vmath.Vec3
	)

	for z := 0; z < nz-1; z++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		for y := 0; y < ny-1; y++ {
			for x := 0; x < nx-1; x++ {
				stats.Cells++

				config := 0
				for i, off := range cornerOffsets {
					d := field.Sample(x+off[0], y+off[1], z+off[2])
					densities[i] = d
					if d < surfaceLevel {
						config |= 1 << i
					}
				}

				edges := edgeTable[config]
				if edges == 0 {
					continue // fully inside or fully outside
				}

				for i, off := range cornerOffsets {
					corners[i] = field.WorldPosition(x+off[0], y+off[1], z+off[2])
				}
				for e, pair := range edgeCorners {
					if edges&(1<<e) == 0 {
						continue
					}
					a, b := pair[0], pair[1]
					crossings[e] = interpolate(surfaceLevel, corners[a], corners[b], densities[a], densities[b])
				}

				row := &triTable[config]
				for t := 0; t < len(row) && row[t] >= 0; t += 3 {
					out.appendTriangle(crossings[row[t]], crossings[row[t+1]], crossings[row[t+2]])
					stats.Triangles++
				}
				stats.ActiveCells++
			}
		}
	}

	return stats, nil
}

// interpolate finds where the surface crosses the edge p0-p1.
// Equal densities take the midpoint; t is clamped to [0, 1].
func interpolate(level float32, p0, p1 vmath.Vec3, d0, d1 float32) vmath.Vec3 {
	t := float32(0.5)
	if d1 != d0 {
		t = (level - d0) / (d1 - d0)
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return p0.Lerp(p1, t)
}

// faceNormal returns the unit normal of triangle abc in winding order.
// Degenerate triangles yield the zero vector.
func faceNormal(a, b, c vmath.Vec3) vmath.Vec3 {
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}
