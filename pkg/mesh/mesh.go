package mesh

import (
	"fmt"

	vmath "github.com/Faultbox/midgard-caves/pkg/math"
)

// Mesh holds parallel vertex, normal and index buffers ready for GPU upload.
// len(Vertices) == len(Normals); Indices come in groups of three.
type Mesh struct {
	Vertices []vmath.Vec3
	Normals  []vmath.Vec3
	Indices  []uint32
}

// appendTriangle emits three new vertices with a shared flat normal.
func (m *Mesh) appendTriangle(a, b, c vmath.Vec3) {
	n := faceNormal(a, b, c)
	base := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, a, b, c)
	m.Normals = append(m.Normals, n, n, n)
	m.Indices = append(m.Indices, base, base+1, base+2)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Reset empties the buffers, keeping their capacity.
func (m *Mesh) Reset() {
	m.Vertices = m.Vertices[:0]
	m.Normals = m.Normals[:0]
	m.Indices = m.Indices[:0]
}

// Validate checks the buffer invariants.
func (m *Mesh) Validate() error {
	if len(m.Vertices) != len(m.Normals) {
		return fmt.Errorf("mesh: %d vertices but %d normals", len(m.Vertices), len(m.Normals))
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("mesh: index count %d is not a multiple of 3", len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("mesh: index %d at %d out of range (%d vertices)", idx, i, len(m.Vertices))
		}
	}
	return nil
}

// Bounds returns the axis-aligned bounding box of all vertices.
// An empty mesh returns zero vectors.
func (m *Mesh) Bounds() (vmath.Vec3, vmath.Vec3) {
	if len(m.Vertices) == 0 {
		return vmath.Vec3{}, vmath.Vec3{}
	}
	lo, hi := m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		lo = lo.Min(v)
		hi = hi.Max(v)
	}
	return lo, hi
}

// Interleaved packs positions and normals as x, y, z, nx, ny, nz per vertex.
func (m *Mesh) Interleaved() []float32 {
	data := make([]float32, 0, len(m.Vertices)*6)
	for i, v := range m.Vertices {
		n := m.Normals[i]
		data = append(data, v.X, v.Y, v.Z, n.X, n.Y, n.Z)
	}
	return data
}
