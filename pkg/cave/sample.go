package cave

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/alitto/pond/v2"

	vmath "github.com/Faultbox/midgard-caves/pkg/math"
)

// MaxSamples caps the number of grid cells a SampleSpace may allocate.
const MaxSamples = 1 << 28

// gridEpsilon absorbs float32 rounding when mapping world positions that sit
// exactly on a sample back to grid coordinates.
const gridEpsilon = 1e-4

// SampleSpace is a dense grid of densities covering a path's bounding box
// expanded by the influence radius. Each cell is evaluated at most once.
//
// Sample is not safe for concurrent use; Populate is the parallel entry point.
type SampleSpace struct {
	origin         vmath.Vec3
	samplesPerUnit float32
	nx, ny, nz     int

	field  DensityField
	values []float32
	filled []bool

	evaluations atomic.Int64
}

// NewSampleSpace allocates the grid for path. Dimensions per axis are
// ceil(extent * samplesPerUnit) + 1 so the far boundary always has a sample.
func NewSampleSpace(path *Path, maxInfluenceRadius, samplesPerUnit float32, field DensityField) (*SampleSpace, error) {
	if path == nil || path.Len() == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidNodeCount)
	}
	if !positive(maxInfluenceRadius) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRadius, maxInfluenceRadius)
	}
	if !positive(samplesPerUnit) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSampleRate, samplesPerUnit)
	}
	if field == nil {
		return nil, fmt.Errorf("cave: nil density field")
	}

	lo, hi := path.Bounds()
	lo = lo.AddScalar(-maxInfluenceRadius)
	hi = hi.AddScalar(maxInfluenceRadius)
	extent := hi.Sub(lo)

	dim := func(e float32) int {
		return int(math.Ceil(float64(e)*float64(samplesPerUnit))) + 1
	}
	nx, ny, nz := dim(extent.X), dim(extent.Y), dim(extent.Z)

	total := int64(nx) * int64(ny) * int64(nz)
	if total > MaxSamples {
		return nil, fmt.Errorf("%w: grid %dx%dx%d exceeds %d samples",
			ErrInvalidSampleRate, nx, ny, nz, MaxSamples)
	}

	return &SampleSpace{
		origin:         lo,
		samplesPerUnit: samplesPerUnit,
		nx:             nx,
		ny:             ny,
		nz:             nz,
		field:          field,
		values:         make([]float32, total),
		filled:         make([]bool, total),
	}, nil
}

// Dims returns the number of samples along each axis.
func (s *SampleSpace) Dims() (int, int, int) {
	return s.nx, s.ny, s.nz
}

// Origin returns the world position of sample (0, 0, 0).
func (s *SampleSpace) Origin() vmath.Vec3 {
	return s.origin
}

// SamplesPerUnit returns the grid resolution.
func (s *SampleSpace) SamplesPerUnit() float32 {
	return s.samplesPerUnit
}

// Evaluations returns how many times the density field has been called.
func (s *SampleSpace) Evaluations() int64 {
	return s.evaluations.Load()
}

// Contains reports whether (x, y, z) is inside the allocated grid.
func (s *SampleSpace) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < s.nx && y < s.ny && z < s.nz
}

// WorldPosition maps a grid coordinate to world space.
func (s *SampleSpace) WorldPosition(x, y, z int) vmath.Vec3 {
	return vmath.Vec3{
		X: s.origin.X + float32(x)/s.samplesPerUnit,
		Y: s.origin.Y + float32(y)/s.samplesPerUnit,
		Z: s.origin.Z + float32(z)/s.samplesPerUnit,
	}
}

// GridCoord maps a world position to the grid cell containing it:
// floor((world - origin) * samplesPerUnit). The result may lie outside the grid.
func (s *SampleSpace) GridCoord(p vmath.Vec3) (int, int, int) {
	cell := func(w, o float32) int {
		return int(math.Floor(float64((w-o)*s.samplesPerUnit) + gridEpsilon))
	}
	return cell(p.X, s.origin.X), cell(p.Y, s.origin.Y), cell(p.Z, s.origin.Z)
}

// Sample returns the density at (x, y, z), evaluating it on first access.
// Panics with *InvariantError when the coordinate is outside the grid.
func (s *SampleSpace) Sample(x, y, z int) float32 {
	if !s.Contains(x, y, z) {
		fault("SampleSpace.Sample", "grid coordinate (%d, %d, %d) outside %dx%dx%d",
			x, y, z, s.nx, s.ny, s.nz)
	}
	i := (z*s.ny+y)*s.nx + x
	if !s.filled[i] {
		s.fill(i, x, y, z)
	}
	return s.values[i]
}

func (s *SampleSpace) fill(i, x, y, z int) {
	v := s.field.Density(s.WorldPosition(x, y, z))
	if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
		fault("SampleSpace.Sample", "density at (%d, %d, %d) is not finite: %v", x, y, z, v)
	}
	s.values[i] = v
	s.filled[i] = true
	s.evaluations.Add(1)
}

// Populate evaluates every cell not yet filled, one z-slab per task on a pool
// of the given size. Slabs write disjoint cells, so the result is identical
// to lazy sequential sampling. workers <= 1 runs inline. Cancellation is
// checked between slabs; cells left unfilled are still sampled lazily.
//
// A panic inside the density field stops the remaining slabs and is raised
// again on the calling goroutine once the pool has drained.
//
// Populate must not run concurrently with Sample.
func (s *SampleSpace) Populate(ctx context.Context, workers int) error {
	if workers <= 1 {
		for z := 0; z < s.nz; z++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.fillSlab(z)
		}
		return nil
	}

	var failed atomic.Pointer[slabPanic]

	pool := pond.NewPool(workers)
	defer pool.StopAndWait()

	group := pool.NewGroup()
	for z := 0; z < s.nz; z++ {
		if ctx.Err() != nil {
			break
		}
		group.Submit(func() {
			if ctx.Err() != nil || failed.Load() != nil {
				return
			}
			defer func() {
				if r := recover(); r != nil {
					failed.CompareAndSwap(nil, &slabPanic{value: r})
				}
			}()
			s.fillSlab(z)
		})
	}
	waitErr := group.Wait()

	if p := failed.Load(); p != nil {
		panic(p.value)
	}
	if waitErr != nil {
		return fmt.Errorf("populate: %w", waitErr)
	}
	return ctx.Err()
}

// slabPanic carries a recovered panic from a pool task back to Populate.
type slabPanic struct {
	value any
}

func (s *SampleSpace) fillSlab(z int) {
	for y := 0; y < s.ny; y++ {
		for x := 0; x < s.nx; x++ {
			i := (z*s.ny+y)*s.nx + x
			if !s.filled[i] {
				s.fill(i, x, y, z)
			}
		}
	}
}

// Filled returns how many cells hold a cached density.
func (s *SampleSpace) Filled() int {
	n := 0
	for _, f := range s.filled {
		if f {
			n++
		}
	}
	return n
}
