package cave

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	vmath "github.com/Faultbox/midgard-caves/pkg/math"
)

// twoNodePath is a 10 unit segment along +X starting at the origin.
func twoNodePath(t *testing.T) *Path {
	t.Helper()
	path, err := NewPath([]PathNode{
		{Position: vmath.Vec3{}, Prev: NoPredecessor},
		{Position: vmath.Vec3{X: 10}, Prev: 0},
	}, 5)
	if err != nil {
		t.Fatalf("NewPath() error = %v", err)
	}
	return path
}

// coordField returns a density derived from the world position and counts calls.
type coordField struct {
	calls atomic.Int64
}

func (f *coordField) Density(p vmath.Vec3) float32 {
	f.calls.Add(1)
	return float32(math.Sin(float64(p.X*0.3 + p.Y*0.7 - p.Z*0.2)))
}

func TestNewSampleSpaceDims(t *testing.T) {
	space, err := NewSampleSpace(twoNodePath(t), 5, 0.5, &coordField{})
	if err != nil {
		t.Fatalf("NewSampleSpace() error = %v", err)
	}

	nx, ny, nz := space.Dims()
	// extents are 20 x 10 x 10 world units
	if nx != 11 || ny != 6 || nz != 6 {
		t.Errorf("Dims() = %d, %d, %d, want 11, 6, 6", nx, ny, nz)
	}
	if want := (vmath.Vec3{X: -5, Y: -5, Z: -5}); space.Origin() != want {
		t.Errorf("Origin() = %v, want %v", space.Origin(), want)
	}
	if space.Evaluations() != 0 {
		t.Errorf("construction evaluated %d cells, want 0", space.Evaluations())
	}

	// The far corner reaches the expanded bounding box.
	if got, want := space.WorldPosition(nx-1, ny-1, nz-1), (vmath.Vec3{X: 15, Y: 5, Z: 5}); got != want {
		t.Errorf("far corner at %v, want %v", got, want)
	}
}

func TestNewSampleSpaceRoundsOutward(t *testing.T) {
	// extent 2*1.3 = 2.6 along every axis at 1 sample per unit
	path, err := NewPath([]PathNode{{Prev: NoPredecessor}}, 1)
	if err != nil {
		t.Fatalf("NewPath() error = %v", err)
	}
	space, err := NewSampleSpace(path, 1.3, 1, &coordField{})
	if err != nil {
		t.Fatalf("NewSampleSpace() error = %v", err)
	}
	nx, _, _ := space.Dims()
	if nx != 4 {
		t.Fatalf("nx = %d, want 4", nx)
	}
	if far := space.WorldPosition(nx-1, 0, 0).X; far < 1.3 {
		t.Errorf("last sample at x=%v does not cover the box edge 1.3", far)
	}
}

func TestNewSampleSpaceErrors(t *testing.T) {
	path := twoNodePath(t)
	field := &coordField{}

	tests := []struct {
		name   string
		path   *Path
		radius float32
		spu    float32
		field  DensityField
		want   error
	}{
		{"nil path", nil, 5, 1, field, ErrInvalidNodeCount},
		{"zero radius", path, 0, 1, field, ErrInvalidRadius},
		{"negative samples", path, 5, -1, field, ErrInvalidSampleRate},
		{"NaN samples", path, 5, float32(math.NaN()), field, ErrInvalidSampleRate},
		{"grid too large", path, 5, 1e4, field, ErrInvalidSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSampleSpace(tt.path, tt.radius, tt.spu, tt.field); !errors.Is(err, tt.want) {
				t.Errorf("NewSampleSpace() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := NewSampleSpace(path, 5, 1, nil); err == nil {
		t.Error("expected error for nil field")
	}
}

func TestSampleMemoized(t *testing.T) {
	field := &coordField{}
	space, err := NewSampleSpace(twoNodePath(t), 5, 1, field)
	if err != nil {
		t.Fatalf("NewSampleSpace() error = %v", err)
	}

	first := space.Sample(3, 2, 1)
	for range 5 {
		if got := space.Sample(3, 2, 1); got != first {
			t.Fatalf("repeated Sample() = %v, want %v", got, first)
		}
	}
	if space.Evaluations() != 1 || field.calls.Load() != 1 {
		t.Errorf("evaluations = %d (field calls %d), want 1", space.Evaluations(), field.calls.Load())
	}

	if want := (&coordField{}).Density(space.WorldPosition(3, 2, 1)); first != want {
		t.Errorf("Sample() = %v, want density at world position %v", first, want)
	}

	space.Sample(4, 2, 1)
	if space.Evaluations() != 2 || space.Filled() != 2 {
		t.Errorf("after second cell: evaluations %d, filled %d, want 2, 2", space.Evaluations(), space.Filled())
	}
}

func TestGridCoordRoundTrip(t *testing.T) {
	for _, spu := range []float32{0.5, 1, 3} {
		space, err := NewSampleSpace(twoNodePath(t), 5, spu, &coordField{})
		if err != nil {
			t.Fatalf("NewSampleSpace() error = %v", err)
		}
		nx, ny, nz := space.Dims()
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					gx, gy, gz := space.GridCoord(space.WorldPosition(x, y, z))
					if gx != x || gy != y || gz != z {
						t.Fatalf("spu %v: GridCoord(WorldPosition(%d, %d, %d)) = %d, %d, %d",
							spu, x, y, z, gx, gy, gz)
					}
				}
			}
		}
	}
}

func TestGridCoordFloors(t *testing.T) {
	space, err := NewSampleSpace(twoNodePath(t), 5, 1, &coordField{})
	if err != nil {
		t.Fatalf("NewSampleSpace() error = %v", err)
	}

	tests := []struct {
		world      vmath.Vec3
		wx, wy, wz int
	}{
		{vmath.Vec3{X: -5, Y: -5, Z: -5}, 0, 0, 0},
		{vmath.Vec3{X: -4.5, Y: -3.2, Z: 0.9}, 0, 1, 5},
		{vmath.Vec3{X: -6, Y: -5, Z: -5}, -1, 0, 0},
	}
	for _, tt := range tests {
		x, y, z := space.GridCoord(tt.world)
		if x != tt.wx || y != tt.wy || z != tt.wz {
			t.Errorf("GridCoord(%v) = %d, %d, %d, want %d, %d, %d", tt.world, x, y, z, tt.wx, tt.wy, tt.wz)
		}
	}
	if space.Contains(-1, 0, 0) {
		t.Error("Contains(-1, 0, 0) = true")
	}
}

func TestSampleOutOfBoundsPanics(t *testing.T) {
	space, err := NewSampleSpace(twoNodePath(t), 5, 1, &coordField{})
	if err != nil {
		t.Fatalf("NewSampleSpace() error = %v", err)
	}
	nx, ny, nz := space.Dims()

	coords := [][3]int{
		{-1, 0, 0}, {0, -1, 0}, {0, 0, -1},
		{nx, 0, 0}, {0, ny, 0}, {0, 0, nz},
	}
	for _, c := range coords {
		expectInvariant(t, func() { space.Sample(c[0], c[1], c[2]) })
	}
	if space.Evaluations() != 0 {
		t.Errorf("out-of-bounds reads evaluated %d cells", space.Evaluations())
	}
}

func TestSampleNonFinitePanics(t *testing.T) {
	nan := DensityFunc(func(vmath.Vec3) float32 { return float32(math.NaN()) })
	space, err := NewSampleSpace(twoNodePath(t), 5, 1, nan)
	if err != nil {
		t.Fatalf("NewSampleSpace() error = %v", err)
	}
	expectInvariant(t, func() { space.Sample(0, 0, 0) })
}

func TestPopulateMatchesLazy(t *testing.T) {
	path, err := GeneratePath(testPathParams(9))
	if err != nil {
		t.Fatalf("GeneratePath() error = %v", err)
	}

	lazy, err := NewSampleSpace(path, 20, 0.5, &coordField{})
	if err != nil {
		t.Fatalf("NewSampleSpace() error = %v", err)
	}
	nx, ny, nz := lazy.Dims()
	total := int64(nx * ny * nz)

	for _, workers := range []int{1, 4} {
		field := &coordField{}
		eager, err := NewSampleSpace(path, 20, 0.5, field)
		if err != nil {
			t.Fatalf("NewSampleSpace() error = %v", err)
		}
		if err := eager.Populate(context.Background(), workers); err != nil {
			t.Fatalf("workers %d: Populate() error = %v", workers, err)
		}
		if eager.Evaluations() != total || field.calls.Load() != total {
			t.Errorf("workers %d: %d evaluations, want exactly %d", workers, eager.Evaluations(), total)
		}

		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					a, b := lazy.Sample(x, y, z), eager.Sample(x, y, z)
					if math.Float32bits(a) != math.Float32bits(b) {
						t.Fatalf("workers %d: cell (%d, %d, %d) = %v, lazy %v", workers, x, y, z, b, a)
					}
				}
			}
		}
		if eager.Evaluations() != total {
			t.Errorf("workers %d: reads after Populate re-evaluated cells", workers)
		}
	}
}

func TestPopulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{0, 4} {
		space, err := NewSampleSpace(twoNodePath(t), 5, 1, &coordField{})
		if err != nil {
			t.Fatalf("NewSampleSpace() error = %v", err)
		}
		if err := space.Populate(ctx, workers); !errors.Is(err, context.Canceled) {
			t.Errorf("workers %d: Populate() error = %v, want context.Canceled", workers, err)
		}
		if space.Filled() != 0 {
			t.Errorf("workers %d: cancelled Populate filled %d cells", workers, space.Filled())
		}
	}
}

func TestPopulateFaultReachesCaller(t *testing.T) {
	bad := DensityFunc(func(p vmath.Vec3) float32 {
		if p.Z > 2 {
			return float32(math.Inf(1))
		}
		return 0
	})
	space, err := NewSampleSpace(twoNodePath(t), 5, 1, bad)
	if err != nil {
		t.Fatalf("NewSampleSpace() error = %v", err)
	}
	expectInvariant(t, func() { _ = space.Populate(context.Background(), 4) })
}

func TestPopulatePanicReachesCaller(t *testing.T) {
	boom := errors.New("boom")
	bad := DensityFunc(func(p vmath.Vec3) float32 {
		if p.Z > 2 {
			panic(boom)
		}
		return 0
	})

	for _, workers := range []int{1, 4} {
		space, err := NewSampleSpace(twoNodePath(t), 5, 1, bad)
		if err != nil {
			t.Fatalf("NewSampleSpace() error = %v", err)
		}

		var (
			recovered any
			returned  bool
		)
		func() {
			defer func() { recovered = recover() }()
			_ = space.Populate(context.Background(), workers)
			returned = true
		}()

		if returned {
			t.Errorf("workers %d: Populate() returned normally with %d cells filled", workers, space.Filled())
			continue
		}
		if err, ok := recovered.(error); !ok || !errors.Is(err, boom) {
			t.Errorf("workers %d: recovered %v, want %v", workers, recovered, boom)
		}
	}
}
