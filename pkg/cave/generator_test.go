package cave

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/midgard-caves/internal/profile"
	"github.com/Faultbox/midgard-caves/pkg/mesh"
	"github.com/Faultbox/midgard-caves/pkg/noise"
)

// exampleParams is the reference cave: 10 nodes, 10 units apart, radius 20,
// one sample every 2 units, surface at 0.75.
func exampleParams() Params {
	return Params{
		PathParams: PathParams{
			NodeCount:          10,
			Spacing:            10,
			MaxInfluenceRadius: 20,
			Seed:               1337,
		},
		SamplesPerUnit: 0.5,
		SurfaceLevel:   0.75,
		NoiseAmplitude: 0.2,
		NoiseFrequency: 0.05,
		NoiseOctaves:   2,
	}
}

func TestGenerateInvariants(t *testing.T) {
	res, err := Generate(context.Background(), exampleParams(), Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	m := res.Mesh
	if len(m.Vertices) != len(m.Normals) || len(m.Vertices) != len(m.Indices) {
		t.Errorf("buffer lengths: %d vertices, %d normals, %d indices", len(m.Vertices), len(m.Normals), len(m.Indices))
	}
	if len(m.Indices)%3 != 0 {
		t.Errorf("index count %d is not a multiple of 3", len(m.Indices))
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if m.TriangleCount() == 0 {
		t.Fatal("reference cave produced no triangles")
	}
	if res.Stats.Mesh.Triangles != m.TriangleCount() {
		t.Errorf("Stats.Mesh.Triangles = %d, mesh has %d", res.Stats.Mesh.Triangles, m.TriangleCount())
	}

	if res.Stats.Nodes != 10 || res.Path.Len() != 10 {
		t.Errorf("nodes = %d (path %d), want 10", res.Stats.Nodes, res.Path.Len())
	}

	// Every grid point is a corner of some cell, and each is evaluated once.
	nx, ny, nz := res.Space.Dims()
	if res.Stats.Grid != [3]int{nx, ny, nz} {
		t.Errorf("Stats.Grid = %v, want %v", res.Stats.Grid, [3]int{nx, ny, nz})
	}
	if want := int64(nx * ny * nz); res.Stats.Evaluations != want {
		t.Errorf("evaluations = %d, want %d", res.Stats.Evaluations, want)
	}
	if want := (nx - 1) * (ny - 1) * (nz - 1); res.Stats.Mesh.Cells != want {
		t.Errorf("cells = %d, want %d", res.Stats.Mesh.Cells, want)
	}

	// Vertices stay inside the sampled volume.
	lo := res.Space.Origin().AddScalar(-1e-3)
	hi := res.Space.WorldPosition(nx-1, ny-1, nz-1).AddScalar(1e-3)
	mlo, mhi := m.Bounds()
	if mlo.X < lo.X || mlo.Y < lo.Y || mlo.Z < lo.Z || mhi.X > hi.X || mhi.Y > hi.Y || mhi.Z > hi.Z {
		t.Errorf("mesh bounds %v..%v escape the grid %v..%v", mlo, mhi, lo, hi)
	}
}

func TestGenerateReproducible(t *testing.T) {
	a, err := Generate(context.Background(), exampleParams(), Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	b, err := Generate(context.Background(), exampleParams(), Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	assertSameMesh(t, a.Mesh, b.Mesh)

	other := exampleParams()
	other.Seed++
	c, err := Generate(context.Background(), other, Options{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if slices.Equal(a.Mesh.Vertices, c.Mesh.Vertices) {
		t.Error("different seeds produced identical meshes")
	}
}

// TestGenerateGolden pins the noise-free reference cave: 10 nodes spaced 10
// apart, influence radius 20, 0.5 samples per unit, surface level 0.75.
// A change here means the walk, density or triangulation output moved.
func TestGenerateGolden(t *testing.T) {
	params := Params{
		PathParams: PathParams{
			NodeCount:          10,
			Spacing:            10,
			MaxInfluenceRadius: 20,
			Seed:               1,
		},
		SamplesPerUnit: 0.5,
		SurfaceLevel:   0.75,
	}

	const (
		triangles   = 7732
		activeCells = 3870
	)
	wantGrid := [3]int{32, 32, 38}

	for _, workers := range []int{0, 4} {
		res, err := Generate(context.Background(), params, Options{Workers: workers})
		if err != nil {
			t.Fatalf("workers %d: Generate() error = %v", workers, err)
		}
		s := res.Stats
		if s.Grid != wantGrid {
			t.Errorf("workers %d: grid = %v, want %v", workers, s.Grid, wantGrid)
		}
		if want := int64(32 * 32 * 38); s.Evaluations != want {
			t.Errorf("workers %d: evaluations = %d, want %d", workers, s.Evaluations, want)
		}
		if s.Mesh.Cells != 31*31*37 {
			t.Errorf("workers %d: cells = %d, want %d", workers, s.Mesh.Cells, 31*31*37)
		}
		if s.Mesh.Triangles != triangles || s.Mesh.ActiveCells != activeCells {
			t.Errorf("workers %d: %d triangles in %d active cells, want %d in %d",
				workers, s.Mesh.Triangles, s.Mesh.ActiveCells, triangles, activeCells)
		}
		m := res.Mesh
		if len(m.Vertices) != 3*triangles || len(m.Normals) != 3*triangles || len(m.Indices) != 3*triangles {
			t.Errorf("workers %d: %d vertices, %d normals, %d indices, want %d each",
				workers, len(m.Vertices), len(m.Normals), len(m.Indices), 3*triangles)
		}
	}
}

func TestGenerateParallelMatchesSequential(t *testing.T) {
	seq, err := Generate(context.Background(), exampleParams(), Options{})
	if err != nil {
		t.Fatalf("sequential Generate() error = %v", err)
	}
	par, err := Generate(context.Background(), exampleParams(), Options{Workers: 4})
	if err != nil {
		t.Fatalf("parallel Generate() error = %v", err)
	}
	assertSameMesh(t, seq.Mesh, par.Mesh)
	if seq.Stats != par.Stats {
		t.Errorf("stats differ: sequential %+v, parallel %+v", seq.Stats, par.Stats)
	}
}

func TestGenerateNoiseKinds(t *testing.T) {
	for _, kind := range []noise.Kind{"", noise.KindSimplex, noise.KindPerlin} {
		params := exampleParams()
		params.NoiseKind = kind
		res, err := Generate(context.Background(), params, Options{})
		if err != nil {
			t.Fatalf("kind %q: Generate() error = %v", kind, err)
		}
		if err := res.Mesh.Validate(); err != nil {
			t.Errorf("kind %q: %v", kind, err)
		}
	}
}

func TestGenerateWithBranches(t *testing.T) {
	params := exampleParams()
	params.Branches = 2
	params.BranchLength = 4

	res, err := Generate(context.Background(), params, Options{Workers: 2})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Path.Len() != 18 {
		t.Errorf("Len() = %d, want 18", res.Path.Len())
	}
	if res.Mesh.TriangleCount() == 0 {
		t.Error("branched cave produced no triangles")
	}
}

func TestGenerateNeverReadsOutsideGrid(t *testing.T) {
	for seed := int64(0); seed < 8; seed++ {
		params := exampleParams()
		params.Seed = seed
		params.NodeCount = 6
		params.SamplesPerUnit = 0.25
		params.SurfaceLevel = -0.5

		// Sample panics on any out-of-range read; Generate would surface it.
		if _, err := Generate(context.Background(), params, Options{}); err != nil {
			t.Fatalf("seed %d: Generate() error = %v", seed, err)
		}
	}
}

func TestGenerateValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Params)
		want   error
	}{
		{"node count", func(p *Params) { p.NodeCount = 0 }, ErrInvalidNodeCount},
		{"spacing", func(p *Params) { p.Spacing = -1 }, ErrInvalidSpacing},
		{"radius", func(p *Params) { p.MaxInfluenceRadius = 0 }, ErrInvalidRadius},
		{"samples per unit", func(p *Params) { p.SamplesPerUnit = 0 }, ErrInvalidSampleRate},
		{"surface above range", func(p *Params) { p.SurfaceLevel = 1.5 }, ErrInvalidSurfaceLevel},
		{"surface below range", func(p *Params) { p.SurfaceLevel = -1.01 }, ErrInvalidSurfaceLevel},
		{"surface NaN", func(p *Params) { p.SurfaceLevel = float32(math.NaN()) }, ErrInvalidSurfaceLevel},
		{"negative amplitude", func(p *Params) { p.NoiseAmplitude = -0.1 }, ErrInvalidNoise},
		{"infinite frequency", func(p *Params) { p.NoiseFrequency = float32(math.Inf(1)) }, ErrInvalidNoise},
		{"negative octaves", func(p *Params) { p.NoiseOctaves = -1 }, ErrInvalidNoise},
		{"unknown kind", func(p *Params) { p.NoiseKind = "value" }, ErrInvalidNoise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := exampleParams()
			tt.modify(&params)

			rec := profile.NewRecorder(nil)
			res, err := Generate(context.Background(), params, Options{Profiler: rec})
			if !errors.Is(err, tt.want) {
				t.Errorf("Generate() error = %v, want %v", err, tt.want)
			}
			if res != nil {
				t.Error("configuration error returned a partial result")
			}
			if n := len(rec.Timings()); n != 0 {
				t.Errorf("configuration error still ran %d phases", n)
			}
		})
	}
}

func TestGenerateSurfaceLevelBounds(t *testing.T) {
	for _, level := range []float32{-1, 1} {
		params := exampleParams()
		params.SurfaceLevel = level
		if err := params.Validate(); err != nil {
			t.Errorf("surface level %v rejected: %v", level, err)
		}
	}
}

func TestGenerateProfilingRegions(t *testing.T) {
	rec := profile.NewRecorder(nil)
	if _, err := Generate(context.Background(), exampleParams(), Options{Profiler: rec}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var names []string
	for _, timing := range rec.Timings() {
		names = append(names, timing.Name)
	}
	if want := []string{"path", "sample", "triangulate"}; !slices.Equal(names, want) {
		t.Errorf("regions = %v, want %v", names, want)
	}
	if rec.Open() != 0 {
		t.Errorf("%d regions left open", rec.Open())
	}
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := profile.NewRecorder(nil)
	res, err := Generate(ctx, exampleParams(), Options{Profiler: rec, Workers: 4})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Generate() error = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Error("cancelled run returned a result")
	}
	if rec.Open() != 0 {
		t.Errorf("%d regions left open after cancellation", rec.Open())
	}
}

func TestGenerateLogsSummary(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	res, err := Generate(context.Background(), exampleParams(), Options{Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	entries := logs.FilterMessage("cave generated").All()
	if len(entries) != 1 {
		t.Fatalf("expected one summary entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["triangles"] != int64(res.Mesh.TriangleCount()) {
		t.Errorf("logged triangles = %v, want %d", fields["triangles"], res.Mesh.TriangleCount())
	}
	if fields["seed"] != int64(1337) {
		t.Errorf("logged seed = %v, want 1337", fields["seed"])
	}
}

func TestRecoverInvariant(t *testing.T) {
	if recoverInvariant(nil) != nil {
		t.Error("recoverInvariant(nil) != nil")
	}

	ie := &InvariantError{Op: "test", Detail: "boom"}
	if got := recoverInvariant(ie); got != ie {
		t.Errorf("recoverInvariant() = %v, want %v", got, ie)
	}

	var err error = ie
	var target *InvariantError
	if !errors.As(err, &target) || target.Op != "test" {
		t.Errorf("errors.As failed for %v", err)
	}
	if want := "cave: invariant violated in test: boom"; ie.Error() != want {
		t.Errorf("Error() = %q, want %q", ie.Error(), want)
	}

	defer func() {
		if r := recover(); r != "other" {
			t.Errorf("foreign panic value = %v, want re-raised \"other\"", r)
		}
	}()
	recoverInvariant("other")
}

func TestPhaseClosesRegionOnPanic(t *testing.T) {
	rec := profile.NewRecorder(nil)
	func() {
		defer func() { _ = recover() }()
		_, _ = phase(rec, "sample", func() (int, error) {
			fault("test", "forced")
			return 0, nil
		})
	}()
	if rec.Open() != 0 {
		t.Errorf("region left open after panic")
	}
	if got := rec.Timings(); len(got) != 1 || got[0].Name != "sample" {
		t.Errorf("timings = %+v", got)
	}
}

func assertSameMesh(t *testing.T, a, b *mesh.Mesh) {
	t.Helper()
	if !slices.Equal(a.Vertices, b.Vertices) {
		t.Error("vertex buffers differ")
	}
	if !slices.Equal(a.Normals, b.Normals) {
		t.Error("normal buffers differ")
	}
	if !slices.Equal(a.Indices, b.Indices) {
		t.Error("index buffers differ")
	}
}

func BenchmarkGenerate(b *testing.B) {
	params := exampleParams()
	params.NodeCount = 40
	for i := 0; i < b.N; i++ {
		if _, err := Generate(context.Background(), params, Options{}); err != nil {
			b.Fatal(err)
		}
	}
}
