package cave

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-caves/internal/profile"
	"github.com/Faultbox/midgard-caves/pkg/mesh"
	"github.com/Faultbox/midgard-caves/pkg/noise"
)

// Densities produced by PathDensity lie in this range.
const (
	MinDensity = -1
	MaxDensity = 1
)

// Params is the full input of one generation run.
type Params struct {
	PathParams

	SamplesPerUnit float32
	SurfaceLevel   float32

	NoiseAmplitude float32 // 0 disables the perturbation
	NoiseFrequency float32
	NoiseOctaves   int
	NoiseKind      noise.Kind // empty means simplex
}

// Validate reports the first configuration error.
func (p Params) Validate() error {
	if err := p.PathParams.Validate(); err != nil {
		return err
	}
	if !positive(p.SamplesPerUnit) {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, p.SamplesPerUnit)
	}
	if math.IsNaN(float64(p.SurfaceLevel)) || p.SurfaceLevel < MinDensity || p.SurfaceLevel > MaxDensity {
		return fmt.Errorf("%w: %v not in [%d, %d]", ErrInvalidSurfaceLevel, p.SurfaceLevel, MinDensity, MaxDensity)
	}
	if !finiteNonNegative(p.NoiseAmplitude) || !finiteNonNegative(p.NoiseFrequency) {
		return fmt.Errorf("%w: amplitude %v, frequency %v", ErrInvalidNoise, p.NoiseAmplitude, p.NoiseFrequency)
	}
	if p.NoiseOctaves < 0 {
		return fmt.Errorf("%w: %d octaves", ErrInvalidNoise, p.NoiseOctaves)
	}
	switch p.noiseKind() {
	case noise.KindSimplex, noise.KindPerlin:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidNoise, p.NoiseKind)
	}
	return nil
}

func (p Params) noiseKind() noise.Kind {
	if p.NoiseKind == "" {
		return noise.KindSimplex
	}
	return p.NoiseKind
}

// Options carries the collaborators of a run. The zero value is usable.
type Options struct {
	Profiler profile.Profiler // nil means profile.Nop()
	Workers  int              // > 1 prefills the sample space in parallel
	Logger   *zap.Logger      // nil discards output
}

// Stats summarizes a finished run.
type Stats struct {
	Nodes       int
	Grid        [3]int
	Evaluations int64
	Mesh        mesh.Stats
}

// Result holds everything a run produced.
type Result struct {
	Path  *Path
	Space *SampleSpace
	Mesh  *mesh.Mesh
	Stats Stats
}

// Generate runs the pipeline: walk the skeleton, sample the density field
// around it and triangulate the isosurface at params.SurfaceLevel.
//
// Configuration errors are returned before any work starts. An
// *InvariantError raised anywhere in the pipeline is returned as the error
// and no partial result is handed back.
func Generate(ctx context.Context, params Params, opts Options) (res *Result, err error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	prof := opts.Profiler
	if prof == nil {
		prof = profile.Nop()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	defer func() {
		if ie := recoverInvariant(recover()); ie != nil {
			log.Error("generation aborted", zap.Error(ie))
			res, err = nil, ie
		}
	}()

	src, err := noise.NewSource(params.noiseKind(), params.Seed, params.NoiseOctaves)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNoise, err)
	}

	path, err := phase(prof, "path", func() (*Path, error) {
		return GeneratePath(params.PathParams)
	})
	if err != nil {
		return nil, err
	}
	prof.Log("path generated",
		zap.Int("nodes", path.Len()),
		zap.Float32("maxSegment", path.MaxSegmentLength()),
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var field DensityField = NewPathDensity(path, params.MaxInfluenceRadius, src, params.NoiseAmplitude, params.NoiseFrequency)
	space, err := phase(prof, "sample", func() (*SampleSpace, error) {
		space, err := NewSampleSpace(path, params.MaxInfluenceRadius, params.SamplesPerUnit, field)
		if err != nil {
			return nil, err
		}
		if opts.Workers > 1 {
			if err := space.Populate(ctx, opts.Workers); err != nil {
				return nil, err
			}
		}
		return space, nil
	})
	if err != nil {
		return nil, err
	}
	nx, ny, nz := space.Dims()
	prof.Log("sample space allocated",
		zap.Int("nx", nx), zap.Int("ny", ny), zap.Int("nz", nz),
		zap.Int("workers", opts.Workers),
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &mesh.Mesh{}
	meshStats, err := phase(prof, "triangulate", func() (mesh.Stats, error) {
		return mesh.GenerateContext(ctx, space, params.SurfaceLevel, out)
	})
	if err != nil {
		return nil, err
	}

	res = &Result{
		Path:  path,
		Space: space,
		Mesh:  out,
		Stats: Stats{
			Nodes:       path.Len(),
			Grid:        [3]int{nx, ny, nz},
			Evaluations: space.Evaluations(),
			Mesh:        meshStats,
		},
	}

	log.Info("cave generated",
		zap.Int64("seed", params.Seed),
		zap.Int("nodes", res.Stats.Nodes),
		zap.Ints("grid", res.Stats.Grid[:]),
		zap.Int64("evaluations", res.Stats.Evaluations),
		zap.Int("triangles", meshStats.Triangles),
		zap.Int("vertices", len(out.Vertices)),
	)
	return res, nil
}

// recoverInvariant converts a recovered *InvariantError into a value. Any
// other panic is re-raised.
func recoverInvariant(r any) *InvariantError {
	if r == nil {
		return nil
	}
	ie, ok := r.(*InvariantError)
	if !ok {
		panic(r)
	}
	return ie
}

// phase runs fn inside a profiling region that is closed on every exit path.
func phase[T any](prof profile.Profiler, name string, fn func() (T, error)) (T, error) {
	region := prof.Begin(name)
	defer region.End()
	return fn()
}

func finiteNonNegative(v float32) bool {
	return v >= 0 && !math.IsInf(float64(v), 0)
}
