package cave

import (
	"math"
	"math/rand/v2"
	"testing"

	vmath "github.com/Faultbox/midgard-caves/pkg/math"
	"github.com/Faultbox/midgard-caves/pkg/noise"
)

func TestPathDensityShape(t *testing.T) {
	field := NewPathDensity(twoNodePath(t), 4, nil, 0, 0)

	tests := []struct {
		name  string
		point vmath.Vec3
		want  float32
	}{
		{"on root", vmath.Vec3{}, -1},
		{"on segment", vmath.Vec3{X: 5}, -1},
		{"half radius", vmath.Vec3{X: 5, Y: 2}, 0},
		{"at radius", vmath.Vec3{X: 5, Z: 4}, 1},
		{"far away", vmath.Vec3{X: 5, Y: 50}, 1},
		{"past the end", vmath.Vec3{X: 12}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := field.Density(tt.point); got != tt.want {
				t.Errorf("Density(%v) = %v, want %v", tt.point, got, tt.want)
			}
		})
	}
}

// bruteDensity scans every segment of the path.
func bruteDensity(path *Path, radius float32, p vmath.Vec3) float32 {
	best := radius * radius
	for i := 0; i < path.Len(); i++ {
		if d := path.Segment(i).DistanceSq(p); d < best {
			best = d
		}
	}
	v := 2*float32(math.Sqrt(float64(best)))/radius - 1
	return min(max(v, -1), 1)
}

func TestPathDensityMatchesBruteForce(t *testing.T) {
	params := testPathParams(21)
	params.NodeCount = 120
	params.Branches = 3
	params.BranchLength = 8
	path, err := GeneratePath(params)
	if err != nil {
		t.Fatalf("GeneratePath() error = %v", err)
	}

	const radius = 12
	field := NewPathDensity(path, radius, nil, 0, 0)

	lo, hi := path.Bounds()
	lo, hi = lo.AddScalar(-radius), hi.AddScalar(radius)
	size := hi.Sub(lo)
	rng := rand.New(rand.NewPCG(3, 4))

	for range 5000 {
		p := vmath.Vec3{
			X: lo.X + rng.Float32()*size.X,
			Y: lo.Y + rng.Float32()*size.Y,
			Z: lo.Z + rng.Float32()*size.Z,
		}
		if got, want := field.Density(p), bruteDensity(path, radius, p); got != want {
			t.Fatalf("Density(%v) = %v, brute force %v", p, got, want)
		}
	}
}

func TestPathDensityNoiseStaysInRange(t *testing.T) {
	path, err := GeneratePath(testPathParams(5))
	if err != nil {
		t.Fatalf("GeneratePath() error = %v", err)
	}
	field := NewPathDensity(path, 20, noise.New(5), 3, 0.1)

	varied := false
	rng := rand.New(rand.NewPCG(5, 6))
	for range 10000 {
		p := vmath.Vec3{
			X: rng.Float32()*200 - 100,
			Y: rng.Float32()*200 - 100,
			Z: rng.Float32()*200 - 100,
		}
		v := field.Density(p)
		if v < MinDensity || v > MaxDensity || math.IsNaN(float64(v)) {
			t.Fatalf("Density(%v) = %v out of range", p, v)
		}
		if v > -1 && v < 1 {
			varied = true
		}
	}
	if !varied {
		t.Error("noise-perturbed field never left the clamp limits")
	}
}

func TestDensityFunc(t *testing.T) {
	f := DensityFunc(func(p vmath.Vec3) float32 { return p.X })
	var field DensityField = f
	if got := field.Density(vmath.Vec3{X: 0.25}); got != 0.25 {
		t.Errorf("Density() = %v, want 0.25", got)
	}
}
