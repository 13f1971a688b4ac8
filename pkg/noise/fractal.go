package noise

import (
	"fmt"

	perlin "github.com/aquilax/go-perlin"
)

// Kind names a noise backend selectable from configuration.
type Kind string

// Supported noise backends.
const (
	KindSimplex Kind = "simplex"
	KindPerlin  Kind = "perlin"
)

// Fractal layers octaves of a Source. The sum is normalized by the total
// amplitude so the output stays in [-1, 1].
type Fractal struct {
	Source      Source
	Octaves     int
	Persistence float64 // amplitude multiplier per octave
	Lacunarity  float64 // frequency multiplier per octave
}

// NewFractal creates a fractal source with the usual 0.5/2.0 falloff.
func NewFractal(src Source, octaves int) *Fractal {
	return &Fractal{
		Source:      src,
		Octaves:     octaves,
		Persistence: 0.5,
		Lacunarity:  2.0,
	}
}

// Eval3 returns the layered noise value.
func (f *Fractal) Eval3(x, y, z float64) float64 {
	if f.Octaves <= 1 {
		return f.Source.Eval3(x, y, z)
	}

	var total, norm float64
	amplitude, frequency := 1.0, 1.0
	for range f.Octaves {
		total += f.Source.Eval3(x*frequency, y*frequency, z*frequency) * amplitude
		norm += amplitude
		amplitude *= f.Persistence
		frequency *= f.Lacunarity
	}
	if norm == 0 {
		return 0
	}
	return clamp(total / norm)
}

// Perlin wraps classic Perlin lattice noise.
type Perlin struct {
	p *perlin.Perlin
}

// NewPerlin creates a single-octave Perlin source. Layering is left to Fractal.
func NewPerlin(seed int64) *Perlin {
	return &Perlin{p: perlin.NewPerlin(2, 2, 1, seed)}
}

// Eval3 returns Perlin noise clamped to [-1, 1].
func (n *Perlin) Eval3(x, y, z float64) float64 {
	return clamp(n.p.Noise3D(x, y, z))
}

// NewSource builds the configured backend, wrapped in a Fractal when more
// than one octave is requested.
func NewSource(kind Kind, seed int64, octaves int) (Source, error) {
	var base Source
	switch kind {
	case KindSimplex, "":
		base = New(seed)
	case KindPerlin:
		base = NewPerlin(seed)
	default:
		return nil, fmt.Errorf("unknown noise kind %q", kind)
	}

	if octaves < 0 {
		return nil, fmt.Errorf("negative octave count %d", octaves)
	}
	if octaves <= 1 {
		return base, nil
	}
	return NewFractal(base, octaves), nil
}
