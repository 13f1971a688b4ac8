// Package profile records named timing regions around pipeline phases.
package profile

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Region is an open timing region. End is safe to call more than once.
type Region interface {
	End()
}

// Profiler accepts region boundaries and free-form log events.
type Profiler interface {
	Begin(name string) Region
	Log(msg string, fields ...zap.Field)
}

// Nop returns a profiler that records nothing.
func Nop() Profiler {
	return nopProfiler{}
}

type nopProfiler struct{}

func (nopProfiler) Begin(string) Region       { return nopRegion{} }
func (nopProfiler) Log(string, ...zap.Field) {}

type nopRegion struct{}

func (nopRegion) End() {}

// Timing is one closed region.
type Timing struct {
	Name     string // region name
	Path     string // slash-joined names of the enclosing regions
	Depth    int
	Duration time.Duration
}

// Recorder keeps its own region stack and reports closed regions through zap.
type Recorder struct {
	log *zap.Logger
	now func() time.Time

	mu      sync.Mutex
	stack   []string
	timings []Timing
}

// NewRecorder creates a recorder logging to log. A nil logger discards output.
func NewRecorder(log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		log: log.Named("profile"),
		now: time.Now,
	}
}

// Begin opens a region nested inside any region still open.
func (r *Recorder) Begin(name string) Region {
	r.mu.Lock()
	defer r.mu.Unlock()

	depth := len(r.stack)
	r.stack = append(r.stack, name)
	return &region{
		rec:   r,
		name:  name,
		path:  strings.Join(r.stack, "/"),
		depth: depth,
		start: r.now(),
	}
}

// Log forwards an event to the logger at debug level.
func (r *Recorder) Log(msg string, fields ...zap.Field) {
	r.log.Debug(msg, fields...)
}

// Timings returns the closed regions in the order they ended.
func (r *Recorder) Timings() []Timing {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Timing, len(r.timings))
	copy(out, r.timings)
	return out
}

// Total sums the durations of every closed region with the given name.
func (r *Recorder) Total(name string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var d time.Duration
	for _, t := range r.timings {
		if t.Name == name {
			d += t.Duration
		}
	}
	return d
}

// Open returns the number of regions not yet ended.
func (r *Recorder) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stack)
}

type region struct {
	rec   *Recorder
	name  string
	path  string
	depth int
	start time.Time
	once  sync.Once
}

// End closes the region and any regions opened inside it that are still open.
func (g *region) End() {
	g.once.Do(func() {
		r := g.rec
		elapsed := r.now().Sub(g.start)

		r.mu.Lock()
		if len(r.stack) > g.depth {
			r.stack = r.stack[:g.depth]
		}
		r.timings = append(r.timings, Timing{
			Name:     g.name,
			Path:     g.path,
			Depth:    g.depth,
			Duration: elapsed,
		})
		r.mu.Unlock()

		r.log.Debug("region",
			zap.String("region", g.path),
			zap.Duration("elapsed", elapsed),
		)
	})
}
