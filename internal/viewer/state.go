package viewer

import (
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/Faultbox/midgard-caves/internal/config"
	"github.com/Faultbox/midgard-caves/internal/engine/debug"
	"github.com/Faultbox/midgard-caves/pkg/cave"
	vmath "github.com/Faultbox/midgard-caves/pkg/math"
)

// Command is the action a key press maps to.
type Command int

const (
	CommandNone Command = iota
	CommandQuit
	CommandRegenerate
	CommandScreenshot
	CommandRefit
)

// State is the GL-free part of the viewer: current seed, toggles and the
// overlay geometry of the last generated cave.
//
// Seed is the seed of the cave on screen. A seed step only becomes Seed once
// Apply records a successful generation for it.
type State struct {
	base cave.Params
	next int64

	Seed       int64
	Wireframe  bool
	ShowPath   bool
	ShowBounds bool
	ShowStats  bool
	FPS        int

	Stats       cave.Stats
	Elapsed     time.Duration
	PathLines   []float32
	BoundsLines []float32

	lo, hi vmath.Vec3
}

// NewState seeds the viewer state from configuration.
func NewState(cfg *config.Config) *State {
	base := cfg.Params()
	return &State{
		base:      base,
		next:      base.Seed,
		Seed:      base.Seed,
		Wireframe: cfg.Viewer.Wireframe,
		ShowStats: cfg.Viewer.ShowStats,
	}
}

// Params returns the generation parameters for the seed awaiting
// regeneration.
func (s *State) Params() cave.Params {
	p := s.base
	p.Seed = s.next
	return p
}

// Command applies toggles for key and returns the action the viewer must
// perform. R and N request the next seed, B the previous one.
func (s *State) Command(key sdl.Scancode) Command {
	switch key {
	case sdl.SCANCODE_ESCAPE:
		return CommandQuit
	case sdl.SCANCODE_R, sdl.SCANCODE_N:
		s.next = s.Seed + 1
		return CommandRegenerate
	case sdl.SCANCODE_B:
		s.next = s.Seed - 1
		return CommandRegenerate
	case sdl.SCANCODE_F:
		s.Wireframe = !s.Wireframe
	case sdl.SCANCODE_P:
		s.ShowPath = !s.ShowPath
	case sdl.SCANCODE_G:
		s.ShowBounds = !s.ShowBounds
	case sdl.SCANCODE_TAB:
		s.ShowStats = !s.ShowStats
	case sdl.SCANCODE_F12:
		return CommandScreenshot
	case sdl.SCANCODE_HOME:
		return CommandRefit
	}
	return CommandNone
}

// Apply records a finished generation, commits its seed and rebuilds the
// overlays.
func (s *State) Apply(res *cave.Result, elapsed time.Duration) {
	s.Seed = s.next
	s.Stats = res.Stats
	s.Elapsed = elapsed
	s.PathLines = debug.PathLines(res.Path)

	lo, hi := debug.SampleBounds(res.Space)
	s.lo, s.hi = lo, hi
	s.BoundsLines = debug.BoxLines(lo, hi)
}

// Reject drops the requested seed after a failed generation, leaving the
// current cave and its seed in place.
func (s *State) Reject() {
	s.next = s.Seed
}

// Bounds returns the sample grid box of the last cave.
func (s *State) Bounds() (vmath.Vec3, vmath.Vec3) {
	return s.lo, s.hi
}

// Title formats the window title.
func (s *State) Title(prefix string) string {
	if !s.ShowStats {
		return fmt.Sprintf("%s - seed %d", prefix, s.Seed)
	}
	g := s.Stats.Grid
	return fmt.Sprintf("%s - seed %d | %d nodes | grid %dx%dx%d | %d tris | %s | %d fps",
		prefix, s.Seed, s.Stats.Nodes, g[0], g[1], g[2],
		s.Stats.Mesh.Triangles, s.Elapsed.Round(time.Millisecond), s.FPS)
}
