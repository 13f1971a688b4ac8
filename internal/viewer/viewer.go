// Package viewer implements the interactive cave viewer loop.
package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-caves/internal/config"
	"github.com/Faultbox/midgard-caves/internal/engine/camera"
	"github.com/Faultbox/midgard-caves/internal/engine/debug"
	"github.com/Faultbox/midgard-caves/internal/engine/input"
	"github.com/Faultbox/midgard-caves/internal/engine/lighting"
	"github.com/Faultbox/midgard-caves/internal/engine/renderer"
	"github.com/Faultbox/midgard-caves/internal/engine/window"
	"github.com/Faultbox/midgard-caves/internal/profile"
	"github.com/Faultbox/midgard-caves/pkg/cave"
)

const (
	title        = "Midgard Caves"
	moveSpeed    = 60 // per second, scaled again by camera distance
	screenshotTo = "screenshots"
)

var (
	pathColor   = mgl32.Vec3{1, 0.8, 0.2}
	boundsColor = mgl32.Vec3{0.3, 0.6, 1}
)

// Viewer is the interactive viewer instance.
type Viewer struct {
	cfg     *config.Config
	log     *zap.Logger
	running bool

	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.OrbitCamera
	shots    *debug.Screenshot

	state *State
}

// New creates the window, GL renderer and first cave.
func New(cfg *config.Config, log *zap.Logger) (*Viewer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v := &Viewer{
		cfg:    cfg,
		log:    log.Named("viewer"),
		input:  input.New(),
		camera: camera.NewOrbitCamera(),
		shots:  debug.NewScreenshot(screenshotTo, "cave"),
		state:  NewState(cfg),
	}
	v.camera.FOV = cfg.Viewer.FOV

	var err error
	v.window, err = window.New(window.Config{
		Title:      title,
		Width:      cfg.Viewer.Width,
		Height:     cfg.Viewer.Height,
		Fullscreen: cfg.Viewer.Fullscreen,
		VSync:      cfg.Viewer.VSync,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Renderer after window: the GL context must exist.
	width, height := v.window.DrawableSize()
	v.renderer, err = renderer.New(renderer.Config{Width: width, Height: height}, log)
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	v.renderer.LightDir = lighting.SunDirection(cfg.Viewer.LightLongitude, cfg.Viewer.LightLatitude)

	if err := v.regenerate(); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

// Run starts the main loop and returns when the window closes.
func (v *Viewer) Run() error {
	v.running = true

	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	v.log.Info("starting viewer loop")

	for v.running {
		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		if v.input.Update() {
			break
		}
		v.handleEvents()
		v.update(dt)
		v.render()
		v.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			v.state.FPS = frameCount
			v.window.SetTitle(v.state.Title(title))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}
	return nil
}

func (v *Viewer) handleEvents() {
	for _, e := range v.input.Events() {
		switch e.Type {
		case input.EventWindowResize:
			v.renderer.Resize(v.window.DrawableSize())
		case input.EventKeyDown:
			v.handleKey(e.Key)
		}
	}
}

func (v *Viewer) handleKey(key sdl.Scancode) {
	switch v.state.Command(key) {
	case CommandQuit:
		v.running = false
	case CommandRegenerate:
		if err := v.regenerate(); err != nil {
			v.state.Reject()
			v.log.Warn("regeneration failed", zap.Error(err), zap.Int64("seed", v.state.Seed))
		}
	case CommandScreenshot:
		v.screenshot()
	case CommandRefit:
		v.fit()
	}
	v.window.SetTitle(v.state.Title(title))
}

func (v *Viewer) update(dt float32) {
	dx, dy := v.input.Drag()
	v.camera.HandleDrag(dx, dy)
	v.camera.HandleZoom(v.input.Wheel())

	var forward, right, up float32
	if input.IsKeyHeld(sdl.SCANCODE_W) {
		forward++
	}
	if input.IsKeyHeld(sdl.SCANCODE_S) {
		forward--
	}
	if input.IsKeyHeld(sdl.SCANCODE_D) {
		right++
	}
	if input.IsKeyHeld(sdl.SCANCODE_A) {
		right--
	}
	if input.IsKeyHeld(sdl.SCANCODE_E) {
		up++
	}
	if input.IsKeyHeld(sdl.SCANCODE_Q) {
		up--
	}
	step := moveSpeed * dt
	v.camera.HandleMovement(forward*step, right*step, up*step)
}

func (v *Viewer) render() {
	viewProj := v.camera.ViewProjection(v.renderer.Aspect())

	v.renderer.Begin()
	v.renderer.Draw(viewProj, v.camera.Position(), v.state.Wireframe)
	if v.state.ShowPath {
		v.renderer.DrawLines(viewProj, v.state.PathLines, pathColor)
	}
	if v.state.ShowBounds {
		v.renderer.DrawLines(viewProj, v.state.BoundsLines, boundsColor)
	}
}

// regenerate builds the cave for the requested seed and uploads it. The
// state only moves to the new seed once the upload succeeded.
func (v *Viewer) regenerate() error {
	params := v.state.Params()
	prof := profile.NewRecorder(v.log)
	region := prof.Begin("regenerate")
	res, err := cave.Generate(context.Background(), params, cave.Options{
		Profiler: prof,
		Workers:  v.cfg.Generation.Workers,
		Logger:   v.log,
	})
	region.End()
	if err != nil {
		return fmt.Errorf("generate seed %d: %w", params.Seed, err)
	}
	if err := v.renderer.UploadMesh(res.Mesh); err != nil {
		return err
	}

	v.state.Apply(res, prof.Total("regenerate"))
	v.fit()
	v.window.SetTitle(v.state.Title(title))
	return nil
}

func (v *Viewer) fit() {
	lo, hi := v.state.Bounds()
	v.camera.FitToBounds(lo, hi)
}

func (v *Viewer) screenshot() {
	pixels, w, h := v.renderer.ReadPixels()
	name, err := v.shots.Capture(pixels, w, h, v.state.Seed)
	if err != nil {
		v.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("file", name))
}

// Close cleans up viewer resources.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")

	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
