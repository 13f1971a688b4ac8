// Package renderer draws cave meshes with OpenGL.
package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-caves/internal/engine/shader"
	"github.com/Faultbox/midgard-caves/pkg/mesh"
)

// Vertex layout: position (vec3) followed by normal (vec3).
const (
	floatSize     = 4
	vertexFloats  = 6
	vertexStride  = vertexFloats * floatSize
	normalOffset  = 3 * floatSize
	indexByteSize = 4
)

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
}

// Renderer handles all OpenGL rendering.
type Renderer struct {
	config Config
	log    *zap.Logger

	program *shader.Program

	vao, vbo, ebo uint32
	indexCount    int32

	lineProgram      *shader.Program
	lineVAO, lineVBO uint32

	LightDir  mgl32.Vec3
	BaseColor mgl32.Vec3
	FogColor  mgl32.Vec3
	FogFar    float32
}

// New creates a new renderer.
// Must be called after the OpenGL context exists.
func New(cfg Config, log *zap.Logger) (*Renderer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Renderer{
		config:    cfg,
		log:       log.Named("renderer"),
		LightDir:  mgl32.Vec3{0.4, 1, 0.3}.Normalize(),
		BaseColor: mgl32.Vec3{0.62, 0.55, 0.47},
		FogColor:  mgl32.Vec3{0.05, 0.05, 0.07},
		FogFar:    2000,
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.MULTISAMPLE)
	// The camera can sit inside the tunnel or outside it, so both windings draw.
	gl.Disable(gl.CULL_FACE)
	gl.ClearColor(r.FogColor.X(), r.FogColor.Y(), r.FogColor.Z(), 1.0)

	var err error
	r.program, err = shader.New(caveVertexShader, caveFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("failed to create cave shader: %w", err)
	}

	r.lineProgram, err = shader.New(lineVertexShader, lineFragmentShader)
	if err != nil {
		r.program.Delete()
		return nil, fmt.Errorf("failed to create line shader: %w", err)
	}

	gl.GenVertexArrays(1, &r.vao)
	gl.GenBuffers(1, &r.vbo)
	gl.GenBuffers(1, &r.ebo)

	gl.GenVertexArrays(1, &r.lineVAO)
	gl.GenBuffers(1, &r.lineVBO)
	gl.BindVertexArray(r.lineVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.lineVBO)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 3*floatSize, 0)
	gl.EnableVertexAttribArray(0)
	gl.BindVertexArray(0)

	r.Resize(cfg.Width, cfg.Height)
	return r, nil
}

// UploadMesh replaces the GPU buffers with m.
func (r *Renderer) UploadMesh(m *mesh.Mesh) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("upload mesh: %w", err)
	}

	r.indexCount = int32(len(m.Indices))
	if r.indexCount == 0 {
		r.log.Warn("uploading empty mesh")
		return nil
	}

	vertices := m.Interleaved()

	gl.BindVertexArray(r.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*floatSize, unsafe.Pointer(&vertices[0]), gl.STATIC_DRAW)

	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, vertexStride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, vertexStride, normalOffset)
	gl.EnableVertexAttribArray(1)

	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(m.Indices)*indexByteSize, unsafe.Pointer(&m.Indices[0]), gl.STATIC_DRAW)

	gl.BindVertexArray(0)

	r.log.Debug("mesh uploaded",
		zap.Int("vertices", len(m.Vertices)),
		zap.Int("triangles", m.TriangleCount()),
		zap.Int("bytes", len(vertices)*floatSize+len(m.Indices)*indexByteSize),
	)
	return nil
}

// Draw renders the uploaded mesh from the given camera.
func (r *Renderer) Draw(viewProj mgl32.Mat4, eye mgl32.Vec3, wireframe bool) {
	if r.indexCount == 0 {
		return
	}

	r.program.Use()
	r.program.SetMat4("uViewProj", viewProj)
	r.program.SetVec3("uEye", eye)
	r.program.SetVec3("uLightDir", r.LightDir)
	r.program.SetVec3("uBaseColor", r.BaseColor)
	r.program.SetVec3("uFogColor", r.FogColor)
	r.program.SetFloat("uFogFar", r.FogFar)

	if wireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
		defer gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}

	gl.BindVertexArray(r.vao)
	gl.DrawElements(gl.TRIANGLES, r.indexCount, gl.UNSIGNED_INT, nil)
	gl.BindVertexArray(0)
}

// DrawLines renders a line list of [x, y, z] vertices in a flat color.
// The vertex buffer is re-filled on every call.
func (r *Renderer) DrawLines(viewProj mgl32.Mat4, vertices []float32, color mgl32.Vec3) {
	if len(vertices) < 6 {
		return
	}

	r.lineProgram.Use()
	r.lineProgram.SetMat4("uViewProj", viewProj)
	r.lineProgram.SetVec3("uColor", color)

	gl.BindVertexArray(r.lineVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.lineVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*floatSize, unsafe.Pointer(&vertices[0]), gl.STREAM_DRAW)
	gl.DrawArrays(gl.LINES, 0, int32(len(vertices)/3))
	gl.BindVertexArray(0)
}

// ReadPixels returns the current framebuffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	w, h := r.config.Width, r.config.Height
	pixels := make([]byte, w*h*4)
	if len(pixels) == 0 {
		return nil, 0, 0
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&pixels[0]))
	return pixels, w, h
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Aspect returns the viewport aspect ratio.
func (r *Renderer) Aspect() float32 {
	return aspect(r.config.Width, r.config.Height)
}

// Begin starts a new frame.
func (r *Renderer) Begin() {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Close cleans up renderer resources.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	if r.ebo != 0 {
		gl.DeleteBuffers(1, &r.ebo)
	}
	if r.vbo != 0 {
		gl.DeleteBuffers(1, &r.vbo)
	}
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
	}
	if r.lineVBO != 0 {
		gl.DeleteBuffers(1, &r.lineVBO)
	}
	if r.lineVAO != 0 {
		gl.DeleteVertexArrays(1, &r.lineVAO)
	}
	if r.program != nil {
		r.program.Delete()
	}
	if r.lineProgram != nil {
		r.lineProgram.Delete()
	}
}

func aspect(width, height int) float32 {
	if width <= 0 || height <= 0 {
		return 1
	}
	return float32(width) / float32(height)
}
