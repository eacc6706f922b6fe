package preview

import (
	"image/color"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"github.com/phanxgames/quartz"
)

// maxBatchVertices keeps every DrawTriangles call within 16-bit indices.
const maxBatchVertices = 65535 - 2

// Renderer draws render passes onto ebiten images.
type Renderer struct {
	// ClearColor fills the target before drawing. A zero alpha skips the fill.
	ClearColor color.RGBA
	// BaseColor shades primitives without a COLOR_0 stream.
	BaseColor mgl32.Vec4
	// LightDir points towards the light, in world space.
	LightDir mgl32.Vec3
	// Ambient is the light level of faces turned away from LightDir.
	Ambient float32
	// ScreenshotDir is where queued screenshots are written.
	ScreenshotDir string

	proj        projector
	white       *ebiten.Image
	vertices    []ebiten.Vertex
	indices     []uint16
	screenshots []string
	log         *zap.Logger

	triangles int
}

// NewRenderer returns a renderer with a grey base color and a light above
// and in front of the origin.
func NewRenderer() *Renderer {
	return &Renderer{
		ClearColor:    color.RGBA{R: 24, G: 24, B: 32, A: 255},
		BaseColor:     mgl32.Vec4{0.8, 0.8, 0.8, 1},
		LightDir:      mgl32.Vec3{0.3, 0.8, 0.5}.Normalize(),
		Ambient:       0.25,
		ScreenshotDir: "screenshots",
		log:           quartz.Logger().Named("preview"),
	}
}

// Triangles returns the number of triangles submitted by the last Draw.
func (r *Renderer) Triangles() int { return r.triangles }

// Draw renders pass onto dst using the pass camera. Nothing but the clear
// color is drawn when no camera is available.
func (r *Renderer) Draw(dst *ebiten.Image, pass *quartz.RenderPass) {
	if r.ClearColor.A > 0 {
		dst.Fill(r.ClearColor)
	}
	r.triangles = 0
	cam := pass.CameraOrCurrent()
	if cam == nil {
		r.flushScreenshots(dst)
		return
	}
	b := dst.Bounds()
	r.proj.light = r.LightDir
	r.proj.ambient = r.Ambient
	r.proj.base = r.BaseColor
	r.proj.reset(cam.ViewProjectionMatrix(), b.Dx(), b.Dy())
	for _, cmd := range pass.Commands() {
		r.proj.add(cmd)
	}

	r.vertices = r.vertices[:0]
	r.indices = r.indices[:0]
	for _, t := range r.proj.sorted() {
		if len(r.vertices)+3 > maxBatchVertices {
			r.submit(dst)
		}
		base := uint16(len(r.vertices))
		for k := 0; k < 3; k++ {
			r.vertices = append(r.vertices, ebiten.Vertex{
				DstX:   t.pos[k][0],
				DstY:   t.pos[k][1],
				SrcX:   0.5,
				SrcY:   0.5,
				ColorR: t.color[0],
				ColorG: t.color[1],
				ColorB: t.color[2],
				ColorA: t.color[3],
			})
		}
		r.indices = append(r.indices, base, base+1, base+2)
		r.triangles++
	}
	r.submit(dst)
	r.flushScreenshots(dst)
}

func (r *Renderer) submit(dst *ebiten.Image) {
	if len(r.indices) == 0 {
		return
	}
	if r.white == nil {
		r.white = ebiten.NewImage(1, 1)
		r.white.Fill(color.White)
	}
	dst.DrawTriangles(r.vertices, r.indices, r.white, &ebiten.DrawTrianglesOptions{})
	r.vertices = r.vertices[:0]
	r.indices = r.indices[:0]
}
