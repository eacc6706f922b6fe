package preview

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/phanxgames/quartz"
)

// RunConfig configures the preview window.
type RunConfig struct {
	Title   string
	Width   int
	Height  int
	ShowFPS bool
	// Update runs once per tick before the world is processed. A non-nil
	// error stops the game.
	Update func(dt float32) error
}

// Game adapts a world and a render pass to ebiten.Game.
type Game struct {
	World    *quartz.World
	Pass     *quartz.RenderPass
	Renderer *Renderer
	cfg      RunConfig
	fpsImage *ebiten.Image
	fpsAge   float32
}

// NewGame returns a game drawing pass with a default Renderer.
func NewGame(w *quartz.World, pass *quartz.RenderPass, cfg RunConfig) *Game {
	return &Game{World: w, Pass: pass, Renderer: NewRenderer(), cfg: cfg}
}

// Update advances the caller's logic, then the world.
func (g *Game) Update() error {
	dt := float32(1.0 / float64(ebiten.TPS()))
	if g.cfg.Update != nil {
		if err := g.cfg.Update(dt); err != nil {
			return err
		}
	}
	g.World.Process()
	g.fpsAge += dt
	return nil
}

// Draw renders the pass and the optional FPS overlay.
func (g *Game) Draw(screen *ebiten.Image) {
	g.Renderer.Draw(screen, g.Pass)
	if g.cfg.ShowFPS {
		g.drawFPS(screen)
	}
}

// Layout keeps the logical screen equal to the window and updates the
// camera aspect ratio to match.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if cam := g.Pass.CameraOrCurrent(); cam != nil && outsideHeight > 0 {
		cam.SetAspect(float32(outsideWidth) / float32(outsideHeight))
	}
	return outsideWidth, outsideHeight
}

// drawFPS refreshes the overlay about twice a second.
func (g *Game) drawFPS(screen *ebiten.Image) {
	if g.fpsImage == nil {
		g.fpsImage = ebiten.NewImage(140, 48)
		g.fpsAge = 1
	}
	if g.fpsAge >= 0.5 {
		g.fpsAge = 0
		g.fpsImage.Clear()
		g.fpsImage.Fill(color.RGBA{0, 0, 0, 128})
		ebitenutil.DebugPrint(g.fpsImage, fmt.Sprintf("FPS: %.1f\nTPS: %.1f\nTris: %d",
			ebiten.ActualFPS(), ebiten.ActualTPS(), g.Renderer.Triangles()))
	}
	screen.DrawImage(g.fpsImage, nil)
}

// Run opens a window and runs the game until it is closed or Update fails.
func Run(w *quartz.World, pass *quartz.RenderPass, cfg RunConfig) error {
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 600
	}
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(NewGame(w, pass, cfg))
}
