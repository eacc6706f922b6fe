// Package preview draws a quartz world to an [Ebitengine] screen.
//
// It is a CPU rasterization aid for examples and debugging, not a renderer:
// primitives from a [quartz.RenderPass] are projected with the pass camera,
// flat shaded, sorted back to front and submitted through
// ebiten.Image.DrawTriangles. There is no depth buffer, so intersecting
// geometry can sort incorrectly.
//
//	w, _ := quartz.NewWorld(quartz.DefaultConfig())
//	// ... build entities, set a current camera ...
//	pass := w.NewRenderPass("main")
//	pass.AddEntities(w.Entities().Entities()...)
//	err := preview.Run(w, pass, preview.RunConfig{Title: "scene", Width: 800, Height: 600})
//
// [Ebitengine]: https://ebitengine.org
package preview
