package quartz

import (
	"github.com/go-gl/mathgl/mgl32"
)

// DrawCommand is a single draw instruction emitted by a render pass.
type DrawCommand struct {
	Entity         *Entity
	WorldMatrix    mgl32.Mat4
	Primitive      *Primitive
	PrimitiveIndex int
	treeOrder      int // position of Entity in the pass traversal
}

// TreeOrder returns the position of the command's entity in the depth-first
// traversal of the pass.
func (c DrawCommand) TreeOrder() int { return c.treeOrder }

// RenderPass collects mesh entities for drawing. Entities are visited in
// depth-first pre-order of the scene graph starting from the added entities,
// so a parent is immediately followed by its whole subtree.
type RenderPass struct {
	Name string
	// Camera overrides the world's current camera when non-nil.
	Camera *CameraComponent
	// CullEnabled skips meshes whose world AABB lies outside the camera
	// frustum. Ignored when no camera is available.
	CullEnabled bool

	world    *World
	roots    []*Entity
	seen     map[EntityUID]struct{}
	entities []*Entity
	commands []DrawCommand
}

// NewRenderPass creates an empty pass.
func (w *World) NewRenderPass(name string) *RenderPass {
	return &RenderPass{Name: name, world: w, seen: make(map[EntityUID]struct{})}
}

// AddEntities appends traversal roots. An entity without a scene graph
// contributes only itself.
func (p *RenderPass) AddEntities(entities ...*Entity) {
	for _, e := range entities {
		if e != nil {
			p.roots = append(p.roots, e)
		}
	}
}

// ClearEntities removes every root.
func (p *RenderPass) ClearEntities() { p.roots = p.roots[:0] }

// Roots returns the added entities. The returned slice MUST NOT be mutated by the caller.
func (p *RenderPass) Roots() []*Entity { return p.roots }

// CameraOrCurrent returns the pass camera, falling back to the world's.
func (p *RenderPass) CameraOrCurrent() *CameraComponent {
	if p.Camera != nil {
		return p.Camera
	}
	return p.world.currentCamera
}

// Collect updates world matrices and returns the live mesh entities reachable
// from the roots, each once, in traversal order. The returned slice is reused
// by the next call.
func (p *RenderPass) Collect() []*Entity {
	p.world.UpdateWorldMatrices()
	p.entities = p.entities[:0]
	clear(p.seen)
	visit := func(e *Entity) {
		if !e.alive {
			return
		}
		if _, dup := p.seen[e.uid]; dup {
			return
		}
		p.seen[e.uid] = struct{}{}
		if e.Mesh() != nil {
			p.entities = append(p.entities, e)
		}
	}
	for _, root := range p.roots {
		sg := root.SceneGraph()
		if sg == nil {
			visit(root)
			continue
		}
		sg.Walk(func(n *SceneGraphComponent) bool {
			visit(n.entity)
			return true
		})
	}
	return p.entities
}

// Commands returns one DrawCommand per primitive of every collected entity,
// in traversal order. The returned slice is reused by the next call.
func (p *RenderPass) Commands() []DrawCommand {
	entities := p.Collect()
	p.commands = p.commands[:0]
	var viewProj mgl32.Mat4
	cull := false
	if cam := p.CameraOrCurrent(); p.CullEnabled && cam != nil {
		viewProj = cam.ViewProjectionMatrix()
		cull = true
	}
	for order, e := range entities {
		world := entityWorldMatrix(e)
		mesh := e.Mesh()
		if cull && outsideFrustum(mesh.AABB().Transform(world), viewProj) {
			continue
		}
		for i, prim := range mesh.primitives {
			p.commands = append(p.commands, DrawCommand{
				Entity:         e,
				WorldMatrix:    world,
				Primitive:      prim,
				PrimitiveIndex: i,
				treeOrder:      order,
			})
		}
	}
	return p.commands
}

// entityWorldMatrix returns the scene graph world matrix, the local
// transform for entities outside any tree, or identity.
func entityWorldMatrix(e *Entity) mgl32.Mat4 {
	if sg := e.SceneGraph(); sg != nil {
		return sg.WorldMatrix()
	}
	if t := e.Transform(); t != nil {
		return t.Matrix()
	}
	return mgl32.Ident4()
}

// outsideFrustum reports whether every corner of box lies beyond the same
// clip plane. Empty boxes are never culled.
func outsideFrustum(box AABB, viewProj mgl32.Mat4) bool {
	if box.IsEmpty() {
		return false
	}
	var clip [8]mgl32.Vec4
	for i := range clip {
		c := box.Min
		if i&1 != 0 {
			c[0] = box.Max[0]
		}
		if i&2 != 0 {
			c[1] = box.Max[1]
		}
		if i&4 != 0 {
			c[2] = box.Max[2]
		}
		clip[i] = viewProj.Mul4x1(c.Vec4(1))
	}
	for axis := 0; axis < 3; axis++ {
		allBelow, allAbove := true, true
		for _, v := range clip {
			if v[axis] >= -v[3] {
				allBelow = false
			}
			if v[axis] <= v[3] {
				allAbove = false
			}
		}
		if allBelow || allAbove {
			return true
		}
	}
	return false
}
