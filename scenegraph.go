package quartz

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/phanxgames/quartz/memory"
)

const memberWorldMatrix = "worldMatrix"

func sceneGraphComponentType() ComponentType {
	return ComponentType{
		Name: "SceneGraph",
		Members: []MemberDesc{
			{
				Name:            memberWorldMatrix,
				Use:             memory.GPUInstanceData,
				CompositionType: memory.Mat4,
				ComponentType:   memory.Float,
				Initial:         identityM4,
			},
		},
		New: newSceneGraphComponent,
	}
}

// SceneGraphComponent links entities into a tree and caches each node's world
// matrix in the GPUInstanceData buffer.
//
// The parent pointer is non-owning and the children slice holds references
// only; the tree owns no entities. A node's world matrix is parent world ·
// local, where local comes from the entity's TransformComponent (identity if
// it has none). World matrices are computed on demand: writes mark the
// affected subtree dirty and reads recompute from the highest dirty ancestor
// down.
type SceneGraphComponent struct {
	ComponentBase

	world       *World
	worldMatrix *memory.Accessor

	parent   *SceneGraphComponent
	children []*SceneGraphComponent

	worldDirty bool
}

func newSceneGraphComponent(init *ComponentInit) Component {
	sg := &SceneGraphComponent{ComponentBase: init.Base, world: init.World, worldDirty: true}
	sg.worldMatrix = sg.Member(memberWorldMatrix)
	return sg
}

// onDetach unlinks the node from its parent and orphans its children, which
// become roots of their own trees.
func (sg *SceneGraphComponent) onDetach() {
	sg.RemoveFromParent()
	for len(sg.children) > 0 {
		sg.RemoveChild(sg.children[len(sg.children)-1])
	}
}

// --- Tree manipulation ---

// AddChild appends child to this node's children. If child already has a
// parent it is removed from that parent first. Panics if child is nil, is this
// node, is an ancestor of this node, or either node has been detached; use
// TryAddChild to get those failures as errors.
func (sg *SceneGraphComponent) AddChild(child *SceneGraphComponent) {
	if err := sg.TryAddChild(child); err != nil {
		panic(err)
	}
}

// TryAddChild is AddChild returning ErrInvalidChild or ErrSceneGraphCycle
// instead of panicking. The tree is unchanged on error.
func (sg *SceneGraphComponent) TryAddChild(child *SceneGraphComponent) error {
	if err := sg.checkChild(child); err != nil {
		return err
	}
	sg.link(child, len(sg.children))
	return nil
}

// AddChildAt inserts child at index among this node's children, with the
// same reparenting and checks as AddChild. Panics if index is out of
// [0, NumChildren()].
func (sg *SceneGraphComponent) AddChildAt(child *SceneGraphComponent, index int) {
	if err := sg.checkChild(child); err != nil {
		panic(err)
	}
	if index < 0 || index > len(sg.children) {
		panic("quartz: child index out of range")
	}
	sg.link(child, index)
}

func (sg *SceneGraphComponent) checkChild(child *SceneGraphComponent) error {
	switch {
	case child == nil:
		return fmt.Errorf("%w: nil", ErrInvalidChild)
	case child == sg:
		return fmt.Errorf("%w: entity %d cannot be its own child", ErrInvalidChild, sg.entity.uid)
	case sg.detached || child.detached:
		return fmt.Errorf("%w: detached scene graph component", ErrInvalidChild)
	case isAncestor(child, sg):
		return fmt.Errorf("%w: entity %d is an ancestor of entity %d",
			ErrSceneGraphCycle, child.entity.uid, sg.entity.uid)
	}
	return nil
}

func (sg *SceneGraphComponent) link(child *SceneGraphComponent, index int) {
	if old := child.parent; old != nil {
		old.removeChildByPtr(child)
		child.parent = nil
		sg.world.emit(LifecycleEvent{Type: EventChildRemoved, Entity: old.entity.uid, Child: child.entity.uid})
	}
	if index > len(sg.children) {
		index = len(sg.children)
	}
	child.parent = sg
	sg.children = append(sg.children, nil)
	copy(sg.children[index+1:], sg.children[index:])
	sg.children[index] = child
	child.markSubtreeDirty()
	sg.world.emit(LifecycleEvent{Type: EventChildAdded, Entity: sg.entity.uid, Child: child.entity.uid})
	if sg.world.debug {
		sg.world.debugCheckTreeDepth(child)
		sg.world.debugCheckChildCount(sg)
	}
}

// RemoveChild detaches child from this node. No-op if child is not a child of
// this node.
func (sg *SceneGraphComponent) RemoveChild(child *SceneGraphComponent) {
	if child == nil || child.parent != sg {
		return
	}
	sg.removeChildByPtr(child)
	child.parent = nil
	child.markSubtreeDirty()
	sg.world.emit(LifecycleEvent{Type: EventChildRemoved, Entity: sg.entity.uid, Child: child.entity.uid})
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (sg *SceneGraphComponent) RemoveFromParent() {
	if sg.parent == nil {
		return
	}
	sg.parent.RemoveChild(sg)
}

// Parent returns the parent node, or nil for a root.
func (sg *SceneGraphComponent) Parent() *SceneGraphComponent { return sg.parent }

// Children returns the child list. The returned slice MUST NOT be mutated by the caller.
func (sg *SceneGraphComponent) Children() []*SceneGraphComponent { return sg.children }

// NumChildren returns the number of children.
func (sg *SceneGraphComponent) NumChildren() int { return len(sg.children) }

// IsRoot reports whether the node has no parent.
func (sg *SceneGraphComponent) IsRoot() bool { return sg.parent == nil }

// Depth returns the number of ancestors; a root has depth 0.
func (sg *SceneGraphComponent) Depth() int {
	d := 0
	for p := sg.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Root returns the topmost ancestor, or the node itself.
func (sg *SceneGraphComponent) Root() *SceneGraphComponent {
	n := sg
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// --- World matrix ---

// IsWorldDirty reports whether the cached world matrix is stale.
func (sg *SceneGraphComponent) IsWorldDirty() bool { return sg.worldDirty }

// markWorldDirty invalidates this node and its descendants. A clean node only
// exists below clean ancestors, so an already dirty node has an already dirty
// subtree and the walk stops there.
func (sg *SceneGraphComponent) markWorldDirty() {
	if sg.worldDirty {
		return
	}
	sg.markSubtreeDirty()
}

func (sg *SceneGraphComponent) markSubtreeDirty() {
	sg.worldDirty = true
	for _, c := range sg.children {
		if !c.worldDirty {
			c.markSubtreeDirty()
		}
	}
}

// LocalMatrix returns the entity's Transform matrix, or identity.
func (sg *SceneGraphComponent) LocalMatrix() mgl32.Mat4 {
	if t := sg.entity.Transform(); t != nil {
		return t.Matrix()
	}
	return mgl32.Ident4()
}

// WorldMatrix returns parent world · local, recomputing this node and any
// dirty ancestors first.
func (sg *SceneGraphComponent) WorldMatrix() mgl32.Mat4 {
	if sg.worldDirty {
		return sg.updateWorldMatrix()
	}
	return sg.worldMatrix.GetMat4(sg.index())
}

func (sg *SceneGraphComponent) updateWorldMatrix() mgl32.Mat4 {
	m := sg.LocalMatrix()
	if sg.parent != nil {
		m = sg.parent.WorldMatrix().Mul4(m)
	}
	sg.worldMatrix.SetMat4(sg.index(), m)
	sg.worldDirty = false
	return m
}

// WorldPosition returns the world space origin of this node.
func (sg *SceneGraphComponent) WorldPosition() mgl32.Vec3 {
	m := sg.WorldMatrix()
	return mgl32.Vec3{m[12], m[13], m[14]}
}

// GetWorldPositionOf transforms a point from this node's local space to
// world space.
func (sg *SceneGraphComponent) GetWorldPositionOf(local mgl32.Vec3) mgl32.Vec3 {
	return mgl32.TransformCoordinate(local, sg.WorldMatrix())
}

// GetLocalPositionOf transforms a world space point into this node's local
// space. A singular world matrix maps everything to the origin.
func (sg *SceneGraphComponent) GetLocalPositionOf(world mgl32.Vec3) mgl32.Vec3 {
	inv := sg.WorldMatrix().Inv()
	return mgl32.TransformCoordinate(world, inv)
}

// WorldRotation returns the rotation part of the world matrix.
func (sg *SceneGraphComponent) WorldRotation() mgl32.Quat {
	_, r, _ := decomposeTRS(sg.WorldMatrix())
	return r
}

// WorldScale returns the scale part of the world matrix.
func (sg *SceneGraphComponent) WorldScale() mgl32.Vec3 {
	_, _, s := decomposeTRS(sg.WorldMatrix())
	return s
}

// NormalMatrix returns the inverse transpose of the upper 3x3 of the world
// matrix, for transforming normals. Zero if the matrix is singular.
func (sg *SceneGraphComponent) NormalMatrix() mgl32.Mat3 {
	return sg.WorldMatrix().Mat3().Inv().Transpose()
}

// --- Traversal ---

// Walk visits this node and its descendants depth-first, parents before
// children. Returning false from fn skips that node's children.
func (sg *SceneGraphComponent) Walk(fn func(*SceneGraphComponent) bool) {
	if !fn(sg) {
		return
	}
	for _, c := range sg.children {
		c.Walk(fn)
	}
}

// FlattenHierarchy returns roots and all their descendants in depth-first
// pre-order: every parent is immediately followed by its whole subtree.
func FlattenHierarchy(roots []*SceneGraphComponent) []*SceneGraphComponent {
	var out []*SceneGraphComponent
	for _, r := range roots {
		if r == nil {
			continue
		}
		r.Walk(func(n *SceneGraphComponent) bool {
			out = append(out, n)
			return true
		})
	}
	return out
}

// WorldAABB returns the union of the world space bounds of every mesh in
// this subtree. The result is empty if the subtree has no mesh.
func (sg *SceneGraphComponent) WorldAABB() AABB {
	box := EmptyAABB()
	sg.Walk(func(n *SceneGraphComponent) bool {
		if mesh := n.entity.Mesh(); mesh != nil {
			box = box.Union(mesh.AABB().Transform(n.WorldMatrix()))
		}
		return true
	})
	return box
}

// UpdateWorldMatrices refreshes every stale local Transform matrix, including
// those of entities without a SceneGraph, then brings every dirty world
// matrix up to date with one pre-order pass per root, so each parent is
// resolved before its children. A frame with nothing dirty allocates nothing.
func (w *World) UpdateWorldMatrices() {
	for _, c := range w.components.instancesOf(TIDTransform) {
		if t, ok := c.(*TransformComponent); ok && t.matrixDirty {
			t.Matrix()
		}
	}
	for _, c := range w.components.instancesOf(TIDSceneGraph) {
		if sg, ok := c.(*SceneGraphComponent); ok && sg.parent == nil {
			sg.updateSubtree()
		}
	}
}

func (sg *SceneGraphComponent) updateSubtree() {
	if sg.worldDirty {
		sg.updateWorldMatrix()
	}
	for _, c := range sg.children {
		c.updateSubtree()
	}
}

// SceneGraphRoots returns live scene graph nodes without a parent, in SID
// order.
func (w *World) SceneGraphRoots() []*SceneGraphComponent {
	var out []*SceneGraphComponent
	for _, c := range w.components.ComponentsWithTID(TIDSceneGraph) {
		if sg := c.(*SceneGraphComponent); sg.parent == nil {
			out = append(out, sg)
		}
	}
	return out
}

// --- Helpers ---

// isAncestor reports whether candidate is node or one of its ancestors.
func isAncestor(candidate, node *SceneGraphComponent) bool {
	for p := node; p != nil; p = p.parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from sg.children without clearing
// child.parent.
func (sg *SceneGraphComponent) removeChildByPtr(child *SceneGraphComponent) {
	for i, c := range sg.children {
		if c == child {
			copy(sg.children[i:], sg.children[i+1:])
			sg.children[len(sg.children)-1] = nil
			sg.children = sg.children[:len(sg.children)-1]
			return
		}
	}
}
