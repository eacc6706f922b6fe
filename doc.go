// Package quartz is the core of a 3D engine: an entity/component model, a
// transform hierarchy and a typed memory arena that component data lives in.
//
// # Quick start
//
// A [World] owns everything. Create one from a [Config], then create entities
// and attach components to them:
//
//	w, err := quartz.NewWorld(quartz.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	parent, _ := w.CreateEntityWith(quartz.TIDTransform, quartz.TIDSceneGraph)
//	child, _ := w.CreateEntityWith(quartz.TIDTransform, quartz.TIDSceneGraph)
//	parent.SceneGraph().AddChild(child.SceneGraph())
//
//	parent.Transform().SetTranslate(mgl32.Vec3{1, 0, 0})
//	child.Transform().SetTranslate(mgl32.Vec3{0, 2, 0})
//	pos := child.SceneGraph().WorldPosition() // (1, 2, 0)
//
// Call [World.Process] once per frame to bring every world matrix up to date
// before a renderer reads them.
//
// # Memory
//
// Component fields that feed the GPU are not Go struct fields. Each member of
// a [ComponentType] is an accessor into one of the buffers owned by the
// [MemoryManager] (see package memory), sized for the type's MaxCount, and a
// component's SID is its element index in every member accessor. Sizes come
// from [MemoryConfig] size classes; exhausting a buffer or the pool is
// reported as an error, never a panic.
//
// # Components
//
// Built-in types have fixed TIDs: [TIDTransform], [TIDSceneGraph], [TIDMesh],
// [TIDCamera] and [TIDSkeletal]. Custom types are registered with
// [RegisterComponent] and attached with [AddComponentToEntity]. An entity
// holds at most one component per TID.
//
// # Scene graph
//
// [SceneGraphComponent] links entities into trees. World matrices are
// computed lazily: any transform write or reparent marks the affected subtree
// dirty and the next read recomputes from the highest dirty ancestor.
// [RenderPass] walks trees depth first and emits one [DrawCommand] per mesh
// primitive.
//
// # Loading
//
// [World.BuildScene] turns a [SceneDesc] (usually parsed from YAML) into
// entities. Buffer sources are fetched concurrently; meshes, skins and
// links that fail are reported in the [LoadReport] and the rest of the scene
// is still built.
//
// # Integration
//
// Tweens (via [gween]) animate transforms with [TweenTranslate],
// [TweenScale] and [TweenRotation]. Lifecycle events reach an [EventSink];
// quartz/ecs mirrors them into a [Donburi] world. quartz/preview draws a
// render pass with [Ebitengine].
//
// [gween]: https://github.com/tanema/gween
// [Donburi]: https://github.com/yohamta/donburi
// [Ebitengine]: https://ebitengine.org
package quartz
