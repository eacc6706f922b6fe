package quartz

import (
	"reflect"
	"time"

	"go.uber.org/zap"
)

// World is the explicit context that owns the memory manager, the component
// and entity repositories, and the per-frame scene graph update. Everything in
// a World is single threaded.
type World struct {
	cfg        Config
	memory     *MemoryManager
	components *ComponentRepository
	entities   *EntityRepository
	sink       EventSink
	debug      bool
	log        *zap.Logger

	currentCamera *CameraComponent
	frame         uint64
}

// NewWorld creates a world, its memory manager and the built-in component
// types. Fails on an invalid configuration or when the configured buffers
// cannot hold the built-in component pools.
func NewWorld(cfg Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &World{
		cfg:   cfg,
		debug: cfg.Debug,
		log:   Logger().Named("quartz"),
	}
	w.components = newComponentRepository(w, w.log)
	w.entities = newEntityRepository(w, w.components, w.log)
	if _, err := w.CreateMemoryManagerIfNotCreated(cfg.Memory); err != nil {
		return nil, err
	}
	if err := w.registerBuiltinComponents(); err != nil {
		return nil, err
	}
	return w, nil
}

// CreateMemoryManagerIfNotCreated creates the memory manager on first call
// and returns the existing one afterwards, ignoring cfg.
func (w *World) CreateMemoryManagerIfNotCreated(cfg MemoryConfig) (*MemoryManager, error) {
	if w.memory != nil {
		return w.memory, nil
	}
	mm, err := newMemoryManager(cfg, w.log)
	if err != nil {
		return nil, err
	}
	w.memory = mm
	return mm, nil
}

func (w *World) registerBuiltinComponents() error {
	for _, reg := range []struct {
		tid    ComponentTID
		desc   ComponentType
		goType reflect.Type
	}{
		{TIDTransform, transformComponentType(), typeOf[*TransformComponent]()},
		{TIDSceneGraph, sceneGraphComponentType(), typeOf[*SceneGraphComponent]()},
		{TIDMesh, meshComponentType(), typeOf[*MeshComponent]()},
		{TIDCamera, cameraComponentType(), typeOf[*CameraComponent]()},
		{TIDSkeletal, skeletalComponentType(), typeOf[*SkeletalComponent]()},
	} {
		if err := w.components.RegisterComponentTypeWithTID(reg.tid, reg.desc); err != nil {
			return err
		}
		w.components.bindGoType(reg.tid, reg.goType)
	}
	return nil
}

// Memory returns the memory manager.
func (w *World) Memory() *MemoryManager { return w.memory }

// Components returns the component repository.
func (w *World) Components() *ComponentRepository { return w.components }

// Entities returns the entity repository.
func (w *World) Entities() *EntityRepository { return w.entities }

// Config returns the configuration the world was created with.
func (w *World) Config() Config { return w.cfg }

// SetEventSink sets the receiver of lifecycle events. Nil disables forwarding.
func (w *World) SetEventSink(sink EventSink) { w.sink = sink }

// SetDebug enables tree depth and child count warnings and per-frame stats
// logged at debug level.
func (w *World) SetDebug(enabled bool) { w.debug = enabled }

// Frame returns the number of completed Process calls.
func (w *World) Frame() uint64 { return w.frame }

// CreateEntityWith creates an entity and attaches the given component types
// in order. On failure the partially built entity is returned with the error.
func (w *World) CreateEntityWith(tids ...ComponentTID) (*Entity, error) {
	e := w.entities.CreateEntity()
	for _, tid := range tids {
		if _, err := w.entities.TryToAddComponentToEntityByTID(tid, e); err != nil {
			return e, err
		}
	}
	return e, nil
}

// Process runs one frame of core work: stale local Transform matrices and
// the world matrices of every scene graph tree are brought up to date. Hosts
// call it once per rendered frame before reading world matrices or uploading
// the GPUInstanceData buffer.
func (w *World) Process() {
	if !w.debug {
		w.UpdateWorldMatrices()
		w.frame++
		return
	}
	var stats debugStats
	stats.nodeCount, stats.recomputed = w.countDirtyNodes()
	start := time.Now()
	w.UpdateWorldMatrices()
	stats.updateTime = time.Since(start)
	stats.rootCount = len(w.SceneGraphRoots())
	stats.entityCount = w.entities.EntityCount()
	stats.reservedByte = w.memory.ReservedBytes()
	w.debugLog(stats)
	w.frame++
}
