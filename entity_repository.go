package quartz

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// EntityRepository creates entities and attaches components to them. It is
// append-only: deleted entities keep their slot and their UID is not reused.
type EntityRepository struct {
	world      *World
	components *ComponentRepository
	entities   []*Entity // index = UID; slot 0 unused
	live       int
	names      map[uint64][]EntityUID
	log        *zap.Logger
}

func newEntityRepository(w *World, components *ComponentRepository, log *zap.Logger) *EntityRepository {
	return &EntityRepository{
		world:      w,
		components: components,
		entities:   make([]*Entity, 1, 256),
		names:      make(map[uint64][]EntityUID),
		log:        log,
	}
}

// CreateEntity allocates a new entity with no components.
func (r *EntityRepository) CreateEntity() *Entity {
	e := &Entity{uid: EntityUID(len(r.entities)), alive: true}
	r.entities = append(r.entities, e)
	r.live++
	r.world.emit(LifecycleEvent{Type: EventEntityCreated, Entity: e.uid})
	return e
}

// TryToAddComponentToEntityByTID attaches a new component of tid to e and
// returns e. If e already has a component of tid nothing happens and e is
// returned unchanged, so repeated calls are interchangeable.
//
// Fails with ErrUnknownComponentType or ErrComponentCapacity. Panics if e was
// deleted.
func (r *EntityRepository) TryToAddComponentToEntityByTID(tid ComponentTID, e *Entity) (*Entity, error) {
	r.mustBeAlive(e, "TryToAddComponentToEntityByTID")
	if e.HasComponent(tid) {
		return e, nil
	}
	c, err := r.components.create(tid, e)
	if err != nil {
		return e, err
	}
	e.setComponent(tid, c)
	if h, ok := c.(attachHook); ok {
		h.onAttach()
	}
	r.world.emit(LifecycleEvent{
		Type: EventComponentAttached, Entity: e.uid,
		TID: tid, SID: c.ComponentSID(),
	})
	return e, nil
}

// AddComponentToEntity attaches the component type bound to C and returns
// the attached component, existing or new.
func AddComponentToEntity[C Component](r *EntityRepository, e *Entity) (C, error) {
	var zero C
	tid, ok := r.components.byType[typeOf[C]()]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnknownComponentType, typeOf[C]())
	}
	if _, err := r.TryToAddComponentToEntityByTID(tid, e); err != nil {
		return zero, err
	}
	c, _ := e.Component(tid).(C)
	return c, nil
}

// GetComponentsWithType returns live components of Go type C in ascending
// SID order.
func GetComponentsWithType[C Component](r *EntityRepository) []C {
	tid, ok := r.components.byType[typeOf[C]()]
	if !ok {
		return nil
	}
	all := r.components.ComponentsWithTID(tid)
	out := make([]C, 0, len(all))
	for _, c := range all {
		out = append(out, c.(C))
	}
	return out
}

// ComponentsWithTID returns live components of tid in ascending SID order.
func (r *EntityRepository) ComponentsWithTID(tid ComponentTID) []Component {
	return r.components.ComponentsWithTID(tid)
}

// RemoveComponentFromEntity detaches the component of tid from e. Detaching a
// component that is not attached is a logic error and panics.
func (r *EntityRepository) RemoveComponentFromEntity(tid ComponentTID, e *Entity) {
	c := e.Component(tid)
	if c == nil {
		panic(fmt.Sprintf("quartz: entity %d has no component with TID %d to detach", e.uid, tid))
	}
	if h, ok := c.(detachHook); ok {
		h.onDetach()
	}
	e.components[tid] = nil
	r.components.release(c)
	r.world.emit(LifecycleEvent{
		Type: EventComponentDetached, Entity: e.uid,
		TID: tid, SID: c.ComponentSID(),
	})
}

// DeleteEntity detaches every component of e and marks it dead. Deleting a
// dead entity is a no-op.
func (r *EntityRepository) DeleteEntity(e *Entity) {
	if !e.alive {
		return
	}
	for i := len(e.components) - 1; i >= 0; i-- {
		if e.components[i] != nil {
			r.RemoveComponentFromEntity(ComponentTID(i), e)
		}
	}
	r.unindexName(e)
	e.alive = false
	r.live--
	r.world.emit(LifecycleEvent{Type: EventEntityDeleted, Entity: e.uid})
}

// GetEntity returns the entity with uid, or nil. Deleted entities are
// returned too; check IsAlive.
func (r *EntityRepository) GetEntity(uid EntityUID) *Entity {
	if uid == InvalidEntityUID || int(uid) >= len(r.entities) {
		return nil
	}
	return r.entities[uid]
}

// EntityCount returns the number of live entities.
func (r *EntityRepository) EntityCount() int { return r.live }

// Entities returns live entities in ascending UID order.
func (r *EntityRepository) Entities() []*Entity {
	out := make([]*Entity, 0, r.live)
	for _, e := range r.entities[1:] {
		if e.alive {
			out = append(out, e)
		}
	}
	return out
}

// SetEntityName names e and indexes it for FindByName. Names need not be unique.
func (r *EntityRepository) SetEntityName(e *Entity, name string) {
	r.unindexName(e)
	e.name = name
	if name == "" {
		return
	}
	h := xxhash.Sum64String(name)
	r.names[h] = append(r.names[h], e.uid)
}

// FindByName returns live entities named name, in the order they were named.
func (r *EntityRepository) FindByName(name string) []*Entity {
	var out []*Entity
	for _, uid := range r.names[xxhash.Sum64String(name)] {
		if e := r.entities[uid]; e.alive && e.name == name {
			out = append(out, e)
		}
	}
	return out
}

func (r *EntityRepository) unindexName(e *Entity) {
	if e.name == "" {
		return
	}
	h := xxhash.Sum64String(e.name)
	uids := r.names[h]
	for i, uid := range uids {
		if uid == e.uid {
			uids = append(uids[:i], uids[i+1:]...)
			break
		}
	}
	if len(uids) == 0 {
		delete(r.names, h)
	} else {
		r.names[h] = uids
	}
}

func (r *EntityRepository) mustBeAlive(e *Entity, op string) {
	if e == nil {
		panic("quartz: " + op + " on nil entity")
	}
	if !e.alive {
		panic(fmt.Sprintf("quartz: %s on deleted entity %d", op, e.uid))
	}
}
