package quartz

// EntityUID identifies an entity. UIDs start at 1, increase monotonically
// and are never reused within a World.
type EntityUID uint32

// InvalidEntityUID is the zero UID, never assigned to an entity.
const InvalidEntityUID EntityUID = 0

// Entity is an identifier plus the components attached to it, at most one per
// TID. An entity has no behavior of its own; callers ask for a capability with
// the typed accessors (Transform, SceneGraph, ...) which return nil when the
// capability is absent.
type Entity struct {
	uid        EntityUID
	name       string
	alive      bool
	components []Component // indexed by TID
}

// UID returns the entity's identifier.
func (e *Entity) UID() EntityUID { return e.uid }

// Name returns the entity's name, or "" if unnamed.
func (e *Entity) Name() string { return e.name }

// IsAlive reports whether the entity has not been deleted.
func (e *Entity) IsAlive() bool { return e.alive }

// Component returns the component of tid, or nil.
func (e *Entity) Component(tid ComponentTID) Component {
	if int(tid) >= len(e.components) {
		return nil
	}
	return e.components[tid]
}

// HasComponent reports whether a component of tid is attached.
func (e *Entity) HasComponent(tid ComponentTID) bool {
	return e.Component(tid) != nil
}

// ComponentTIDs returns the TIDs of attached components in ascending order.
func (e *Entity) ComponentTIDs() []ComponentTID {
	var out []ComponentTID
	for tid, c := range e.components {
		if c != nil {
			out = append(out, ComponentTID(tid))
		}
	}
	return out
}

// NumComponents returns the number of attached components.
func (e *Entity) NumComponents() int {
	n := 0
	for _, c := range e.components {
		if c != nil {
			n++
		}
	}
	return n
}

// Transform returns the Transform capability, or nil.
func (e *Entity) Transform() *TransformComponent {
	c, _ := e.Component(TIDTransform).(*TransformComponent)
	return c
}

// SceneGraph returns the SceneGraph capability, or nil.
func (e *Entity) SceneGraph() *SceneGraphComponent {
	c, _ := e.Component(TIDSceneGraph).(*SceneGraphComponent)
	return c
}

// Mesh returns the Mesh capability, or nil.
func (e *Entity) Mesh() *MeshComponent {
	c, _ := e.Component(TIDMesh).(*MeshComponent)
	return c
}

// Camera returns the Camera capability, or nil.
func (e *Entity) Camera() *CameraComponent {
	c, _ := e.Component(TIDCamera).(*CameraComponent)
	return c
}

// Skeletal returns the Skeletal capability, or nil.
func (e *Entity) Skeletal() *SkeletalComponent {
	c, _ := e.Component(TIDSkeletal).(*SkeletalComponent)
	return c
}

// GetComponent returns the attached component of Go type C.
func GetComponent[C Component](e *Entity) (C, bool) {
	for _, c := range e.components {
		if typed, ok := c.(C); ok {
			return typed, true
		}
	}
	var zero C
	return zero, false
}

func (e *Entity) setComponent(tid ComponentTID, c Component) {
	if int(tid) >= len(e.components) {
		grown := make([]Component, int(tid)+1)
		copy(grown, e.components)
		e.components = grown
	}
	e.components[tid] = c
}
