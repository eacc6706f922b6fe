package quartz

import (
	"fmt"

	"github.com/phanxgames/quartz/memory"
)

// ComponentTID identifies a component type.
type ComponentTID uint32

// ComponentSID is the serial index of a component within its type. It is the
// element index into every member accessor of that type.
type ComponentSID uint32

// Built-in component type IDs. User types are assigned IDs from FirstUserTID.
const (
	TIDTransform ComponentTID = 1 + iota
	TIDSceneGraph
	TIDMesh
	TIDCamera
	TIDSkeletal

	FirstUserTID ComponentTID = 16
)

// defaultMaxCount is used when a ComponentType leaves MaxCount at zero.
const defaultMaxCount = 1024

// MemberDesc declares one accessor-backed field of a component type.
type MemberDesc struct {
	Name            string
	Use             memory.BufferUse
	CompositionType memory.CompositionType
	ComponentType   memory.ComponentType
	// Initial is written into the member on attach. Nil leaves zeros.
	Initial []float32
}

// ComponentInit carries what a component constructor needs.
type ComponentInit struct {
	Base  ComponentBase
	World *World
}

// ComponentType describes a component type for registration.
type ComponentType struct {
	Name string
	// MaxCount is the fixed instance capacity. Member accessors are sized for
	// it at registration time.
	MaxCount int
	Members  []MemberDesc
	New      func(init *ComponentInit) Component
}

// Component is a per-entity, per-type capability slot. Concrete types embed
// ComponentBase.
type Component interface {
	ComponentTID() ComponentTID
	ComponentSID() ComponentSID
	EntityUID() EntityUID
	Entity() *Entity
	componentBase() *ComponentBase
}

// attachHook is implemented by components that react to being attached.
type attachHook interface {
	onAttach()
}

// detachHook is implemented by components that release links on detach.
type detachHook interface {
	onDetach()
}

// ComponentBase holds the identity shared by every component. Embed it in
// custom component types.
type ComponentBase struct {
	tid      ComponentTID
	sid      ComponentSID
	entity   *Entity
	ctype    *componentType
	detached bool
}

// ComponentTID returns the component's type ID.
func (b *ComponentBase) ComponentTID() ComponentTID { return b.tid }

// ComponentSID returns the component's serial index within its type.
func (b *ComponentBase) ComponentSID() ComponentSID { return b.sid }

// Entity returns the owning entity.
func (b *ComponentBase) Entity() *Entity { return b.entity }

// EntityUID returns the owning entity's UID.
func (b *ComponentBase) EntityUID() EntityUID { return b.entity.uid }

// IsDetached reports whether the component was removed from its entity.
func (b *ComponentBase) IsDetached() bool { return b.detached }

// Member returns the accessor backing the named member of this component's
// type. Element ComponentSID() of it belongs to this component. Panics on an
// undeclared member name.
func (b *ComponentBase) Member(name string) *memory.Accessor {
	acc, ok := b.ctype.members[name]
	if !ok {
		panic(fmt.Sprintf("quartz: component type %q has no member %q", b.ctype.desc.Name, name))
	}
	return acc
}

func (b *ComponentBase) componentBase() *ComponentBase { return b }

// index is the element index of this component in its member accessors.
func (b *ComponentBase) index() int { return int(b.sid) }
