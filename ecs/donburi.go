package ecs

import (
	"slices"

	"github.com/phanxgames/quartz"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// LifecycleEventType is the Donburi event type for quartz lifecycle events.
// Subscribe to this in your ECS systems to receive entity, component and
// hierarchy changes.
var LifecycleEventType = events.NewEventType[quartz.LifecycleEvent]()

// EntityRef mirrors one quartz entity inside the Donburi world.
type EntityRef struct {
	UID quartz.EntityUID
	// Components lists attached TIDs in attach order.
	Components []quartz.ComponentTID
	// Parent is the scene graph parent, or InvalidEntityUID for roots.
	Parent quartz.EntityUID
}

// EntityRefComponent is the Donburi component holding an EntityRef.
var EntityRefComponent = donburi.NewComponentType[EntityRef]()

// DonburiSink is a quartz.EventSink backed by a Donburi world. Events are
// queued with Publish and delivered by events.ProcessAllEvents or
// LifecycleEventType.ProcessEvents; the entity mirror is updated immediately.
type DonburiSink struct {
	world  donburi.World
	mirror map[quartz.EntityUID]donburi.Entity
}

var _ quartz.EventSink = (*DonburiSink)(nil)

// NewDonburiSink creates a sink publishing to world.
func NewDonburiSink(world donburi.World) *DonburiSink {
	return &DonburiSink{world: world, mirror: make(map[quartz.EntityUID]donburi.Entity)}
}

// EmitEvent implements quartz.EventSink.
func (s *DonburiSink) EmitEvent(ev quartz.LifecycleEvent) {
	s.apply(ev)
	LifecycleEventType.Publish(s.world, ev)
}

func (s *DonburiSink) apply(ev quartz.LifecycleEvent) {
	switch ev.Type {
	case quartz.EventEntityCreated:
		e := s.world.Create(EntityRefComponent)
		EntityRefComponent.SetValue(s.world.Entry(e), EntityRef{UID: ev.Entity})
		s.mirror[ev.Entity] = e
	case quartz.EventEntityDeleted:
		if e, ok := s.mirror[ev.Entity]; ok {
			s.world.Remove(e)
			delete(s.mirror, ev.Entity)
		}
	case quartz.EventComponentAttached:
		if ref := s.ref(ev.Entity); ref != nil && !slices.Contains(ref.Components, ev.TID) {
			ref.Components = append(ref.Components, ev.TID)
		}
	case quartz.EventComponentDetached:
		if ref := s.ref(ev.Entity); ref != nil {
			ref.Components = slices.DeleteFunc(ref.Components, func(tid quartz.ComponentTID) bool { return tid == ev.TID })
		}
	case quartz.EventChildAdded:
		if ref := s.ref(ev.Child); ref != nil {
			ref.Parent = ev.Entity
		}
	case quartz.EventChildRemoved:
		if ref := s.ref(ev.Child); ref != nil && ref.Parent == ev.Entity {
			ref.Parent = quartz.InvalidEntityUID
		}
	}
}

func (s *DonburiSink) ref(uid quartz.EntityUID) *EntityRef {
	e, ok := s.mirror[uid]
	if !ok || !s.world.Valid(e) {
		return nil
	}
	return EntityRefComponent.Get(s.world.Entry(e))
}

// Lookup returns the Donburi entity mirroring uid.
func (s *DonburiSink) Lookup(uid quartz.EntityUID) (donburi.Entity, bool) {
	e, ok := s.mirror[uid]
	return e, ok
}

// Ref returns a copy of the mirror record of uid.
func (s *DonburiSink) Ref(uid quartz.EntityUID) (EntityRef, bool) {
	ref := s.ref(uid)
	if ref == nil {
		return EntityRef{}, false
	}
	out := *ref
	out.Components = slices.Clone(ref.Components)
	return out, true
}

// Len returns the number of mirrored entities.
func (s *DonburiSink) Len() int { return len(s.mirror) }
