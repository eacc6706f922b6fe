package quartz

// EventType identifies a lifecycle event.
type EventType uint8

const (
	EventEntityCreated     EventType = iota // CreateEntity returned a new entity
	EventEntityDeleted                      // DeleteEntity released an entity
	EventComponentAttached                  // a component was attached
	EventComponentDetached                  // a component was detached
	EventChildAdded                         // a scene graph node gained a child
	EventChildRemoved                       // a scene graph node lost a child
)

func (t EventType) String() string {
	switch t {
	case EventEntityCreated:
		return "EntityCreated"
	case EventEntityDeleted:
		return "EntityDeleted"
	case EventComponentAttached:
		return "ComponentAttached"
	case EventComponentDetached:
		return "ComponentDetached"
	case EventChildAdded:
		return "ChildAdded"
	case EventChildRemoved:
		return "ChildRemoved"
	default:
		return "Unknown"
	}
}

// LifecycleEvent describes one structural change of the world.
type LifecycleEvent struct {
	Type   EventType
	Entity EntityUID
	// Component fields (valid for attach/detach)
	TID ComponentTID
	SID ComponentSID
	// Hierarchy fields (valid for EventChildAdded, EventChildRemoved);
	// Entity is the parent.
	Child EntityUID
}

// EventSink is the interface for optional ECS integration. When set on a
// World, lifecycle events are forwarded to it synchronously.
type EventSink interface {
	EmitEvent(event LifecycleEvent)
}

func (w *World) emit(ev LifecycleEvent) {
	if w.sink != nil {
		w.sink.EmitEvent(ev)
	}
}
