// Package ecs bridges quartz lifecycle events into a [Donburi] world.
//
// [NewDonburiSink] publishes every quartz LifecycleEvent as a typed Donburi
// event and mirrors each live quartz entity as a Donburi entity carrying an
// [EntityRef], so Donburi systems can query what the quartz world holds.
//
// Usage:
//
//	sink := ecs.NewDonburiSink(dw)
//	world.SetEventSink(sink)
//	ecs.LifecycleEventType.Subscribe(dw, onLifecycle)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
