package quartz

import "errors"

// Allocation failures reported as values. Callers test them with errors.Is.
var (
	ErrPoolExhausted        = errors.New("quartz: memory pool exhausted")
	ErrComponentCapacity    = errors.New("quartz: component type at capacity")
	ErrUnknownComponentType = errors.New("quartz: unknown component type")
	ErrComponentTypeExists  = errors.New("quartz: component type already registered")
	ErrMemoryNotInitialized = errors.New("quartz: memory manager not created")
	ErrInvalidChild         = errors.New("quartz: invalid scene graph child")
	ErrSceneGraphCycle      = errors.New("quartz: adding child would create a cycle")
)
