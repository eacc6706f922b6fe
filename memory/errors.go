package memory

import "errors"

// Allocation and copy failures. Callers match them with errors.Is; the
// returned errors wrap these with the buffer name and sizes involved.
var (
	ErrInsufficientSpace     = errors.New("memory: insufficient space")
	ErrInvalidDescriptor     = errors.New("memory: invalid descriptor")
	ErrInvalidStride         = errors.New("memory: byte stride smaller than element size")
	ErrMisaligned            = errors.New("memory: misaligned offset")
	ErrOverlap               = errors.New("memory: view overlaps an existing view")
	ErrShapeMismatch         = errors.New("memory: accessor shape mismatch")
	ErrComponentTypeMismatch = errors.New("memory: component type mismatch")
	ErrSparseAlreadyApplied  = errors.New("memory: sparse overrides already applied")
)
