package memory

import "fmt"

// SparseInfo records the overrides baked into an accessor by ApplySparse.
type SparseInfo struct {
	Count   int
	Indices *Accessor
	Values  *Accessor
}

// Sparse returns the sparse overrides applied to a, if any.
func (a *Accessor) Sparse() (SparseInfo, bool) {
	if a.sparse == nil {
		return SparseInfo{}, false
	}
	return *a.sparse, true
}

// ApplySparse overwrites count elements of a: element indices[k] receives
// values[k]. It is a one-time bake run after the dense data is loaded; reads
// never consult the sparse data afterwards.
//
// Panics if a sparse index is outside [0, ElementCount()).
func (a *Accessor) ApplySparse(indices, values *Accessor, count int) error {
	if a.sparse != nil {
		return ErrSparseAlreadyApplied
	}
	if indices.compositionType != Scalar || !indices.componentType.IsInteger() {
		return fmt.Errorf("%w: sparse indices must be integer scalars, got %s/%s",
			ErrShapeMismatch, indices.compositionType, indices.componentType)
	}
	if values.compositionType != a.compositionType {
		return fmt.Errorf("%w: sparse values are %s, accessor is %s",
			ErrShapeMismatch, values.compositionType, a.compositionType)
	}
	if count < 0 || count > indices.count || count > values.count {
		return fmt.Errorf("%w: sparse count %d with %d indices and %d values",
			ErrShapeMismatch, count, indices.count, values.count)
	}
	buf := make([]float32, a.numComponents)
	for k := 0; k < count; k++ {
		values.read(k, buf)
		a.write(indices.readIndex(k), buf)
	}
	a.sparse = &SparseInfo{Count: count, Indices: indices, Values: values}
	return nil
}
