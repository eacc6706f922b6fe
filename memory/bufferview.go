package memory

import "fmt"

// accessorAlign is the minimum alignment of an accessor offset inside a view.
const accessorAlign = 4

// AccessorDesc describes an Accessor to carve from a BufferView.
type AccessorDesc struct {
	CompositionType CompositionType
	ComponentType   ComponentType
	Count           int
	// ByteStride of zero means the view's stride for interleaved views, or the
	// tight element size otherwise.
	ByteStride  int
	Normalized  bool
	Min         []float32
	Max         []float32
	// ArrayLength repeats the element shape, e.g. a uniform vec4[4]. Zero means 1.
	ArrayLength int
}

// FlexibleAccessorDesc is an AccessorDesc whose stride is derived from the
// element size padded to Alignment bytes.
type FlexibleAccessorDesc struct {
	AccessorDesc
	Alignment int
}

// BufferView is a byte range of a Buffer. It hands out Accessors either
// sequentially or at explicit offsets.
type BufferView struct {
	buffer             *Buffer
	byteOffsetInBuffer int
	byteLength         int
	byteStride         int
	takenBytes         int
	accessors          []*Accessor
}

// Buffer returns the owning buffer.
func (v *BufferView) Buffer() *Buffer { return v.buffer }

// ByteOffsetInBuffer returns the view's start within its buffer.
func (v *BufferView) ByteOffsetInBuffer() int { return v.byteOffsetInBuffer }

// ByteLength returns the size of the view.
func (v *BufferView) ByteLength() int { return v.byteLength }

// ByteStride returns the interleave stride, or 0 for tightly packed views.
func (v *BufferView) ByteStride() int { return v.byteStride }

// IsInterleaved reports whether several attributes share one stride.
func (v *BufferView) IsInterleaved() bool { return v.byteStride != 0 }

// TakenBytes returns the view's allocation cursor.
func (v *BufferView) TakenBytes() int { return v.takenBytes }

// RemainingBytes returns the bytes left after the cursor.
func (v *BufferView) RemainingBytes() int { return v.byteLength - v.takenBytes }

// Accessors returns the accessors in allocation order. The returned slice
// MUST NOT be mutated by the caller.
func (v *BufferView) Accessors() []*Accessor { return v.accessors }

// TakeAccessor carves an accessor at the view cursor.
//
// In a tightly packed view the accessor occupies Count*stride bytes. In an
// interleaved view each accessor claims the next attribute slot inside the
// shared stride and spans the whole view.
func (v *BufferView) TakeAccessor(desc AccessorDesc) (*Accessor, error) {
	elem, stride, err := v.resolveLayout(desc)
	if err != nil {
		return nil, err
	}
	offset := AlignUp(v.takenBytes, max(accessorAlign, desc.ComponentType.ByteSize()))
	if v.IsInterleaved() {
		if offset+elem > v.byteStride {
			return nil, fmt.Errorf("%w: interleaved slot at %d needs %d bytes, stride is %d",
				ErrInsufficientSpace, offset, elem, v.byteStride)
		}
		if err := v.checkFits(offset, elem, stride, desc.Count); err != nil {
			return nil, err
		}
		v.takenBytes = offset + elem
		return v.addAccessor(offset, stride, desc), nil
	}
	need := desc.Count * stride
	if offset+need > v.byteLength {
		return nil, fmt.Errorf("%w: view of %d bytes needs %d at offset %d",
			ErrInsufficientSpace, v.byteLength, need, offset)
	}
	v.takenBytes = offset + need
	return v.addAccessor(offset, stride, desc), nil
}

// TakeAccessorWithByteOffset places an accessor at an explicit offset inside
// the view, as glTF accessors sharing an interleaved view do.
func (v *BufferView) TakeAccessorWithByteOffset(desc AccessorDesc, byteOffsetInBufferView int) (*Accessor, error) {
	elem, stride, err := v.resolveLayout(desc)
	if err != nil {
		return nil, err
	}
	if byteOffsetInBufferView < 0 {
		return nil, fmt.Errorf("%w: negative accessor offset %d", ErrInvalidDescriptor, byteOffsetInBufferView)
	}
	if byteOffsetInBufferView%desc.ComponentType.ByteSize() != 0 {
		return nil, fmt.Errorf("%w: accessor offset %d for %s", ErrMisaligned, byteOffsetInBufferView, desc.ComponentType)
	}
	if err := v.checkFits(byteOffsetInBufferView, elem, stride, desc.Count); err != nil {
		return nil, err
	}
	end := byteOffsetInBufferView + elem
	if !v.IsInterleaved() {
		end = byteOffsetInBufferView + desc.Count*stride
		if end > v.byteLength {
			end = v.byteLength
		}
	}
	if end > v.takenBytes {
		v.takenBytes = end
	}
	return v.addAccessor(byteOffsetInBufferView, stride, desc), nil
}

// TakeFlexibleAccessor carves an accessor whose stride is the element size
// rounded up to desc.Alignment, so a float Vec3 aligned to 16 occupies 16
// bytes per element.
func (v *BufferView) TakeFlexibleAccessor(desc FlexibleAccessorDesc) (*Accessor, error) {
	if desc.Alignment <= 0 {
		return nil, fmt.Errorf("%w: alignment %d", ErrInvalidDescriptor, desc.Alignment)
	}
	ad := desc.AccessorDesc
	ad.ByteStride = AlignUp(elementByteSize(ad), desc.Alignment)
	return v.TakeAccessor(ad)
}

func (v *BufferView) resolveLayout(desc AccessorDesc) (elem, stride int, err error) {
	if desc.Count <= 0 {
		return 0, 0, fmt.Errorf("%w: count %d", ErrInvalidDescriptor, desc.Count)
	}
	if desc.ComponentType.ByteSize() == 0 || desc.CompositionType.NumComponents() == 0 {
		return 0, 0, fmt.Errorf("%w: %s/%s", ErrInvalidDescriptor, desc.CompositionType, desc.ComponentType)
	}
	if desc.ArrayLength < 0 || desc.ByteStride < 0 {
		return 0, 0, fmt.Errorf("%w: array length %d, stride %d", ErrInvalidDescriptor, desc.ArrayLength, desc.ByteStride)
	}
	elem = elementByteSize(desc)
	stride = desc.ByteStride
	if stride == 0 {
		stride = v.byteStride
	}
	if stride == 0 {
		stride = elem
	}
	if stride < elem {
		return 0, 0, fmt.Errorf("%w: stride %d, element %d bytes", ErrInvalidStride, stride, elem)
	}
	return elem, stride, nil
}

func (v *BufferView) checkFits(offset, elem, stride, count int) error {
	last := offset + (count-1)*stride + elem
	if last > v.byteLength {
		return fmt.Errorf("%w: view of %d bytes, accessor ends at %d",
			ErrInsufficientSpace, v.byteLength, last)
	}
	return nil
}

func (v *BufferView) addAccessor(offset, stride int, desc AccessorDesc) *Accessor {
	arrayLength := desc.ArrayLength
	if arrayLength == 0 {
		arrayLength = 1
	}
	a := &Accessor{
		view:                   v,
		byteOffsetInBufferView: offset,
		compositionType:        desc.CompositionType,
		componentType:          desc.ComponentType,
		count:                  desc.Count,
		byteStride:             stride,
		normalized:             desc.Normalized,
		arrayLength:            arrayLength,
		numComponents:          desc.CompositionType.NumComponents() * arrayLength,
		componentSize:          desc.ComponentType.ByteSize(),
		min:                    append([]float32(nil), desc.Min...),
		max:                    append([]float32(nil), desc.Max...),
	}
	v.accessors = append(v.accessors, a)
	return a
}

func elementByteSize(desc AccessorDesc) int {
	n := desc.ArrayLength
	if n == 0 {
		n = 1
	}
	return desc.CompositionType.NumComponents() * desc.ComponentType.ByteSize() * n
}
