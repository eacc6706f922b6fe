package memory

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Accessor is a typed, strided view over a region of a BufferView. Element i
// lives at byteOffsetInBufferView + i*byteStride. Reads and writes go straight
// to the owning Buffer's storage; an Accessor never holds a copy.
type Accessor struct {
	view                   *BufferView
	byteOffsetInBufferView int
	compositionType        CompositionType
	componentType          ComponentType
	count                  int
	byteStride             int
	normalized             bool
	arrayLength            int
	numComponents          int
	componentSize          int
	min, max               []float32
	sparse                 *SparseInfo
	version                uint64
}

// BufferView returns the owning view.
func (a *Accessor) BufferView() *BufferView { return a.view }

// CompositionType returns the element shape.
func (a *Accessor) CompositionType() CompositionType { return a.compositionType }

// ComponentType returns the numeric type of each component.
func (a *Accessor) ComponentType() ComponentType { return a.componentType }

// ElementCount returns the number of addressable elements.
func (a *Accessor) ElementCount() int { return a.count }

// ByteStride returns the distance in bytes between consecutive elements.
func (a *Accessor) ByteStride() int { return a.byteStride }

// ElementByteSize returns the natural byte size of one element.
func (a *Accessor) ElementByteSize() int { return a.numComponents * a.componentSize }

// NumComponents returns the component count of one element, including
// ArrayLength repetition.
func (a *Accessor) NumComponents() int { return a.numComponents }

// ArrayLength returns how many times the composition repeats per element.
func (a *Accessor) ArrayLength() int { return a.arrayLength }

// ByteOffsetInBufferView returns the offset of element 0 inside the view.
func (a *Accessor) ByteOffsetInBufferView() int { return a.byteOffsetInBufferView }

// ByteOffsetInBuffer returns the offset of element 0 inside the buffer.
func (a *Accessor) ByteOffsetInBuffer() int {
	return a.view.byteOffsetInBuffer + a.byteOffsetInBufferView
}

// ByteLength returns the span from the first byte of element 0 to the last
// byte of the final element.
func (a *Accessor) ByteLength() int {
	return (a.count-1)*a.byteStride + a.ElementByteSize()
}

// IsNormalized reports whether integer reads are normalized to [0,1] / [-1,1].
func (a *Accessor) IsNormalized() bool { return a.normalized }

// Min returns the declared or computed per-component minimum.
func (a *Accessor) Min() []float32 { return a.min }

// Max returns the declared or computed per-component maximum.
func (a *Accessor) Max() []float32 { return a.max }

// Version increments on every write. Upload paths compare it to skip clean data.
func (a *Accessor) Version() uint64 { return a.version }

// elementOffset returns the buffer byte offset of element i, panicking when i
// is out of range.
func (a *Accessor) elementOffset(i int) int {
	if i < 0 || i >= a.count {
		panic(fmt.Sprintf("memory: accessor index %d out of range [0,%d)", i, a.count))
	}
	return a.view.byteOffsetInBuffer + a.byteOffsetInBufferView + i*a.byteStride
}

func (a *Accessor) raw() []byte { return a.view.buffer.raw }

// readComponent decodes one component at buffer offset off.
func (a *Accessor) readComponent(off int) float32 {
	raw := a.raw()
	switch a.componentType {
	case Byte:
		v := float32(int8(raw[off]))
		if a.normalized {
			return math32.Max(v/127, -1)
		}
		return v
	case UnsignedByte:
		v := float32(raw[off])
		if a.normalized {
			return v / 255
		}
		return v
	case Short:
		v := float32(int16(binary.LittleEndian.Uint16(raw[off:])))
		if a.normalized {
			return math32.Max(v/32767, -1)
		}
		return v
	case UnsignedShort:
		v := float32(binary.LittleEndian.Uint16(raw[off:]))
		if a.normalized {
			return v / 65535
		}
		return v
	case Int:
		return float32(int32(binary.LittleEndian.Uint32(raw[off:])))
	case UnsignedInt:
		v := binary.LittleEndian.Uint32(raw[off:])
		if a.normalized {
			return float32(float64(v) / 4294967295)
		}
		return float32(v)
	default:
		return math32.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
	}
}

// writeComponent stores v at buffer offset off as the raw component type.
// Integer types truncate toward zero after clamping to the type's range; NaN
// stores zero.
func (a *Accessor) writeComponent(off int, v float32) {
	raw := a.raw()
	switch a.componentType {
	case Byte:
		raw[off] = byte(int8(clampComponent(v, math.MinInt8, math.MaxInt8)))
	case UnsignedByte:
		raw[off] = uint8(clampComponent(v, 0, math.MaxUint8))
	case Short:
		binary.LittleEndian.PutUint16(raw[off:], uint16(int16(clampComponent(v, math.MinInt16, math.MaxInt16))))
	case UnsignedShort:
		binary.LittleEndian.PutUint16(raw[off:], uint16(clampComponent(v, 0, math.MaxUint16)))
	case Int:
		binary.LittleEndian.PutUint32(raw[off:], uint32(int32(clampComponent(v, math.MinInt32, math.MaxInt32))))
	case UnsignedInt:
		binary.LittleEndian.PutUint32(raw[off:], uint32(clampComponent(v, 0, math.MaxUint32)))
	default:
		binary.LittleEndian.PutUint32(raw[off:], math32.Float32bits(v))
	}
}

func clampComponent(v float32, lo, hi float64) float64 {
	f := float64(v)
	switch {
	case f != f:
		return 0
	case f < lo:
		return lo
	case f > hi:
		return hi
	}
	return f
}

// readIndex decodes component 0 of element i as an exact integer, ignoring
// normalization. Float accessors truncate.
func (a *Accessor) readIndex(i int) int {
	off := a.elementOffset(i)
	raw := a.raw()
	switch a.componentType {
	case Byte:
		return int(int8(raw[off]))
	case UnsignedByte:
		return int(raw[off])
	case Short:
		return int(int16(binary.LittleEndian.Uint16(raw[off:])))
	case UnsignedShort:
		return int(binary.LittleEndian.Uint16(raw[off:]))
	case Int:
		return int(int32(binary.LittleEndian.Uint32(raw[off:])))
	case UnsignedInt:
		return int(binary.LittleEndian.Uint32(raw[off:]))
	default:
		return int(math32.Float32frombits(binary.LittleEndian.Uint32(raw[off:])))
	}
}

func (a *Accessor) read(i int, dst []float32) {
	off := a.elementOffset(i)
	n := min(len(dst), a.numComponents)
	for c := 0; c < n; c++ {
		dst[c] = a.readComponent(off + c*a.componentSize)
	}
}

func (a *Accessor) write(i int, src []float32) {
	off := a.elementOffset(i)
	n := min(len(src), a.numComponents)
	for c := 0; c < n; c++ {
		a.writeComponent(off+c*a.componentSize, src[c])
	}
	a.version++
}

// GetScalar returns component 0 of element i.
func (a *Accessor) GetScalar(i int) float32 {
	return a.readComponent(a.elementOffset(i))
}

// GetIndex returns component 0 of element i as an integer, without the
// float32 rounding GetScalar applies above 2^24. Use it for index data.
func (a *Accessor) GetIndex(i int) int { return a.readIndex(i) }

// GetVec2 returns the first two components of element i.
func (a *Accessor) GetVec2(i int) mgl32.Vec2 {
	var v mgl32.Vec2
	a.read(i, v[:])
	return v
}

// GetVec3 returns the first three components of element i.
func (a *Accessor) GetVec3(i int) mgl32.Vec3 {
	var v mgl32.Vec3
	a.read(i, v[:])
	return v
}

// GetVec4 returns the first four components of element i.
func (a *Accessor) GetVec4(i int) mgl32.Vec4 {
	var v mgl32.Vec4
	a.read(i, v[:])
	return v
}

// GetQuat reads element i as an x, y, z, w quaternion.
func (a *Accessor) GetQuat(i int) mgl32.Quat {
	v := a.GetVec4(i)
	return mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
}

// GetMat3 returns element i as a column-major 3x3 matrix.
func (a *Accessor) GetMat3(i int) mgl32.Mat3 {
	var m mgl32.Mat3
	a.read(i, m[:])
	return m
}

// GetMat4 returns element i as a column-major 4x4 matrix.
func (a *Accessor) GetMat4(i int) mgl32.Mat4 {
	var m mgl32.Mat4
	a.read(i, m[:])
	return m
}

// GetElement decodes up to len(dst) components of element i into dst.
func (a *Accessor) GetElement(i int, dst []float32) {
	a.read(i, dst)
}

// SetScalar writes component 0 of element i.
func (a *Accessor) SetScalar(i int, v float32) {
	a.writeComponent(a.elementOffset(i), v)
	a.version++
}

// SetVec2 writes the first two components of element i.
func (a *Accessor) SetVec2(i int, v mgl32.Vec2) { a.write(i, v[:]) }

// SetVec3 writes the first three components of element i.
func (a *Accessor) SetVec3(i int, v mgl32.Vec3) { a.write(i, v[:]) }

// SetVec4 writes the first four components of element i.
func (a *Accessor) SetVec4(i int, v mgl32.Vec4) { a.write(i, v[:]) }

// SetQuat writes q as x, y, z, w.
func (a *Accessor) SetQuat(i int, q mgl32.Quat) {
	a.SetVec4(i, mgl32.Vec4{q.V[0], q.V[1], q.V[2], q.W})
}

// SetMat3 writes a column-major 3x3 matrix to element i.
func (a *Accessor) SetMat3(i int, m mgl32.Mat3) { a.write(i, m[:]) }

// SetMat4 writes a column-major 4x4 matrix to element i.
func (a *Accessor) SetMat4(i int, m mgl32.Mat4) { a.write(i, m[:]) }

// SetElement writes up to len(src) components of element i.
func (a *Accessor) SetElement(i int, src []float32) { a.write(i, src) }

// SetScalarNormalized encodes a normalized value into the integer range of
// the component type, rounding and clamping. Float accessors store v as is.
func (a *Accessor) SetScalarNormalized(i int, v float32) {
	a.writeComponent(a.elementOffset(i), a.denormalize(v))
	a.version++
}

// SetElementNormalized is SetElement with normalized encoding per component.
func (a *Accessor) SetElementNormalized(i int, src []float32) {
	off := a.elementOffset(i)
	n := min(len(src), a.numComponents)
	for c := 0; c < n; c++ {
		a.writeComponent(off+c*a.componentSize, a.denormalize(src[c]))
	}
	a.version++
}

func (a *Accessor) denormalize(v float32) float32 {
	switch a.componentType {
	case Byte:
		return math32.Round(clamp(v, -1, 1) * 127)
	case UnsignedByte:
		return math32.Round(clamp(v, 0, 1) * 255)
	case Short:
		return math32.Round(clamp(v, -1, 1) * 32767)
	case UnsignedShort:
		return math32.Round(clamp(v, 0, 1) * 65535)
	case UnsignedInt:
		return math32.Round(clamp(v, 0, 1) * 4294967295)
	default:
		return v
	}
}

func clamp(v, lo, hi float32) float32 {
	return math32.Min(math32.Max(v, lo), hi)
}

// CopyBuffer copies every element of src into the same index of a. The
// composition types must match and src must not hold more elements than a.
// Component types may differ; values are converted through float32.
func (a *Accessor) CopyBuffer(src *Accessor) error {
	if src.compositionType != a.compositionType || src.arrayLength != a.arrayLength {
		return fmt.Errorf("%w: copy %s[%d] into %s[%d]",
			ErrShapeMismatch, src.compositionType, src.arrayLength, a.compositionType, a.arrayLength)
	}
	if src.count > a.count {
		return fmt.Errorf("%w: copy %d elements into %d", ErrShapeMismatch, src.count, a.count)
	}
	if src.componentType == a.componentType && src.normalized == a.normalized {
		size := a.ElementByteSize()
		sraw, draw := src.raw(), a.raw()
		if src.byteStride == size && a.byteStride == size {
			so, do := src.elementOffset(0), a.elementOffset(0)
			copy(draw[do:do+src.count*size], sraw[so:so+src.count*size])
		} else {
			for i := 0; i < src.count; i++ {
				so, do := src.elementOffset(i), a.elementOffset(i)
				copy(draw[do:do+size], sraw[so:so+size])
			}
		}
		a.version++
		return nil
	}
	buf := make([]float32, a.numComponents)
	for i := 0; i < src.count; i++ {
		src.read(i, buf)
		a.write(i, buf)
	}
	return nil
}

// CalcMinMax recomputes Min and Max per component from the current data.
func (a *Accessor) CalcMinMax() {
	n := a.numComponents
	lo := make([]float32, n)
	hi := make([]float32, n)
	buf := make([]float32, n)
	for i := 0; i < a.count; i++ {
		a.read(i, buf)
		for c, v := range buf {
			if i == 0 || v < lo[c] {
				lo[c] = v
			}
			if i == 0 || v > hi[c] {
				hi[c] = v
			}
		}
	}
	a.min, a.max = lo, hi
}

// WithIndices returns a read view that resolves element indices through the
// given index accessor first.
func (a *Accessor) WithIndices(indices *Accessor) IndexedAccessor {
	return IndexedAccessor{acc: a, indices: indices}
}

// IndexedAccessor reads a's element indices[i] for every index i.
type IndexedAccessor struct {
	acc     *Accessor
	indices *Accessor
}

func (x IndexedAccessor) resolve(i int) int {
	if x.indices == nil {
		return i
	}
	return x.indices.readIndex(i)
}

// Len returns the number of indices.
func (x IndexedAccessor) Len() int {
	if x.indices == nil {
		return x.acc.count
	}
	return x.indices.count
}

// GetScalar returns component 0 of element indices[i].
func (x IndexedAccessor) GetScalar(i int) float32 { return x.acc.GetScalar(x.resolve(i)) }

// GetVec2 returns element indices[i] as a Vec2.
func (x IndexedAccessor) GetVec2(i int) mgl32.Vec2 { return x.acc.GetVec2(x.resolve(i)) }

// GetVec3 returns element indices[i] as a Vec3.
func (x IndexedAccessor) GetVec3(i int) mgl32.Vec3 { return x.acc.GetVec3(x.resolve(i)) }

// GetVec4 returns element indices[i] as a Vec4.
func (x IndexedAccessor) GetVec4(i int) mgl32.Vec4 { return x.acc.GetVec4(x.resolve(i)) }

// GetMat3 returns element indices[i] as a Mat3.
func (x IndexedAccessor) GetMat3(i int) mgl32.Mat3 { return x.acc.GetMat3(x.resolve(i)) }

// GetMat4 returns element indices[i] as a Mat4.
func (x IndexedAccessor) GetMat4(i int) mgl32.Mat4 { return x.acc.GetMat4(x.resolve(i)) }
