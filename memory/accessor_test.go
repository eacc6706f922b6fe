package memory

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newView(t *testing.T, size int) *BufferView {
	t.Helper()
	buf := NewBuffer(BufferDesc{Name: "test", ByteLength: size})
	v, err := buf.TakeBufferView(BufferViewDesc{ByteLengthToNeed: size})
	require.NoError(t, err)
	return v
}

func TestAccessorRoundTripPerComponentType(t *testing.T) {
	types := []ComponentType{Byte, UnsignedByte, Short, UnsignedShort, Int, UnsignedInt, Float}
	for _, ct := range types {
		t.Run(ct.String(), func(t *testing.T) {
			view := newView(t, 4096)
			acc, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec4, ComponentType: ct, Count: 5})
			require.NoError(t, err)

			want := mgl32.Vec4{1, 2, 3, 4}
			acc.SetVec4(4, want)
			assert.Equal(t, want, acc.GetVec4(4))

			acc.SetScalar(2, 7)
			assert.Equal(t, float32(7), acc.GetScalar(2))
		})
	}
}

func TestAccessorRoundTripPerComposition(t *testing.T) {
	view := newView(t, 4096)

	s, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: Float, Count: 3})
	require.NoError(t, err)
	s.SetScalar(1, 0.25)
	assert.InDelta(t, 0.25, s.GetScalar(1), 1e-6)

	v2, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec2, ComponentType: Float, Count: 3})
	require.NoError(t, err)
	v2.SetVec2(2, mgl32.Vec2{-1.5, 2.5})
	assert.Equal(t, mgl32.Vec2{-1.5, 2.5}, v2.GetVec2(2))

	v3, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 3})
	require.NoError(t, err)
	v3.SetVec3(0, mgl32.Vec3{1, 2, 3})
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, v3.GetVec3(0))

	m3, err := view.TakeAccessor(AccessorDesc{CompositionType: Mat3, ComponentType: Float, Count: 2})
	require.NoError(t, err)
	rot := mgl32.Rotate3DZ(0.3)
	m3.SetMat3(1, rot)
	assert.True(t, m3.GetMat3(1).ApproxEqual(rot))

	m4, err := view.TakeAccessor(AccessorDesc{CompositionType: Mat4, ComponentType: Float, Count: 2})
	require.NoError(t, err)
	m := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.HomogRotate3DY(0.7))
	m4.SetMat4(0, m)
	assert.True(t, m4.GetMat4(0).ApproxEqual(m))

	q := mgl32.QuatRotate(0.5, mgl32.Vec3{0, 1, 0})
	v4, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec4, ComponentType: Float, Count: 1})
	require.NoError(t, err)
	v4.SetQuat(0, q)
	assert.True(t, v4.GetQuat(0).ApproxEqual(q))
}

func TestAccessorNormalizedReads(t *testing.T) {
	view := newView(t, 256)

	u8, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: UnsignedByte, Count: 4, Normalized: true})
	require.NoError(t, err)
	u8.SetScalar(0, 200)
	assert.InDelta(t, 200.0/255.0, u8.GetScalar(0), 1e-6)
	u8.SetScalar(1, 255)
	assert.InDelta(t, 1.0, u8.GetScalar(1), 1e-6)

	i16, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: Short, Count: 4, Normalized: true})
	require.NoError(t, err)
	i16.SetScalar(0, 1000)
	assert.InDelta(t, 1000.0/32767.0, i16.GetScalar(0), 1e-6)
	i16.SetScalar(1, -32768)
	assert.Equal(t, float32(-1), i16.GetScalar(1))

	i8, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: Byte, Count: 2, Normalized: true})
	require.NoError(t, err)
	i8.SetScalar(0, -128)
	assert.Equal(t, float32(-1), i8.GetScalar(0))

	u16, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: UnsignedShort, Count: 2, Normalized: true})
	require.NoError(t, err)
	u16.SetScalarNormalized(0, 0.5)
	assert.InDelta(t, 0.5, u16.GetScalar(0), 1e-4)
	u16.SetScalarNormalized(1, 2)
	assert.Equal(t, float32(1), u16.GetScalar(1))
}

func TestAccessorOutOfBoundsPanics(t *testing.T) {
	view := newView(t, 64)
	acc, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, acc.ElementCount())

	assert.Panics(t, func() { acc.GetVec3(2) })
	assert.Panics(t, func() { acc.SetVec3(-1, mgl32.Vec3{}) })
	assert.NotPanics(t, func() { acc.GetVec3(1) })
}

func TestTakeAccessorSpaceAndStride(t *testing.T) {
	view := newView(t, 44)

	a, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 3})
	require.NoError(t, err)
	assert.Equal(t, 12, a.ByteStride())
	assert.Equal(t, 36, view.TakenBytes())

	_, err = view.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 1})
	assert.ErrorIs(t, err, ErrInsufficientSpace)

	_, err = view.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 1, ByteStride: 8})
	assert.ErrorIs(t, err, ErrInvalidStride)

	_, err = view.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestAccessorOffsetsAreAligned(t *testing.T) {
	view := newView(t, 64)
	b, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: UnsignedByte, Count: 3})
	require.NoError(t, err)
	assert.Equal(t, 0, b.ByteOffsetInBufferView())

	f, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: Float, Count: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, f.ByteOffsetInBufferView())
}

func TestInterleavedView(t *testing.T) {
	buf := NewBuffer(BufferDesc{Name: "interleaved", ByteLength: 256})
	// position (12) + normal (12) + uv (8) per vertex, 4 vertices.
	view, err := buf.TakeBufferView(BufferViewDesc{ByteLengthToNeed: 32 * 4, ByteStride: 32})
	require.NoError(t, err)
	require.True(t, view.IsInterleaved())

	pos, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 4})
	require.NoError(t, err)
	nrm, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 4})
	require.NoError(t, err)
	uv, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec2, ComponentType: Float, Count: 4})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 12, 24}, []int{pos.ByteOffsetInBufferView(), nrm.ByteOffsetInBufferView(), uv.ByteOffsetInBufferView()})
	assert.Equal(t, 32, uv.ByteStride())

	pos.SetVec3(3, mgl32.Vec3{1, 2, 3})
	nrm.SetVec3(3, mgl32.Vec3{0, 1, 0})
	uv.SetVec2(3, mgl32.Vec2{0.5, 0.5})
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, pos.GetVec3(3))
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, nrm.GetVec3(3))

	_, err = view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: Float, Count: 4})
	assert.ErrorIs(t, err, ErrInsufficientSpace, "stride slots are full")
}

func TestTakeAccessorWithByteOffset(t *testing.T) {
	buf := NewBuffer(BufferDesc{Name: "gltf", ByteLength: 96})
	view, err := buf.TakeBufferView(BufferViewDesc{ByteLengthToNeed: 96, ByteStride: 24})
	require.NoError(t, err)

	nrm, err := view.TakeAccessorWithByteOffset(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 4}, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, nrm.ByteOffsetInBufferView())
	assert.Equal(t, 24, nrm.ByteStride())

	_, err = view.TakeAccessorWithByteOffset(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 5}, 0)
	assert.ErrorIs(t, err, ErrInsufficientSpace)

	_, err = view.TakeAccessorWithByteOffset(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 1}, 2)
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestTakeFlexibleAccessorPadsStride(t *testing.T) {
	view := newView(t, 256)
	acc, err := view.TakeFlexibleAccessor(FlexibleAccessorDesc{
		AccessorDesc: AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 4},
		Alignment:    16,
	})
	require.NoError(t, err)
	assert.Equal(t, 16, acc.ByteStride())
	assert.Equal(t, 12, acc.ElementByteSize())
	assert.Equal(t, 64, view.TakenBytes())

	_, err = view.TakeFlexibleAccessor(FlexibleAccessorDesc{AccessorDesc: AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 1}})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestAccessorArrayLength(t *testing.T) {
	view := newView(t, 256)
	acc, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec4, ComponentType: Float, Count: 2, ArrayLength: 3})
	require.NoError(t, err)
	assert.Equal(t, 12, acc.NumComponents())
	assert.Equal(t, 48, acc.ByteStride())

	src := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	acc.SetElement(1, src)
	dst := make([]float32, 12)
	acc.GetElement(1, dst)
	assert.Equal(t, src, dst)
}

func TestCopyBuffer(t *testing.T) {
	cpu := newView(t, 128)
	gpu := newView(t, 128)

	src, err := cpu.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 3})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		src.SetVec3(i, mgl32.Vec3{float32(i), float32(i * 2), float32(i * 3)})
	}

	dst, err := gpu.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 3})
	require.NoError(t, err)
	require.NoError(t, dst.CopyBuffer(src))
	assert.Equal(t, mgl32.Vec3{2, 4, 6}, dst.GetVec3(2))

	shorts, err := gpu.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Short, Count: 3})
	require.NoError(t, err)
	require.NoError(t, shorts.CopyBuffer(src))
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, shorts.GetVec3(1))

	vec2, err := gpu.TakeAccessor(AccessorDesc{CompositionType: Vec2, ComponentType: Float, Count: 3})
	require.NoError(t, err)
	assert.ErrorIs(t, vec2.CopyBuffer(src), ErrShapeMismatch)

	small, err := cpu.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, small.CopyBuffer(src), ErrShapeMismatch)
}

func TestTypedArraysAreZeroCopy(t *testing.T) {
	view := newView(t, 64)
	acc, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec2, ComponentType: Float, Count: 2})
	require.NoError(t, err)

	arr, err := acc.Float32Array()
	require.NoError(t, err)
	require.Len(t, arr, 4)
	arr[3] = 9
	assert.Equal(t, mgl32.Vec2{0, 9}, acc.GetVec2(1))

	acc.SetVec2(0, mgl32.Vec2{5, 6})
	assert.Equal(t, float32(5), arr[0])

	_, err = acc.Uint16Array()
	assert.ErrorIs(t, err, ErrComponentTypeMismatch)

	idx, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: UnsignedShort, Count: 3})
	require.NoError(t, err)
	u16, err := idx.Uint16Array()
	require.NoError(t, err)
	u16[2] = 42
	assert.Equal(t, float32(42), idx.GetScalar(2))
	assert.Len(t, idx.Bytes(), 6)
}

func TestApplySparse(t *testing.T) {
	view := newView(t, 256)
	base, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 4})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		base.SetVec3(i, mgl32.Vec3{1, 1, 1})
	}
	indices, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: UnsignedShort, Count: 2})
	require.NoError(t, err)
	indices.SetScalar(0, 1)
	indices.SetScalar(1, 3)
	values, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 2})
	require.NoError(t, err)
	values.SetVec3(0, mgl32.Vec3{5, 5, 5})
	values.SetVec3(1, mgl32.Vec3{7, 7, 7})

	require.NoError(t, base.ApplySparse(indices, values, 2))
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, base.GetVec3(0))
	assert.Equal(t, mgl32.Vec3{5, 5, 5}, base.GetVec3(1))
	assert.Equal(t, mgl32.Vec3{7, 7, 7}, base.GetVec3(3))

	info, ok := base.Sparse()
	require.True(t, ok)
	assert.Equal(t, 2, info.Count)

	// Baked data is ordinary data afterwards.
	values.SetVec3(0, mgl32.Vec3{9, 9, 9})
	assert.Equal(t, mgl32.Vec3{5, 5, 5}, base.GetVec3(1))

	assert.ErrorIs(t, base.ApplySparse(indices, values, 2), ErrSparseAlreadyApplied)
}

func TestApplySparseIndexAbove24Bits(t *testing.T) {
	const n = 1<<24 + 2
	base, err := newView(t, n).TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: UnsignedByte, Count: n})
	require.NoError(t, err)

	side := newView(t, 16)
	indices, err := side.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: UnsignedInt, Count: 1})
	require.NoError(t, err)
	u32, err := indices.Uint32Array()
	require.NoError(t, err)
	u32[0] = 1<<24 + 1
	values, err := side.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: UnsignedByte, Count: 1})
	require.NoError(t, err)
	values.SetScalar(0, 7)

	require.NoError(t, base.ApplySparse(indices, values, 1))
	assert.Equal(t, float32(7), base.GetScalar(1<<24+1))
	assert.Equal(t, float32(0), base.GetScalar(1<<24))
	assert.Equal(t, 1<<24+1, indices.GetIndex(0))

	ix := base.WithIndices(indices)
	assert.Equal(t, float32(7), ix.GetScalar(0))
}

func TestSetScalarClampsIntegerRange(t *testing.T) {
	view := newView(t, 64)
	u8, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: UnsignedByte, Count: 3})
	require.NoError(t, err)
	u8.SetScalar(0, 300)
	u8.SetScalar(1, -1)
	assert.Equal(t, float32(255), u8.GetScalar(0))
	assert.Equal(t, float32(0), u8.GetScalar(1))

	i8, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: Byte, Count: 2})
	require.NoError(t, err)
	i8.SetScalar(0, 200)
	i8.SetScalar(1, -200)
	assert.Equal(t, float32(127), i8.GetScalar(0))
	assert.Equal(t, float32(-128), i8.GetScalar(1))

	u16, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: UnsignedShort, Count: 1})
	require.NoError(t, err)
	u16.SetScalar(0, 1e6)
	assert.Equal(t, 65535, u16.GetIndex(0))

	i32, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: Int, Count: 1})
	require.NoError(t, err)
	i32.SetScalar(0, -1e10)
	assert.Equal(t, -2147483648, i32.GetIndex(0))

	u32, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: UnsignedInt, Count: 1})
	require.NoError(t, err)
	u32.SetScalar(0, -5)
	assert.Equal(t, 0, u32.GetIndex(0))
}

func TestApplySparseIndexOutOfRangePanics(t *testing.T) {
	view := newView(t, 128)
	base, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: Float, Count: 2})
	require.NoError(t, err)
	indices, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: UnsignedByte, Count: 1})
	require.NoError(t, err)
	indices.SetScalar(0, 5)
	values, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: Float, Count: 1})
	require.NoError(t, err)

	assert.Panics(t, func() { _ = base.ApplySparse(indices, values, 1) })
}

func TestWithIndicesAndMinMax(t *testing.T) {
	view := newView(t, 128)
	pos, err := view.TakeAccessor(AccessorDesc{CompositionType: Vec3, ComponentType: Float, Count: 3})
	require.NoError(t, err)
	pos.SetVec3(0, mgl32.Vec3{-1, 0, 2})
	pos.SetVec3(1, mgl32.Vec3{3, -4, 0})
	pos.SetVec3(2, mgl32.Vec3{0, 5, -6})

	idx, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: UnsignedShort, Count: 2})
	require.NoError(t, err)
	idx.SetScalar(0, 2)
	idx.SetScalar(1, 0)

	ix := pos.WithIndices(idx)
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, mgl32.Vec3{0, 5, -6}, ix.GetVec3(0))
	assert.Equal(t, mgl32.Vec3{-1, 0, 2}, ix.GetVec3(1))

	pos.CalcMinMax()
	assert.Equal(t, []float32{-1, -4, -6}, pos.Min())
	assert.Equal(t, []float32{3, 5, 2}, pos.Max())
}

func TestAccessorVersionTracksWrites(t *testing.T) {
	view := newView(t, 64)
	acc, err := view.TakeAccessor(AccessorDesc{CompositionType: Scalar, ComponentType: Float, Count: 2})
	require.NoError(t, err)
	v0 := acc.Version()
	acc.SetScalar(0, 1)
	acc.SetScalar(1, 1)
	assert.Equal(t, v0+2, acc.Version())
	_ = acc.GetScalar(0)
	assert.Equal(t, v0+2, acc.Version())
}
