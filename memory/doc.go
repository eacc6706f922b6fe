// Package memory implements the three-level CPU/GPU shared memory arena used
// by quartz components and meshes.
//
// A [Buffer] owns one fixed block of bytes and hands out [BufferView]s by
// bump allocation. A BufferView hands out [Accessor]s, typed and strided
// windows that read and write scalar, vector and matrix elements directly in
// the Buffer's storage. Nothing is ever freed individually: a Buffer lives
// until the scene that owns it is torn down.
//
//	buf := memory.NewBuffer(memory.BufferDesc{Name: "verts", ByteLength: 1 << 16})
//	view, err := buf.TakeBufferView(memory.BufferViewDesc{ByteLengthToNeed: 12 * 3})
//	if err != nil {
//		// out of arena space; skip this resource
//	}
//	pos, _ := view.TakeAccessor(memory.AccessorDesc{
//		CompositionType: memory.Vec3,
//		ComponentType:   memory.Float,
//		Count:           3,
//	})
//	pos.SetVec3(0, mgl32.Vec3{0, 1, 0})
//
// Running out of space is reported through error values wrapping
// [ErrInsufficientSpace]. Indexing an accessor out of range is a programming
// error and panics.
package memory
