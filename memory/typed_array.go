package memory

import (
	"fmt"
	"unsafe"
)

// Bytes returns the accessor's byte range inside the buffer storage without
// copying. Interleaved neighbours inside the range are included.
func (a *Accessor) Bytes() []byte {
	off := a.ByteOffsetInBuffer()
	return a.raw()[off : off+a.ByteLength() : off+a.ByteLength()]
}

// typedLen is the number of components a typed array over the accessor spans.
func (a *Accessor) typedLen() int {
	return a.ByteLength() / a.componentSize
}

func (a *Accessor) checkTyped(want ComponentType) error {
	if a.componentType != want {
		return fmt.Errorf("%w: accessor is %s, requested %s", ErrComponentTypeMismatch, a.componentType, want)
	}
	if uintptr(unsafe.Pointer(&a.raw()[a.ByteOffsetInBuffer()]))%uintptr(a.componentSize) != 0 {
		return fmt.Errorf("%w: offset %d for %s", ErrMisaligned, a.ByteOffsetInBuffer(), want)
	}
	return nil
}

// Float32Array returns a zero-copy float32 window over the accessor.
func (a *Accessor) Float32Array() ([]float32, error) {
	if err := a.checkTyped(Float); err != nil {
		return nil, err
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&a.raw()[a.ByteOffsetInBuffer()])), a.typedLen()), nil
}

// Uint32Array returns a zero-copy uint32 window over the accessor.
func (a *Accessor) Uint32Array() ([]uint32, error) {
	if err := a.checkTyped(UnsignedInt); err != nil {
		return nil, err
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&a.raw()[a.ByteOffsetInBuffer()])), a.typedLen()), nil
}

// Int32Array returns a zero-copy int32 window over the accessor.
func (a *Accessor) Int32Array() ([]int32, error) {
	if err := a.checkTyped(Int); err != nil {
		return nil, err
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&a.raw()[a.ByteOffsetInBuffer()])), a.typedLen()), nil
}

// Uint16Array returns a zero-copy uint16 window over the accessor.
func (a *Accessor) Uint16Array() ([]uint16, error) {
	if err := a.checkTyped(UnsignedShort); err != nil {
		return nil, err
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&a.raw()[a.ByteOffsetInBuffer()])), a.typedLen()), nil
}

// Int16Array returns a zero-copy int16 window over the accessor.
func (a *Accessor) Int16Array() ([]int16, error) {
	if err := a.checkTyped(Short); err != nil {
		return nil, err
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(&a.raw()[a.ByteOffsetInBuffer()])), a.typedLen()), nil
}

// Uint8Array returns a zero-copy uint8 window over the accessor.
func (a *Accessor) Uint8Array() ([]uint8, error) {
	if err := a.checkTyped(UnsignedByte); err != nil {
		return nil, err
	}
	return a.Bytes(), nil
}

// Int8Array returns a zero-copy int8 window over the accessor.
func (a *Accessor) Int8Array() ([]int8, error) {
	if err := a.checkTyped(Byte); err != nil {
		return nil, err
	}
	return unsafe.Slice((*int8)(unsafe.Pointer(&a.raw()[a.ByteOffsetInBuffer()])), a.typedLen()), nil
}
