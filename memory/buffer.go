package memory

import "fmt"

// BufferDesc describes a Buffer to create.
type BufferDesc struct {
	Name       string
	ByteLength int
	// ByteAlign is the alignment applied to every BufferView offset.
	// Zero selects Use.DefaultAlign().
	ByteAlign int
	Use       BufferUse
}

// BufferViewDesc describes a BufferView to carve from a Buffer.
type BufferViewDesc struct {
	ByteLengthToNeed int
	// ByteStride is non-zero for interleaved vertex data.
	ByteStride int
	// ByteOffset is only read by TakeBufferViewWithByteOffset.
	ByteOffset int
}

// Uploader receives whole-buffer byte ranges for transfer to the GPU.
type Uploader interface {
	Upload(name string, use BufferUse, data []byte) error
}

// Buffer is a single fixed-size block of memory sliced into BufferViews by a
// one-way bump allocator. It is never resized and views are never returned.
type Buffer struct {
	name       string
	use        BufferUse
	byteAlign  int
	raw        []byte
	takenBytes int
	views      []*BufferView
	// wrapped buffers are read-only mirrors of external blobs whose views
	// may overlap.
	wrapped bool
}

// NewBuffer allocates a zeroed buffer. Panics if ByteLength is negative.
func NewBuffer(desc BufferDesc) *Buffer {
	if desc.ByteLength < 0 {
		panic(fmt.Sprintf("memory: negative buffer length %d", desc.ByteLength))
	}
	align := desc.ByteAlign
	if align <= 0 {
		align = desc.Use.DefaultAlign()
	}
	return &Buffer{
		name:      desc.Name,
		use:       desc.Use,
		byteAlign: align,
		raw:       make([]byte, desc.ByteLength),
	}
}

// WrapBytes adopts data as a CPUGeneric buffer without copying, for reading
// externally produced binary blobs through accessors. The whole length counts
// as taken and views may start at any byte.
func WrapBytes(name string, data []byte) *Buffer {
	return &Buffer{
		name:       name,
		use:        CPUGeneric,
		byteAlign:  1,
		raw:        data,
		takenBytes: len(data),
		wrapped:    true,
	}
}

// Name returns the buffer's name.
func (b *Buffer) Name() string { return b.name }

// Use returns the purpose the buffer was created for.
func (b *Buffer) Use() BufferUse { return b.use }

// ByteLength returns the fixed capacity in bytes.
func (b *Buffer) ByteLength() int { return len(b.raw) }

// ByteAlign returns the alignment applied to view offsets.
func (b *Buffer) ByteAlign() int { return b.byteAlign }

// TakenBytes returns the current position of the allocation cursor.
func (b *Buffer) TakenBytes() int { return b.takenBytes }

// RemainingBytes returns how many bytes are left after the cursor.
func (b *Buffer) RemainingBytes() int { return len(b.raw) - b.takenBytes }

// BufferViews returns the views in allocation order. The returned slice
// MUST NOT be mutated by the caller.
func (b *Buffer) BufferViews() []*BufferView { return b.views }

// TakeBufferView carves the next desc.ByteLengthToNeed bytes, starting at the
// cursor rounded up to the buffer alignment.
func (b *Buffer) TakeBufferView(desc BufferViewDesc) (*BufferView, error) {
	if err := b.checkViewDesc(desc); err != nil {
		return nil, err
	}
	offset := AlignUp(b.takenBytes, b.byteAlign)
	if offset+desc.ByteLengthToNeed > len(b.raw) {
		return nil, fmt.Errorf("%w: buffer %q needs %d bytes at offset %d, %d remain",
			ErrInsufficientSpace, b.name, desc.ByteLengthToNeed, offset, len(b.raw)-offset)
	}
	b.takenBytes = offset + desc.ByteLengthToNeed
	return b.addView(offset, desc), nil
}

// TakeBufferViewWithByteOffset places a view at an explicit offset, as when
// mirroring an externally defined layout. The cursor moves past the view if
// the view ends beyond it. On buffers not created by WrapBytes the range must
// not overlap any view already taken, or ErrOverlap is returned.
func (b *Buffer) TakeBufferViewWithByteOffset(desc BufferViewDesc) (*BufferView, error) {
	if err := b.checkViewDesc(desc); err != nil {
		return nil, err
	}
	if desc.ByteOffset < 0 {
		return nil, fmt.Errorf("%w: negative byte offset %d", ErrInvalidDescriptor, desc.ByteOffset)
	}
	if desc.ByteOffset%b.byteAlign != 0 {
		return nil, fmt.Errorf("%w: offset %d in buffer %q is not a multiple of %d",
			ErrMisaligned, desc.ByteOffset, b.name, b.byteAlign)
	}
	end := desc.ByteOffset + desc.ByteLengthToNeed
	if end > len(b.raw) {
		return nil, fmt.Errorf("%w: buffer %q has %d bytes, view ends at %d",
			ErrInsufficientSpace, b.name, len(b.raw), end)
	}
	if !b.wrapped {
		if v := b.overlapping(desc.ByteOffset, end); v != nil {
			return nil, fmt.Errorf("%w: buffer %q range [%d,%d) intersects view [%d,%d)",
				ErrOverlap, b.name, desc.ByteOffset, end, v.byteOffsetInBuffer, v.byteOffsetInBuffer+v.byteLength)
		}
	}
	if end > b.takenBytes {
		b.takenBytes = end
	}
	return b.addView(desc.ByteOffset, desc), nil
}

// overlapping returns the first view intersecting [start, end), or nil.
func (b *Buffer) overlapping(start, end int) *BufferView {
	for _, v := range b.views {
		if start < v.byteOffsetInBuffer+v.byteLength && v.byteOffsetInBuffer < end {
			return v
		}
	}
	return nil
}

func (b *Buffer) checkViewDesc(desc BufferViewDesc) error {
	if desc.ByteLengthToNeed <= 0 {
		return fmt.Errorf("%w: byte length %d", ErrInvalidDescriptor, desc.ByteLengthToNeed)
	}
	if desc.ByteStride < 0 {
		return fmt.Errorf("%w: byte stride %d", ErrInvalidDescriptor, desc.ByteStride)
	}
	return nil
}

func (b *Buffer) addView(offset int, desc BufferViewDesc) *BufferView {
	v := &BufferView{
		buffer:             b,
		byteOffsetInBuffer: offset,
		byteLength:         desc.ByteLengthToNeed,
		byteStride:         desc.ByteStride,
	}
	b.views = append(b.views, v)
	return v
}

// Upload hands the used prefix of the storage to u.
func (b *Buffer) Upload(u Uploader) error {
	return u.Upload(b.name, b.use, b.raw[:b.takenBytes])
}
