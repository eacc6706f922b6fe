package quartz

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/phanxgames/quartz/memory"
)

// VertexAttribute names a per-vertex stream of a primitive.
type VertexAttribute uint8

const (
	AttributePosition VertexAttribute = iota
	AttributeNormal
	AttributeTangent
	AttributeTexcoord0
	AttributeTexcoord1
	AttributeColor0
	AttributeJoints0
	AttributeWeights0
)

var vertexAttributeNames = [...]string{
	"POSITION", "NORMAL", "TANGENT", "TEXCOORD_0", "TEXCOORD_1", "COLOR_0", "JOINTS_0", "WEIGHTS_0",
}

func (a VertexAttribute) String() string {
	if int(a) < len(vertexAttributeNames) {
		return vertexAttributeNames[a]
	}
	return "UNKNOWN"
}

// VertexAttributeFromString parses a glTF attribute name such as "TEXCOORD_0".
func VertexAttributeFromString(s string) (VertexAttribute, error) {
	for i, name := range vertexAttributeNames {
		if strings.EqualFold(name, s) {
			return VertexAttribute(i), nil
		}
	}
	return 0, fmt.Errorf("quartz: unknown vertex attribute %q", s)
}

// PrimitiveMode is the topology of a primitive. Values match glTF.
type PrimitiveMode uint8

const (
	ModePoints PrimitiveMode = iota
	ModeLines
	ModeLineLoop
	ModeLineStrip
	ModeTriangles
	ModeTriangleStrip
	ModeTriangleFan
)

var primitiveModeNames = [...]string{
	"POINTS", "LINES", "LINE_LOOP", "LINE_STRIP", "TRIANGLES", "TRIANGLE_STRIP", "TRIANGLE_FAN",
}

func (m PrimitiveMode) String() string {
	if int(m) < len(primitiveModeNames) {
		return primitiveModeNames[m]
	}
	return fmt.Sprintf("PrimitiveMode(%d)", uint8(m))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *PrimitiveMode) UnmarshalText(text []byte) error {
	for i, name := range primitiveModeNames {
		if strings.EqualFold(name, string(text)) {
			*m = PrimitiveMode(i)
			return nil
		}
	}
	return fmt.Errorf("quartz: unknown primitive mode %q", text)
}

// MorphTargetDesc holds per-vertex displacements of one morph target.
type MorphTargetDesc struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
}

// PrimitiveDesc is the CPU-side input of NewPrimitive. Positions is required;
// every other stream is optional but must match its length.
type PrimitiveDesc struct {
	Mode      PrimitiveMode
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Texcoords []mgl32.Vec2
	Colors    []mgl32.Vec4
	Indices   []uint32
	Targets   []MorphTargetDesc
}

// Primitive is one drawable piece of a mesh. Vertex streams and indices live
// in the GPUVertexData buffer; morph targets start in CPUGeneric memory until
// PromoteTargets copies them to a GPU buffer.
type Primitive struct {
	Mode       PrimitiveMode
	Attributes map[VertexAttribute]*memory.Accessor
	Indices    *memory.Accessor
	Targets    []map[VertexAttribute]*memory.Accessor

	targetsOnGPU bool
}

// NewPrimitive copies desc into accessors taken from the memory manager.
// Indices are stored as UnsignedShort when the vertex count fits 16 bits,
// UnsignedInt otherwise.
// Fails with memory.ErrInsufficientSpace or ErrPoolExhausted when the
// buffers cannot hold the data; space already taken is not returned.
func NewPrimitive(mm *MemoryManager, desc PrimitiveDesc) (*Primitive, error) {
	n := len(desc.Positions)
	if n == 0 {
		return nil, fmt.Errorf("%w: primitive has no positions", memory.ErrInvalidDescriptor)
	}
	if err := checkStreamLengths(desc); err != nil {
		return nil, err
	}
	vbuf, err := mm.CreateOrGetBuffer(memory.GPUVertexData)
	if err != nil {
		return nil, err
	}
	p := &Primitive{Mode: desc.Mode, Attributes: make(map[VertexAttribute]*memory.Accessor, 4)}

	pos, err := takeVec3Stream(vbuf, desc.Positions)
	if err != nil {
		return nil, fmt.Errorf("quartz: POSITION: %w", err)
	}
	pos.CalcMinMax()
	p.Attributes[AttributePosition] = pos

	if len(desc.Normals) > 0 {
		if p.Attributes[AttributeNormal], err = takeVec3Stream(vbuf, desc.Normals); err != nil {
			return nil, fmt.Errorf("quartz: NORMAL: %w", err)
		}
	}
	if len(desc.Texcoords) > 0 {
		acc, err := takeStream(vbuf, memory.Vec2, len(desc.Texcoords))
		if err != nil {
			return nil, fmt.Errorf("quartz: TEXCOORD_0: %w", err)
		}
		for i, v := range desc.Texcoords {
			acc.SetVec2(i, v)
		}
		p.Attributes[AttributeTexcoord0] = acc
	}
	if len(desc.Colors) > 0 {
		acc, err := takeStream(vbuf, memory.Vec4, len(desc.Colors))
		if err != nil {
			return nil, fmt.Errorf("quartz: COLOR_0: %w", err)
		}
		for i, v := range desc.Colors {
			acc.SetVec4(i, v)
		}
		p.Attributes[AttributeColor0] = acc
	}
	if len(desc.Indices) > 0 {
		if p.Indices, err = takeIndices(vbuf, desc.Indices, n); err != nil {
			return nil, fmt.Errorf("quartz: indices: %w", err)
		}
	}
	if len(desc.Targets) > 0 {
		cbuf, err := mm.CreateOrGetBuffer(memory.CPUGeneric)
		if err != nil {
			return nil, err
		}
		for ti, t := range desc.Targets {
			target := make(map[VertexAttribute]*memory.Accessor, 2)
			if len(t.Positions) > 0 {
				if target[AttributePosition], err = takeVec3Stream(cbuf, t.Positions); err != nil {
					return nil, fmt.Errorf("quartz: target %d POSITION: %w", ti, err)
				}
			}
			if len(t.Normals) > 0 {
				if target[AttributeNormal], err = takeVec3Stream(cbuf, t.Normals); err != nil {
					return nil, fmt.Errorf("quartz: target %d NORMAL: %w", ti, err)
				}
			}
			p.Targets = append(p.Targets, target)
		}
	}
	return p, nil
}

func checkStreamLengths(desc PrimitiveDesc) error {
	n := len(desc.Positions)
	check := func(name string, got int) error {
		if got != 0 && got != n {
			return fmt.Errorf("%w: %s has %d elements, POSITION has %d",
				memory.ErrShapeMismatch, name, got, n)
		}
		return nil
	}
	if err := check("NORMAL", len(desc.Normals)); err != nil {
		return err
	}
	if err := check("TEXCOORD_0", len(desc.Texcoords)); err != nil {
		return err
	}
	if err := check("COLOR_0", len(desc.Colors)); err != nil {
		return err
	}
	for i, t := range desc.Targets {
		if err := check(fmt.Sprintf("target %d POSITION", i), len(t.Positions)); err != nil {
			return err
		}
		if err := check(fmt.Sprintf("target %d NORMAL", i), len(t.Normals)); err != nil {
			return err
		}
	}
	for _, idx := range desc.Indices {
		if int(idx) >= n {
			return fmt.Errorf("%w: index %d out of range [0,%d)", memory.ErrInvalidDescriptor, idx, n)
		}
	}
	return nil
}

func takeStream(buf *memory.Buffer, ct memory.CompositionType, count int) (*memory.Accessor, error) {
	return takeAccessor(buf, ct, memory.Float, count)
}

func takeAccessor(buf *memory.Buffer, ct memory.CompositionType, comp memory.ComponentType, count int) (*memory.Accessor, error) {
	size := ct.NumComponents() * comp.ByteSize() * count
	view, err := buf.TakeBufferView(memory.BufferViewDesc{ByteLengthToNeed: memory.AlignUp(size, 4)})
	if err != nil {
		return nil, err
	}
	return view.TakeAccessor(memory.AccessorDesc{CompositionType: ct, ComponentType: comp, Count: count})
}

func takeVec3Stream(buf *memory.Buffer, data []mgl32.Vec3) (*memory.Accessor, error) {
	acc, err := takeStream(buf, memory.Vec3, len(data))
	if err != nil {
		return nil, err
	}
	for i, v := range data {
		acc.SetVec3(i, v)
	}
	return acc, nil
}

func takeIndices(buf *memory.Buffer, indices []uint32, vertexCount int) (*memory.Accessor, error) {
	comp := memory.UnsignedShort
	if vertexCount > 0xFFFF {
		comp = memory.UnsignedInt
	}
	acc, err := takeAccessor(buf, memory.Scalar, comp, len(indices))
	if err != nil {
		return nil, err
	}
	if comp == memory.UnsignedInt {
		dst, err := acc.Uint32Array()
		if err != nil {
			return nil, err
		}
		copy(dst, indices)
	} else {
		dst, err := acc.Uint16Array()
		if err != nil {
			return nil, err
		}
		for i, idx := range indices {
			dst[i] = uint16(idx)
		}
	}
	acc.CalcMinMax()
	return acc, nil
}

// Attribute returns the accessor of a, or nil.
func (p *Primitive) Attribute(a VertexAttribute) *memory.Accessor { return p.Attributes[a] }

// VertexCount returns the number of vertices.
func (p *Primitive) VertexCount() int {
	if pos := p.Attributes[AttributePosition]; pos != nil {
		return pos.ElementCount()
	}
	return 0
}

// IndexCount returns the number of indices, or VertexCount for
// non-indexed primitives.
func (p *Primitive) IndexCount() int {
	if p.Indices != nil {
		return p.Indices.ElementCount()
	}
	return p.VertexCount()
}

// IsIndexed reports whether the primitive draws through an index accessor.
func (p *Primitive) IsIndexed() bool { return p.Indices != nil }

// Positions returns positions in draw order, resolved through the indices
// when present.
func (p *Primitive) Positions() memory.IndexedAccessor {
	return p.Attributes[AttributePosition].WithIndices(p.Indices)
}

// AABB returns the local bounds from the POSITION accessor's min and max.
func (p *Primitive) AABB() AABB {
	pos := p.Attributes[AttributePosition]
	if pos == nil || len(pos.Min()) < 3 || len(pos.Max()) < 3 {
		return EmptyAABB()
	}
	lo, hi := pos.Min(), pos.Max()
	return AABB{Min: mgl32.Vec3{lo[0], lo[1], lo[2]}, Max: mgl32.Vec3{hi[0], hi[1], hi[2]}}
}

// RecalcAABB recomputes POSITION min and max after the data was edited in
// place.
func (p *Primitive) RecalcAABB() {
	if pos := p.Attributes[AttributePosition]; pos != nil {
		pos.CalcMinMax()
	}
}

// TargetsOnGPU reports whether PromoteTargets has run.
func (p *Primitive) TargetsOnGPU() bool { return p.targetsOnGPU }

// PromoteTargets copies every morph target accessor into gpu and replaces the
// CPU accessors with the copies. Calling it again is a no-op.
func (p *Primitive) PromoteTargets(gpu *memory.Buffer) error {
	if p.targetsOnGPU {
		return nil
	}
	promoted := make([]map[VertexAttribute]*memory.Accessor, len(p.Targets))
	for ti, target := range p.Targets {
		promoted[ti] = make(map[VertexAttribute]*memory.Accessor, len(target))
		for attr, src := range target {
			dst, err := takeAccessor(gpu, src.CompositionType(), src.ComponentType(), src.ElementCount())
			if err != nil {
				return fmt.Errorf("quartz: promote target %d %s: %w", ti, attr, err)
			}
			if err := dst.CopyBuffer(src); err != nil {
				return err
			}
			promoted[ti][attr] = dst
		}
	}
	p.Targets = promoted
	p.targetsOnGPU = true
	return nil
}

func meshComponentType() ComponentType {
	return ComponentType{Name: "Mesh", New: newMeshComponent}
}

// MeshComponent attaches primitives to an entity. The primitives' vertex
// data lives in the GPUVertexData buffer; the component holds references.
type MeshComponent struct {
	ComponentBase

	primitives []*Primitive
}

func newMeshComponent(init *ComponentInit) Component {
	return &MeshComponent{ComponentBase: init.Base}
}

// AddPrimitive appends p.
func (m *MeshComponent) AddPrimitive(p *Primitive) { m.primitives = append(m.primitives, p) }

// SetPrimitives replaces every primitive.
func (m *MeshComponent) SetPrimitives(ps []*Primitive) { m.primitives = ps }

// Primitives returns the primitives. The returned slice MUST NOT be mutated by the caller.
func (m *MeshComponent) Primitives() []*Primitive { return m.primitives }

// NumPrimitives returns the number of primitives.
func (m *MeshComponent) NumPrimitives() int { return len(m.primitives) }

// AABB returns the union of the primitives' local bounds.
func (m *MeshComponent) AABB() AABB {
	box := EmptyAABB()
	for _, p := range m.primitives {
		box = box.Union(p.AABB())
	}
	return box
}

// VertexCount returns the total vertex count of every primitive.
func (m *MeshComponent) VertexCount() int {
	n := 0
	for _, p := range m.primitives {
		n += p.VertexCount()
	}
	return n
}

func (m *MeshComponent) onDetach() { m.primitives = nil }
