package memory

import (
	"fmt"
	"strings"
)

// CompositionType is the shape of one accessor element.
type CompositionType uint8

const (
	Scalar CompositionType = iota
	Vec2
	Vec3
	Vec4
	Mat2
	Mat3
	Mat4
)

var compositionNames = [...]string{"SCALAR", "VEC2", "VEC3", "VEC4", "MAT2", "MAT3", "MAT4"}

// NumComponents returns how many numeric components make up one element.
func (c CompositionType) NumComponents() int {
	switch c {
	case Scalar:
		return 1
	case Vec2:
		return 2
	case Vec3:
		return 3
	case Vec4, Mat2:
		return 4
	case Mat3:
		return 9
	case Mat4:
		return 16
	default:
		return 0
	}
}

func (c CompositionType) String() string {
	if int(c) < len(compositionNames) {
		return compositionNames[c]
	}
	return fmt.Sprintf("CompositionType(%d)", c)
}

// MarshalText implements encoding.TextMarshaler.
func (c CompositionType) MarshalText() ([]byte, error) {
	if int(c) >= len(compositionNames) {
		return nil, fmt.Errorf("memory: unknown composition type %d", c)
	}
	return []byte(compositionNames[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CompositionType) UnmarshalText(text []byte) error {
	v, err := CompositionTypeFromString(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// CompositionTypeFromString parses a glTF accessor type name ("VEC3", "mat4", ...).
func CompositionTypeFromString(s string) (CompositionType, error) {
	u := strings.ToUpper(s)
	for i, name := range compositionNames {
		if name == u {
			return CompositionType(i), nil
		}
	}
	return 0, fmt.Errorf("memory: unknown composition type %q", s)
}

// ComponentType is the numeric type of one component. Values match the
// glTF / WebGL enum codes.
type ComponentType uint16

const (
	Byte          ComponentType = 5120
	UnsignedByte  ComponentType = 5121
	Short         ComponentType = 5122
	UnsignedShort ComponentType = 5123
	Int           ComponentType = 5124
	UnsignedInt   ComponentType = 5125
	Float         ComponentType = 5126
)

// ByteSize returns the size in bytes of one component, or 0 if unknown.
func (c ComponentType) ByteSize() int {
	switch c {
	case Byte, UnsignedByte:
		return 1
	case Short, UnsignedShort:
		return 2
	case Int, UnsignedInt, Float:
		return 4
	default:
		return 0
	}
}

// IsInteger reports whether c is one of the integer component types.
func (c ComponentType) IsInteger() bool {
	return c != Float && c.ByteSize() != 0
}

func (c ComponentType) String() string {
	switch c {
	case Byte:
		return "BYTE"
	case UnsignedByte:
		return "UNSIGNED_BYTE"
	case Short:
		return "SHORT"
	case UnsignedShort:
		return "UNSIGNED_SHORT"
	case Int:
		return "INT"
	case UnsignedInt:
		return "UNSIGNED_INT"
	case Float:
		return "FLOAT"
	default:
		return fmt.Sprintf("ComponentType(%d)", uint16(c))
	}
}

// ComponentTypeFromGLType validates a raw glTF componentType code.
func ComponentTypeFromGLType(code int) (ComponentType, error) {
	c := ComponentType(code)
	if c.ByteSize() == 0 {
		return 0, fmt.Errorf("memory: unknown component type code %d", code)
	}
	return c, nil
}

// BufferUse names the purpose a Buffer is created for.
type BufferUse uint8

const (
	CPUGeneric      BufferUse = iota // CPU-only scratch and rest-pose data
	GPUInstanceData                  // per-instance component state uploaded each frame
	GPUVertexData                    // vertex attributes and indices
	UBOGeneric                       // uniform-buffer destined data, 16-byte aligned
	numBufferUses
)

var bufferUseNames = [...]string{"CPUGeneric", "GPUInstanceData", "GPUVertexData", "UBOGeneric"}

// NumBufferUses is the number of defined BufferUse values.
const NumBufferUses = int(numBufferUses)

func (u BufferUse) String() string {
	if int(u) < len(bufferUseNames) {
		return bufferUseNames[u]
	}
	return fmt.Sprintf("BufferUse(%d)", u)
}

// BufferUseFromString parses a BufferUse name, case-insensitively.
func BufferUseFromString(s string) (BufferUse, error) {
	for i, name := range bufferUseNames {
		if strings.EqualFold(name, s) {
			return BufferUse(i), nil
		}
	}
	return 0, fmt.Errorf("memory: unknown buffer use %q", s)
}

// DefaultAlign returns the byte alignment conventionally used for u:
// 16 for uniform data, 4 otherwise.
func (u BufferUse) DefaultAlign() int {
	if u == UBOGeneric {
		return 16
	}
	return 4
}

// AlignUp rounds n up to the next multiple of align. align <= 1 returns n.
func AlignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	if r := n % align; r != 0 {
		return n + align - r
	}
	return n
}
