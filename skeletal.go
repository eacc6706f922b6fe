package quartz

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/phanxgames/quartz/memory"
)

func skeletalComponentType() ComponentType {
	return ComponentType{Name: "Skeletal", MaxCount: 256, New: newSkeletalComponent}
}

// SkeletalComponent skins its entity's mesh with a list of joint nodes.
// Joint matrices are written into a Mat4 accessor in the GPUInstanceData
// buffer, one element per joint.
type SkeletalComponent struct {
	ComponentBase

	world               *World
	joints              []*SceneGraphComponent
	inverseBindMatrices *memory.Accessor
	jointMatrices       *memory.Accessor
}

func newSkeletalComponent(init *ComponentInit) Component {
	return &SkeletalComponent{ComponentBase: init.Base, world: init.World}
}

// SetJoints binds joints and their inverse bind matrices. ibm may be nil,
// meaning identity for every joint; otherwise it must be a Mat4 accessor with
// at least len(joints) elements. A joint matrix accessor sized for the joints
// is taken from GPUInstanceData; rebinding takes a new one, the old space is
// not reclaimed.
func (s *SkeletalComponent) SetJoints(joints []*SceneGraphComponent, ibm *memory.Accessor) error {
	if len(joints) == 0 {
		return fmt.Errorf("%w: skeleton has no joints", memory.ErrInvalidDescriptor)
	}
	for i, j := range joints {
		if j == nil {
			return fmt.Errorf("%w: joint %d is nil", memory.ErrInvalidDescriptor, i)
		}
	}
	if ibm != nil {
		if ibm.CompositionType() != memory.Mat4 {
			return fmt.Errorf("%w: inverse bind matrices are %s, want MAT4",
				memory.ErrShapeMismatch, ibm.CompositionType())
		}
		if ibm.ElementCount() < len(joints) {
			return fmt.Errorf("%w: %d inverse bind matrices for %d joints",
				memory.ErrShapeMismatch, ibm.ElementCount(), len(joints))
		}
	}
	buf, err := s.world.memory.CreateOrGetBuffer(memory.GPUInstanceData)
	if err != nil {
		return err
	}
	acc, err := takeAccessor(buf, memory.Mat4, memory.Float, len(joints))
	if err != nil {
		return fmt.Errorf("quartz: joint matrices: %w", err)
	}
	s.joints = append(s.joints[:0:0], joints...)
	s.inverseBindMatrices = ibm
	s.jointMatrices = acc
	return nil
}

// Joints returns the bound joints. The returned slice MUST NOT be mutated by the caller.
func (s *SkeletalComponent) Joints() []*SceneGraphComponent { return s.joints }

// NumJoints returns the number of bound joints.
func (s *SkeletalComponent) NumJoints() int { return len(s.joints) }

// InverseBindMatrix returns the inverse bind matrix of joint i.
func (s *SkeletalComponent) InverseBindMatrix(i int) mgl32.Mat4 {
	if s.inverseBindMatrices == nil {
		return mgl32.Ident4()
	}
	return s.inverseBindMatrices.GetMat4(i)
}

// JointMatrices writes inverse(world(mesh)) · world(joint) · IBM(joint) for
// every joint and returns the accessor holding them, or nil before SetJoints.
// The mesh world matrix is the owning entity's; identity if it has no scene
// graph.
func (s *SkeletalComponent) JointMatrices() *memory.Accessor {
	if s.jointMatrices == nil {
		return nil
	}
	invMesh := mgl32.Ident4()
	if sg := s.entity.SceneGraph(); sg != nil {
		invMesh = sg.WorldMatrix().Inv()
	}
	for i, j := range s.joints {
		s.jointMatrices.SetMat4(i, invMesh.Mul4(j.WorldMatrix()).Mul4(s.InverseBindMatrix(i)))
	}
	return s.jointMatrices
}

func (s *SkeletalComponent) onDetach() {
	s.joints = nil
	s.inverseBindMatrices = nil
}
