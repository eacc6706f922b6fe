package quartz

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/phanxgames/quartz/memory"
)

// newRig builds mesh -> (j0 -> j1) and returns the skinned entity and joints.
func newRig(t *testing.T, w *World) (*Entity, []*SceneGraphComponent) {
	t.Helper()
	mesh, err := w.CreateEntityWith(TIDTransform, TIDSceneGraph, TIDSkeletal)
	if err != nil {
		t.Fatal(err)
	}
	j0, j1 := newNode(t, w), newNode(t, w)
	mesh.SceneGraph().AddChild(j0.SceneGraph())
	j0.SceneGraph().AddChild(j1.SceneGraph())
	mesh.Transform().SetTranslate(mgl32.Vec3{5, 0, 0})
	j1.Transform().SetTranslate(mgl32.Vec3{0, 2, 0})
	return mesh, []*SceneGraphComponent{j0.SceneGraph(), j1.SceneGraph()}
}

func inverseBindMatrices(t *testing.T, w *World, joints []*SceneGraphComponent) *memory.Accessor {
	t.Helper()
	acc, err := takeAccessor(w.Memory().GetBuffer(memory.CPUGeneric), memory.Mat4, memory.Float, len(joints))
	if err != nil {
		t.Fatal(err)
	}
	meshInv := joints[0].Root().WorldMatrix().Inv()
	for i, j := range joints {
		acc.SetMat4(i, meshInv.Mul4(j.WorldMatrix()).Inv())
	}
	return acc
}

func TestJointMatricesWithoutIBM(t *testing.T) {
	w := newTestWorld(t)
	mesh, joints := newRig(t, w)
	sk := mesh.Skeletal()
	if sk.JointMatrices() != nil {
		t.Error("JointMatrices before SetJoints")
	}
	if err := sk.SetJoints(joints, nil); err != nil {
		t.Fatal(err)
	}
	acc := sk.JointMatrices()
	if acc.ElementCount() != 2 || acc.BufferView().Buffer().Use() != memory.GPUInstanceData {
		t.Fatalf("joint accessor = %d elements in %s", acc.ElementCount(), acc.BufferView().Buffer().Use())
	}
	// Mesh translation cancels out; joints are relative to the mesh.
	assertMat4(t, "joint 0", acc.GetMat4(0), mgl32.Ident4())
	assertMat4(t, "joint 1", acc.GetMat4(1), mgl32.Translate3D(0, 2, 0))
}

func TestJointMatricesBindPoseIsIdentity(t *testing.T) {
	w := newTestWorld(t)
	mesh, joints := newRig(t, w)
	sk := mesh.Skeletal()
	if err := sk.SetJoints(joints, inverseBindMatrices(t, w, joints)); err != nil {
		t.Fatal(err)
	}
	acc := sk.JointMatrices()
	for i := range joints {
		assertMat4(t, "bind pose", acc.GetMat4(i), mgl32.Ident4())
	}

	joints[0].Entity().Transform().SetRotation(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))
	acc = sk.JointMatrices()
	// The tip sat at (0,2,0); rotating the root joint swings it to (-2,0,0).
	tip := mgl32.TransformCoordinate(mgl32.Vec3{0, 2, 0}, acc.GetMat4(1))
	assertVec3(t, "skinned tip", tip, mgl32.Vec3{-2, 0, 0})
}

func TestSetJointsErrors(t *testing.T) {
	w := newTestWorld(t)
	mesh, joints := newRig(t, w)
	sk := mesh.Skeletal()
	cpu := w.Memory().GetBuffer(memory.CPUGeneric)
	vec3s, err := takeAccessor(cpu, memory.Vec3, memory.Float, 2)
	if err != nil {
		t.Fatal(err)
	}
	short, err := takeAccessor(cpu, memory.Mat4, memory.Float, 1)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		joints []*SceneGraphComponent
		ibm    *memory.Accessor
		want   error
	}{
		{"no joints", nil, nil, memory.ErrInvalidDescriptor},
		{"nil joint", []*SceneGraphComponent{joints[0], nil}, nil, memory.ErrInvalidDescriptor},
		{"not mat4", joints, vec3s, memory.ErrShapeMismatch},
		{"too few matrices", joints, short, memory.ErrShapeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := sk.SetJoints(tt.joints, tt.ibm); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if sk.NumJoints() != 0 {
		t.Error("failed SetJoints bound joints")
	}
}

func TestSkeletalDetach(t *testing.T) {
	w := newTestWorld(t)
	mesh, joints := newRig(t, w)
	sk := mesh.Skeletal()
	if err := sk.SetJoints(joints, nil); err != nil {
		t.Fatal(err)
	}
	w.Entities().RemoveComponentFromEntity(TIDSkeletal, mesh)
	if sk.NumJoints() != 0 || sk.Joints() != nil {
		t.Error("detached skeleton kept joints")
	}
	assertMat4(t, "ibm after detach", sk.InverseBindMatrix(0), mgl32.Ident4())
}
