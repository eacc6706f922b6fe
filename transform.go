package quartz

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/phanxgames/quartz/memory"
)

const (
	memberTranslate     = "translate"
	memberRotation      = "rotation"
	memberScale         = "scale"
	memberMatrix        = "matrix"
	memberRestTranslate = "restTranslate"
	memberRestRotation  = "restRotation"
	memberRestScale     = "restScale"
)

var (
	identity4  = mgl32.Ident4()
	identityQ  = []float32{0, 0, 0, 1}
	unitScale  = []float32{1, 1, 1}
	identityM4 = identity4[:]
)

func transformComponentType() ComponentType {
	f := memory.Float
	return ComponentType{
		Name: "Transform",
		Members: []MemberDesc{
			{Name: memberTranslate, Use: memory.GPUInstanceData, CompositionType: memory.Vec3, ComponentType: f},
			{Name: memberRotation, Use: memory.GPUInstanceData, CompositionType: memory.Vec4, ComponentType: f, Initial: identityQ},
			{Name: memberScale, Use: memory.GPUInstanceData, CompositionType: memory.Vec3, ComponentType: f, Initial: unitScale},
			{Name: memberMatrix, Use: memory.GPUInstanceData, CompositionType: memory.Mat4, ComponentType: f, Initial: identityM4},
			{Name: memberRestTranslate, Use: memory.CPUGeneric, CompositionType: memory.Vec3, ComponentType: f},
			{Name: memberRestRotation, Use: memory.CPUGeneric, CompositionType: memory.Vec4, ComponentType: f, Initial: identityQ},
			{Name: memberRestScale, Use: memory.CPUGeneric, CompositionType: memory.Vec3, ComponentType: f, Initial: unitScale},
		},
		New: newTransformComponent,
	}
}

// TransformComponent holds an entity's local translate, rotation and scale.
// The live values and the cached matrix live in the GPUInstanceData buffer,
// the rest pose in CPUGeneric; the component only keeps the accessors and its
// element index.
//
// The local matrix is T·R·S, recomputed lazily after any setter.
type TransformComponent struct {
	ComponentBase

	translate, rotation, scale, matrix     *memory.Accessor
	restTranslate, restRotation, restScale *memory.Accessor

	matrixDirty bool
	hasRest     bool
}

func newTransformComponent(init *ComponentInit) Component {
	t := &TransformComponent{ComponentBase: init.Base}
	t.translate = t.Member(memberTranslate)
	t.rotation = t.Member(memberRotation)
	t.scale = t.Member(memberScale)
	t.matrix = t.Member(memberMatrix)
	t.restTranslate = t.Member(memberRestTranslate)
	t.restRotation = t.Member(memberRestRotation)
	t.restScale = t.Member(memberRestScale)
	return t
}

func (t *TransformComponent) onAttach() { t.markDirty() }

func (t *TransformComponent) onDetach() {
	if sg := t.entity.SceneGraph(); sg != nil {
		sg.markWorldDirty()
	}
}

// markDirty invalidates the local matrix and the world matrices of the
// entity's scene graph subtree.
func (t *TransformComponent) markDirty() {
	t.matrixDirty = true
	if sg := t.entity.SceneGraph(); sg != nil {
		sg.markWorldDirty()
	}
}

// IsDirty reports whether the local matrix needs recomputing.
func (t *TransformComponent) IsDirty() bool { return t.matrixDirty }

// Translate returns the local translation.
func (t *TransformComponent) Translate() mgl32.Vec3 { return t.translate.GetVec3(t.index()) }

// SetTranslate sets the local translation.
func (t *TransformComponent) SetTranslate(v mgl32.Vec3) {
	t.translate.SetVec3(t.index(), v)
	t.markDirty()
}

// Rotation returns the local rotation quaternion.
func (t *TransformComponent) Rotation() mgl32.Quat { return t.rotation.GetQuat(t.index()) }

// SetRotation sets the local rotation. q is normalized before it is stored.
func (t *TransformComponent) SetRotation(q mgl32.Quat) {
	t.rotation.SetQuat(t.index(), q.Normalize())
	t.markDirty()
}

// SetRotationEuler sets the rotation from angles in radians, applied about
// X first, then Y, then Z (R = Rz·Ry·Rx).
func (t *TransformComponent) SetRotationEuler(euler mgl32.Vec3) {
	t.SetRotation(quatFromEuler(euler))
}

// RotationEuler returns the rotation as angles matching SetRotationEuler.
func (t *TransformComponent) RotationEuler() mgl32.Vec3 {
	return eulerFromMat4(t.Rotation().Mat4())
}

// SetRotationMatrix sets the rotation from the upper 3x3 of m. Any scale in m
// is removed first.
func (t *TransformComponent) SetRotationMatrix(m mgl32.Mat4) {
	_, r, _ := decomposeTRS(m)
	t.SetRotation(r)
}

// Scale returns the local componentwise scale.
func (t *TransformComponent) Scale() mgl32.Vec3 { return t.scale.GetVec3(t.index()) }

// SetScale sets the local componentwise scale.
func (t *TransformComponent) SetScale(v mgl32.Vec3) {
	t.scale.SetVec3(t.index(), v)
	t.markDirty()
}

// SetTRS sets translation, rotation and scale with a single invalidation.
func (t *TransformComponent) SetTRS(tr mgl32.Vec3, r mgl32.Quat, s mgl32.Vec3) {
	i := t.index()
	t.translate.SetVec3(i, tr)
	t.rotation.SetQuat(i, r.Normalize())
	t.scale.SetVec3(i, s)
	t.markDirty()
}

// SetMatrix decomposes m into translation, rotation and scale.
func (t *TransformComponent) SetMatrix(m mgl32.Mat4) {
	t.SetTRS(decomposeTRS(m))
}

// Matrix returns the local matrix T·R·S, recomputing it if a setter ran since
// the last call.
func (t *TransformComponent) Matrix() mgl32.Mat4 {
	i := t.index()
	if t.matrixDirty {
		m := composeTRS(t.translate.GetVec3(i), t.rotation.GetQuat(i), t.scale.GetVec3(i))
		t.matrix.SetMat4(i, m)
		t.matrixDirty = false
		return m
	}
	return t.matrix.GetMat4(i)
}

// BackupTransformAsRest snapshots the current TRS as the rest pose. The live
// TRS is left untouched.
func (t *TransformComponent) BackupTransformAsRest() {
	i := t.index()
	t.restTranslate.SetVec3(i, t.translate.GetVec3(i))
	t.restRotation.SetVec4(i, t.rotation.GetVec4(i))
	t.restScale.SetVec3(i, t.scale.GetVec3(i))
	t.hasRest = true
}

// HasRest reports whether BackupTransformAsRest has been called.
func (t *TransformComponent) HasRest() bool { return t.hasRest }

// RestTranslate returns the rest translation, or the live one if no rest
// pose was taken.
func (t *TransformComponent) RestTranslate() mgl32.Vec3 {
	if !t.hasRest {
		return t.Translate()
	}
	return t.restTranslate.GetVec3(t.index())
}

// RestRotation returns the rest rotation, or the live one if no rest pose was
// taken.
func (t *TransformComponent) RestRotation() mgl32.Quat {
	if !t.hasRest {
		return t.Rotation()
	}
	return t.restRotation.GetQuat(t.index())
}

// RestScale returns the rest scale, or the live one if no rest pose was taken.
func (t *TransformComponent) RestScale() mgl32.Vec3 {
	if !t.hasRest {
		return t.Scale()
	}
	return t.restScale.GetVec3(t.index())
}

// RestMatrix returns T·R·S of the rest pose.
func (t *TransformComponent) RestMatrix() mgl32.Mat4 {
	return composeTRS(t.RestTranslate(), t.RestRotation(), t.RestScale())
}

// --- math helpers ---

// composeTRS returns T·R·S.
func composeTRS(tr mgl32.Vec3, r mgl32.Quat, s mgl32.Vec3) mgl32.Mat4 {
	m := r.Mat4()
	for c := 0; c < 3; c++ {
		for row := 0; row < 3; row++ {
			m[c*4+row] *= s[c]
		}
	}
	m[12], m[13], m[14] = tr[0], tr[1], tr[2]
	return m
}

// decomposeTRS splits an affine matrix into translation, rotation and scale.
// A negative determinant is folded into the X scale.
func decomposeTRS(m mgl32.Mat4) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	tr := mgl32.Vec3{m[12], m[13], m[14]}
	sx := mgl32.Vec3{m[0], m[1], m[2]}.Len()
	sy := mgl32.Vec3{m[4], m[5], m[6]}.Len()
	sz := mgl32.Vec3{m[8], m[9], m[10]}.Len()
	if m.Mat3().Det() < 0 {
		sx = -sx
	}
	var rot mgl32.Mat4
	for c, s := range [3]float32{sx, sy, sz} {
		inv := float32(0)
		if s != 0 {
			inv = 1 / s
		}
		for row := 0; row < 3; row++ {
			rot[c*4+row] = m[c*4+row] * inv
		}
	}
	rot[15] = 1
	return tr, mgl32.Mat4ToQuat(rot).Normalize(), mgl32.Vec3{sx, sy, sz}
}

func quatFromEuler(e mgl32.Vec3) mgl32.Quat {
	qx := mgl32.QuatRotate(e[0], mgl32.Vec3{1, 0, 0})
	qy := mgl32.QuatRotate(e[1], mgl32.Vec3{0, 1, 0})
	qz := mgl32.QuatRotate(e[2], mgl32.Vec3{0, 0, 1})
	return qz.Mul(qy).Mul(qx)
}

// eulerFromMat4 inverts quatFromEuler for the rotation part of m.
func eulerFromMat4(m mgl32.Mat4) mgl32.Vec3 {
	r20 := m.At(2, 0)
	if math32.Abs(r20) < 0.9999999 {
		return mgl32.Vec3{
			math32.Atan2(m.At(2, 1), m.At(2, 2)),
			math32.Asin(-r20),
			math32.Atan2(m.At(1, 0), m.At(0, 0)),
		}
	}
	// Gimbal lock: Z is folded into X.
	y := -math32.Copysign(math32.Pi/2, r20)
	return mgl32.Vec3{math32.Atan2(-m.At(1, 2), m.At(1, 1)), y, 0}
}
