package quartz

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/phanxgames/quartz/memory"
)

const (
	memberCameraParams     = "parameters"
	memberCameraProjection = "projection"

	cameraMaxCount = 64
)

// ProjectionType selects how a camera maps view space to clip space.
type ProjectionType uint8

const (
	Perspective ProjectionType = iota
	Orthographic
)

func (p ProjectionType) String() string {
	if p == Orthographic {
		return "Orthographic"
	}
	return "Perspective"
}

func cameraComponentType() ComponentType {
	return ComponentType{
		Name:     "Camera",
		MaxCount: cameraMaxCount,
		Members: []MemberDesc{
			// perspective: fovY, aspect, zNear, zFar; orthographic: xMag, yMag, zNear, zFar
			{
				Name: memberCameraParams, Use: memory.UBOGeneric,
				CompositionType: memory.Vec4, ComponentType: memory.Float,
				Initial: []float32{mgl32.DegToRad(60), 1, 0.1, 1000},
			},
			{
				Name: memberCameraProjection, Use: memory.UBOGeneric,
				CompositionType: memory.Mat4, ComponentType: memory.Float,
				Initial: identityM4,
			},
		},
		New: newCameraComponent,
	}
}

// CameraComponent turns its entity into a viewpoint. The view matrix is the
// inverse of the entity's world matrix; projection parameters and the cached
// projection matrix live in the UBOGeneric buffer.
type CameraComponent struct {
	ComponentBase

	world      *World
	params     *memory.Accessor
	projection *memory.Accessor
	projType   ProjectionType
	projDirty  bool
}

func newCameraComponent(init *ComponentInit) Component {
	c := &CameraComponent{ComponentBase: init.Base, world: init.World, projDirty: true}
	c.params = c.Member(memberCameraParams)
	c.projection = c.Member(memberCameraProjection)
	return c
}

func (c *CameraComponent) onDetach() {
	if c.world.currentCamera == c {
		c.world.currentCamera = nil
	}
}

// ProjectionType returns the projection kind.
func (c *CameraComponent) ProjectionType() ProjectionType { return c.projType }

// SetPerspective switches to a perspective projection. fovY is in radians.
func (c *CameraComponent) SetPerspective(fovY, aspect, zNear, zFar float32) {
	c.projType = Perspective
	c.params.SetVec4(c.index(), mgl32.Vec4{fovY, aspect, zNear, zFar})
	c.projDirty = true
}

// SetOrthographic switches to an orthographic projection spanning
// [-xMag, xMag] by [-yMag, yMag].
func (c *CameraComponent) SetOrthographic(xMag, yMag, zNear, zFar float32) {
	c.projType = Orthographic
	c.params.SetVec4(c.index(), mgl32.Vec4{xMag, yMag, zNear, zFar})
	c.projDirty = true
}

// SetAspect changes the perspective aspect ratio, keeping the other
// parameters. Orthographic cameras scale xMag to yMag·aspect.
func (c *CameraComponent) SetAspect(aspect float32) {
	p := c.Parameters()
	if c.projType == Orthographic {
		p[0] = p[1] * aspect
	} else {
		p[1] = aspect
	}
	c.params.SetVec4(c.index(), p)
	c.projDirty = true
}

// Parameters returns the raw projection parameters: (fovY, aspect, zNear,
// zFar) or (xMag, yMag, zNear, zFar).
func (c *CameraComponent) Parameters() mgl32.Vec4 { return c.params.GetVec4(c.index()) }

// ProjectionMatrix returns the projection matrix, rebuilding it after a
// parameter change.
func (c *CameraComponent) ProjectionMatrix() mgl32.Mat4 {
	if !c.projDirty {
		return c.projection.GetMat4(c.index())
	}
	p := c.Parameters()
	var m mgl32.Mat4
	if c.projType == Orthographic {
		m = mgl32.Ortho(-p[0], p[0], -p[1], p[1], p[2], p[3])
	} else {
		m = mgl32.Perspective(p[0], p[1], p[2], p[3])
	}
	c.projection.SetMat4(c.index(), m)
	c.projDirty = false
	return m
}

// ViewMatrix returns the inverse of the entity's world matrix. Without a
// scene graph the local transform is used; without either, identity.
func (c *CameraComponent) ViewMatrix() mgl32.Mat4 {
	if sg := c.entity.SceneGraph(); sg != nil {
		return sg.WorldMatrix().Inv()
	}
	if t := c.entity.Transform(); t != nil {
		return t.Matrix().Inv()
	}
	return mgl32.Ident4()
}

// ViewProjectionMatrix returns projection · view.
func (c *CameraComponent) ViewProjectionMatrix() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}

// EyePosition returns the camera origin in world space.
func (c *CameraComponent) EyePosition() mgl32.Vec3 {
	if sg := c.entity.SceneGraph(); sg != nil {
		return sg.WorldPosition()
	}
	if t := c.entity.Transform(); t != nil {
		return t.Translate()
	}
	return mgl32.Vec3{}
}

// LookAt sets the entity's local transform so the camera sits at eye and
// faces center. The entity needs a Transform; without one LookAt does nothing.
func (c *CameraComponent) LookAt(eye, center, up mgl32.Vec3) {
	t := c.entity.Transform()
	if t == nil {
		return
	}
	t.SetMatrix(mgl32.LookAtV(eye, center, up).Inv())
}

// WorldToClip projects a world space point to normalized device
// coordinates.
func (c *CameraComponent) WorldToClip(p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.TransformCoordinate(p, c.ViewProjectionMatrix())
}

// SetCurrentCamera makes c the camera render passes use by default. Nil
// clears it.
func (w *World) SetCurrentCamera(c *CameraComponent) { w.currentCamera = c }

// CurrentCamera returns the current camera, or nil.
func (w *World) CurrentCamera() *CameraComponent { return w.currentCamera }
