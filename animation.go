package quartz

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TweenGroup animates up to 3 float32 channels of a TransformComponent
// simultaneously. Create one via the convenience constructors
// (TweenTranslate, TweenScale, TweenRotation) and call Update(dt) each frame.
// Values are written through the transform setters, so the scene graph
// subtree is invalidated as usual. If the target component is detached, the
// group stops immediately.
//
// Groups are not registered anywhere; callers drive Update themselves.
type TweenGroup struct {
	tweens [3]*gween.Tween
	count  int
	values [3]float32
	apply  func(v [3]float32)
	target *TransformComponent
	Done   bool
}

// Update advances all tweens by dt seconds and writes the values to the
// target. If the target has been detached, Done is set to true and no writes
// occur.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}
	if g.target.IsDetached() {
		g.Done = true
		return
	}

	allDone := true
	for i := 0; i < g.count; i++ {
		val, finished := g.tweens[i].Update(dt)
		g.values[i] = val
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone
	g.apply(g.values)
}

// Reset rewinds every tween to its start and clears Done.
func (g *TweenGroup) Reset() {
	for i := 0; i < g.count; i++ {
		g.tweens[i].Reset()
	}
	g.Done = false
}

func newVec3Tween(t *TransformComponent, from, to mgl32.Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 3, target: t}
	for i := 0; i < 3; i++ {
		g.tweens[i] = gween.New(from[i], to[i], duration, fn)
	}
	return g
}

// TweenTranslate creates a TweenGroup that animates the translation of t to
// the given target over the specified duration using the easing function.
func TweenTranslate(t *TransformComponent, to mgl32.Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := newVec3Tween(t, t.Translate(), to, duration, fn)
	g.apply = func(v [3]float32) { t.SetTranslate(mgl32.Vec3(v)) }
	return g
}

// TweenScale creates a TweenGroup that animates the scale of t to the given
// target over the specified duration using the easing function.
func TweenScale(t *TransformComponent, to mgl32.Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := newVec3Tween(t, t.Scale(), to, duration, fn)
	g.apply = func(v [3]float32) { t.SetScale(mgl32.Vec3(v)) }
	return g
}

// TweenRotation creates a TweenGroup that rotates t to the target
// orientation. The easing function drives a 0..1 parameter of a spherical
// interpolation between the current and target rotations.
func TweenRotation(t *TransformComponent, to mgl32.Quat, duration float32, fn ease.TweenFunc) *TweenGroup {
	from := t.Rotation()
	to = to.Normalize()
	// Take the short way around.
	if from.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	g := &TweenGroup{count: 1, target: t}
	g.tweens[0] = gween.New(0, 1, duration, fn)
	g.apply = func(v [3]float32) { t.SetRotation(mgl32.QuatSlerp(from, to, v[0])) }
	return g
}
