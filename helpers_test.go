package quartz

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const epsilon = 1e-4

func newTestWorld(t testing.TB) *World {
	t.Helper()
	w, err := NewWorld(DefaultConfig())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	return w
}

// newNode creates an entity with Transform and SceneGraph.
func newNode(t testing.TB, w *World) *Entity {
	t.Helper()
	e, err := w.CreateEntityWith(TIDTransform, TIDSceneGraph)
	if err != nil {
		t.Fatalf("CreateEntityWith: %v", err)
	}
	return e
}

func assertNear(t *testing.T, name string, got, want float32) {
	t.Helper()
	if math32.Abs(got-want) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertVec3(t *testing.T, name string, got, want mgl32.Vec3) {
	t.Helper()
	if !got.ApproxEqualThreshold(want, epsilon) {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertMat4(t *testing.T, name string, got, want mgl32.Mat4) {
	t.Helper()
	for i := range got {
		if math32.Abs(got[i]-want[i]) > epsilon {
			t.Errorf("%s[%d] = %v, want %v (full: %v vs %v)", name, i, got[i], want[i], got, want)
			return
		}
	}
}

// assertQuat compares rotations, treating q and -q as equal.
func assertQuat(t *testing.T, name string, got, want mgl32.Quat) {
	t.Helper()
	if math32.Abs(got.Dot(want)) < 1-epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic, got none", name)
		}
	}()
	fn()
}

// eventRecorder is an EventSink that keeps every event.
type eventRecorder struct {
	events []LifecycleEvent
}

func (r *eventRecorder) EmitEvent(ev LifecycleEvent) { r.events = append(r.events, ev) }

func (r *eventRecorder) types() []EventType {
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
