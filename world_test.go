package quartz

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/phanxgames/quartz/memory"
)

// observeLogs routes the package logger into an observer for the test.
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })
	return logs
}

type fakeUploader struct {
	names []string
	sizes []int
	fail  error
}

func (u *fakeUploader) Upload(name string, use memory.BufferUse, data []byte) error {
	if u.fail != nil {
		return u.fail
	}
	u.names = append(u.names, name)
	u.sizes = append(u.sizes, len(data))
	return nil
}

func TestMemoryManagerBuffers(t *testing.T) {
	mm, err := newMemoryManager(DefaultConfig().Memory, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	for _, use := range []memory.BufferUse{memory.CPUGeneric, memory.GPUInstanceData, memory.GPUVertexData} {
		if mm.GetBuffer(use) == nil {
			t.Errorf("%s not created at startup", use)
		}
	}
	if mm.GetBuffer(memory.UBOGeneric) != nil {
		t.Error("UBOGeneric created at startup")
	}
	want := SizeClassSmall.Bytes()*2 + SizeClassMedium.Bytes()
	if mm.ReservedBytes() != want {
		t.Errorf("ReservedBytes = %d, want %d", mm.ReservedBytes(), want)
	}
	if mm.PoolBytes() != want+SizeClassTiny.Bytes() {
		t.Errorf("PoolBytes = %d", mm.PoolBytes())
	}

	ubo, err := mm.CreateOrGetBuffer(memory.UBOGeneric)
	if err != nil {
		t.Fatal(err)
	}
	if ubo.ByteLength() != SizeClassTiny.Bytes() {
		t.Errorf("UBO length = %d", ubo.ByteLength())
	}
	again, _ := mm.CreateOrGetBuffer(memory.UBOGeneric)
	if again != ubo {
		t.Error("second CreateOrGetBuffer returned a new buffer")
	}
	if mm.ReservedBytes() != mm.PoolBytes() {
		t.Errorf("ReservedBytes = %d after UBO, want %d", mm.ReservedBytes(), mm.PoolBytes())
	}
	if len(mm.Buffers()) != 4 {
		t.Errorf("Buffers = %d, want 4", len(mm.Buffers()))
	}
}

func TestWorldCreatesUBOForCameras(t *testing.T) {
	w := newTestWorld(t)
	if w.Memory().GetBuffer(memory.UBOGeneric) == nil {
		t.Error("camera registration did not create UBOGeneric")
	}
}

func TestCreateMemoryManagerIfNotCreated(t *testing.T) {
	w := newTestWorld(t)
	mm, err := w.CreateMemoryManagerIfNotCreated(MemoryConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if mm != w.Memory() {
		t.Error("second call created a new manager")
	}
}

func TestPoolExhaustedOnLazyBuffer(t *testing.T) {
	cfg := DefaultConfig().Memory
	cfg.PoolBytes = cfg.startupBytes()
	mm, err := newMemoryManager(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mm.CreateOrGetBuffer(memory.UBOGeneric); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("err = %v, want ErrPoolExhausted", err)
	}
	if mm.GetBuffer(memory.UBOGeneric) != nil {
		t.Error("failed request left a buffer")
	}

	// The world needs UBO space for the camera pool.
	if _, err := NewWorld(Config{Memory: cfg}); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("NewWorld err = %v, want ErrPoolExhausted", err)
	}
}

func TestBuiltinPoolsDoNotFit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Memory.GPUInstanceData = SizeClassTiny
	_, err := NewWorld(cfg)
	if !errors.Is(err, memory.ErrInsufficientSpace) {
		t.Errorf("err = %v, want memory.ErrInsufficientSpace", err)
	}
}

func TestUploadAll(t *testing.T) {
	w := newTestWorld(t)
	newNode(t, w)
	u := &fakeUploader{}
	if err := w.Memory().UploadAll(u); err != nil {
		t.Fatal(err)
	}
	want := []string{memory.CPUGeneric.String(), memory.GPUInstanceData.String(), memory.GPUVertexData.String(), memory.UBOGeneric.String()}
	if len(u.names) != len(want) {
		t.Fatalf("uploaded %v, want %v", u.names, want)
	}
	for i := range want {
		if u.names[i] != want[i] {
			t.Errorf("upload[%d] = %q, want %q", i, u.names[i], want[i])
		}
	}
	inst := w.Memory().GetBuffer(memory.GPUInstanceData)
	if u.sizes[1] != inst.TakenBytes() {
		t.Errorf("instance upload = %d bytes, want used prefix %d", u.sizes[1], inst.TakenBytes())
	}

	boom := errors.New("device lost")
	if err := w.Memory().UploadAll(&fakeUploader{fail: boom}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped device error", err)
	}
}

func TestProcess(t *testing.T) {
	w := newTestWorld(t)
	parent, child := newNode(t, w), newNode(t, w)
	parent.SceneGraph().AddChild(child.SceneGraph())
	parent.Transform().SetTranslate(mgl32.Vec3{5, 0, 0})

	w.Process()
	if w.Frame() != 1 {
		t.Errorf("Frame = %d, want 1", w.Frame())
	}
	if child.SceneGraph().IsWorldDirty() {
		t.Error("child dirty after Process")
	}
	acc, _ := w.Components().MemberAccessor(TIDSceneGraph, memberWorldMatrix)
	m := acc.GetMat4(int(child.SceneGraph().ComponentSID()))
	assertVec3(t, "stored child position", mgl32.Vec3{m[12], m[13], m[14]}, mgl32.Vec3{5, 0, 0})
}

func TestProcessRefreshesTransformWithoutSceneGraph(t *testing.T) {
	w := newTestWorld(t)
	e, err := w.CreateEntityWith(TIDTransform)
	if err != nil {
		t.Fatalf("CreateEntityWith: %v", err)
	}
	e.Transform().SetTranslate(mgl32.Vec3{1, 2, 3})

	w.Process()
	if e.Transform().IsDirty() {
		t.Error("transform dirty after Process")
	}
	acc, _ := w.Components().MemberAccessor(TIDTransform, memberMatrix)
	m := acc.GetMat4(int(e.Transform().ComponentSID()))
	assertMat4(t, "stored local matrix", m, mgl32.Translate3D(1, 2, 3))
}

func TestProcessStaticFrameDoesNotAllocate(t *testing.T) {
	w := newTestWorld(t)
	parent, child := newNode(t, w), newNode(t, w)
	parent.SceneGraph().AddChild(child.SceneGraph())
	if _, err := w.CreateEntityWith(TIDTransform); err != nil {
		t.Fatalf("CreateEntityWith: %v", err)
	}
	w.Process()

	if n := testing.AllocsPerRun(100, w.Process); n != 0 {
		t.Errorf("Process allocs = %v, want 0", n)
	}
}

func TestProcessDebugStats(t *testing.T) {
	logs := observeLogs(t)
	w := newTestWorld(t)
	w.SetDebug(true)
	a, b := newNode(t, w), newNode(t, w)
	a.SceneGraph().AddChild(b.SceneGraph())
	w.Process()

	frames := logs.FilterMessage("frame").All()
	if len(frames) != 1 {
		t.Fatalf("frame logs = %d, want 1", len(frames))
	}
	fields := frames[0].ContextMap()
	if fields["nodes"] != int64(2) || fields["recomputed"] != int64(2) || fields["roots"] != int64(1) {
		t.Errorf("frame fields = %v", fields)
	}

	w.Process()
	last := logs.FilterMessage("frame").All()[1].ContextMap()
	if last["recomputed"] != int64(0) {
		t.Errorf("second frame recomputed = %v, want 0", last["recomputed"])
	}
}

func TestDebugTreeDepthWarning(t *testing.T) {
	logs := observeLogs(t)
	w := newTestWorld(t)
	w.SetDebug(true)
	prev := newNode(t, w)
	for i := 0; i < debugMaxTreeDepth; i++ {
		next := newNode(t, w)
		prev.SceneGraph().AddChild(next.SceneGraph())
		prev = next
	}
	warns := logs.FilterMessage("scene graph tree depth exceeds threshold").All()
	if len(warns) != 1 {
		t.Fatalf("depth warnings = %d, want 1", len(warns))
	}
	if warns[0].Level != zapcore.WarnLevel {
		t.Errorf("level = %v", warns[0].Level)
	}
}

func TestDebugOffIsQuiet(t *testing.T) {
	logs := observeLogs(t)
	w := newTestWorld(t)
	prev := newNode(t, w)
	for i := 0; i < debugMaxTreeDepth+2; i++ {
		next := newNode(t, w)
		prev.SceneGraph().AddChild(next.SceneGraph())
		prev = next
	}
	w.Process()
	if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != 0 {
		t.Errorf("warnings with debug off = %d", n)
	}
	if n := logs.FilterMessage("frame").Len(); n != 0 {
		t.Errorf("frame logs with debug off = %d", n)
	}
}
